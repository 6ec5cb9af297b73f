package rest

import (
	"encoding/json"
	"net/http"
)

// errorEnvelopeDTO - единый конверт ошибок: success всегда false,
// details несёт сырые подробности, когда они есть.
type errorEnvelopeDTO struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// WriteJSONError отправляет JSON-конверт ошибки с заданным статусом
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSONErrorDetails(w, statusCode, message, nil)
}

// WriteJSONErrorDetails - то же, но с сырыми подробностями в details
func WriteJSONErrorDetails(w http.ResponseWriter, statusCode int, message string, details json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(errorEnvelopeDTO{
		Success: false,
		Error:   message,
		Details: details,
	})
}

// RespondWithJSON отправляет JSON-ответ
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
