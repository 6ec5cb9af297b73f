package rest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"crm-sync-service/internal/constants"
	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/contracts"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
	"crm-sync-service/internal/core/port/usecases_port"
)

const webhookEventSchema = "WebhookPropertyEvent"
const webhookEventSchemaVersion = "1.0.0"

type WebhookHandlers struct {
	handleWebhookUC usecases_port.HandleWebhookUseCase
	secret          string
}

// NewWebhookHandlers - конструктор для наших обработчиков.
func NewWebhookHandlers(handleWebhookUC usecases_port.HandleWebhookUseCase, secret string) (*WebhookHandlers, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook handlers: shared secret cannot be empty")
	}
	return &WebhookHandlers{
		handleWebhookUC: handleWebhookUC,
		secret:          secret,
	}, nil
}

// checkSecret сравнивает общий секрет за постоянное время.
func (h *WebhookHandlers) checkSecret(r *http.Request) bool {
	got := r.Header.Get(constants.HeaderWebhookSecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

// HandleWebhookChallenge - обработчик для GET /api/v1/webhook.
// CRM проверяет эндпоинт, ожидая эхо переданного challenge.
func (h *WebhookHandlers) HandleWebhookChallenge(w http.ResponseWriter, r *http.Request) {
	if !h.checkSecret(r) {
		WriteJSONError(w, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	challenge := r.URL.Query().Get("challenge")
	if challenge == "" {
		WriteJSONError(w, http.StatusBadRequest, "Query parameter 'challenge' is required")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"challenge": challenge,
	})
}

// HandleWebhookEvent - обработчик для POST /api/v1/webhook
func (h *WebhookHandlers) HandleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleWebhookEvent"})

	if !h.checkSecret(r) {
		logger.Warn("Webhook with invalid secret rejected", port.Fields{"remote_addr": r.RemoteAddr})
		WriteJSONError(w, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	// Сначала контрактная валидация по JSON-схеме, потом разбор
	if err := contracts.ValidateEvent(webhookEventSchema, webhookEventSchemaVersion, body); err != nil {
		logger.Warn("Webhook payload failed schema validation", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid webhook payload: %v", err))
		return
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid webhook payload: %v", err))
		return
	}

	logger.Info("Received webhook event", port.Fields{"event": event.Event, "property_id": event.PropertyID})

	result, err := h.handleWebhookUC.HandleEvent(r.Context(), &event)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			WriteJSONError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		logger.Error("Use case execution failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to process webhook event")
		return
	}

	RespondWithJSON(w, http.StatusOK, WebhookResponseDTO{
		Success: true,
		Event:   result.Event,
		Result: WebhookResultDTO{
			Applied: result.Applied,
			Reason:  result.Reason,
			Session: toSessionDTO(result.Session),
		},
	})
}
