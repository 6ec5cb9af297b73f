package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"crm-sync-service/internal/constants"
	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
	"crm-sync-service/internal/core/port/usecases_port"
)

type SyncHandlers struct {
	runSyncUC        usecases_port.RunSyncUseCase
	getLastSessionUC usecases_port.GetLastSessionUseCase
	getLookupsUC     usecases_port.GetLookupsUseCase
}

// NewSyncHandlers - конструктор для наших обработчиков.
func NewSyncHandlers(runSyncUC usecases_port.RunSyncUseCase,
	getLastSessionUC usecases_port.GetLastSessionUseCase,
	getLookupsUC usecases_port.GetLookupsUseCase) *SyncHandlers {
	return &SyncHandlers{
		runSyncUC:        runSyncUC,
		getLastSessionUC: getLastSessionUC,
		getLookupsUC:     getLookupsUC,
	}
}

// HandleRunSync - обработчик для POST /api/v1/sync
func (h *SyncHandlers) HandleRunSync(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleRunSync"})

	var reqDTO RunSyncRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		if err == io.EOF {
			logger.Error("Failed to decode request body", err, nil)
			WriteJSONError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	kind := domain.SyncKind(reqDTO.SyncType)
	switch kind {
	case domain.SyncKindFull, domain.SyncKindIncremental:
	default:
		WriteJSONError(w, http.StatusBadRequest, "Field 'syncType' must be 'full' or 'incremental'")
		return
	}

	params := usecases_port.RunSyncParams{
		Kind:           kind,
		IncludeDeleted: reqDTO.IncludeDeleted,
		LastSyncDate:   reqDTO.LastSyncDate,
		AuthToken:      reqDTO.AuthToken,
	}

	logger.Info("Received request to run sync", port.Fields{"syncType": reqDTO.SyncType})

	session, err := h.runSyncUC.RunSync(r.Context(), params)
	if err != nil {
		if errors.Is(err, domain.ErrSyncAlreadyRunning) {
			WriteJSONError(w, http.StatusConflict, "Another sync is already in progress")
			return
		}
		var configErr *domain.ConfigError
		if errors.As(err, &configErr) {
			WriteJSONError(w, http.StatusUnprocessableEntity, configErr.Error())
			return
		}
		logger.Error("Use case execution failed", err, nil)
		// Провальная сессия всё равно возвращается клиенту для диагностики
		if session != nil {
			RespondWithJSON(w, http.StatusBadGateway, toRunResponseDTO(session))
			return
		}
		WriteJSONError(w, http.StatusInternalServerError, "Failed to run sync")
		return
	}

	RespondWithJSON(w, http.StatusOK, toRunResponseDTO(session))
}

// HandleGetLastSession - обработчик для GET /api/v1/sync
func (h *SyncHandlers) HandleGetLastSession(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleGetLastSession"})

	session, err := h.getLastSessionUC.GetLastSession(r.Context())
	if err != nil {
		logger.Error("Failed to get last session", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to get last sync session")
		return
	}
	if session == nil {
		WriteJSONError(w, http.StatusNotFound, "No sync sessions yet")
		return
	}

	RespondWithJSON(w, http.StatusOK, LastSessionResponseDTO{
		Success: true,
		Session: toSessionDTO(session),
	})
}

// HandleGetLookups - обработчик для GET /api/v1/lookups
func (h *SyncHandlers) HandleGetLookups(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleGetLookups"})

	lookupType := r.URL.Query().Get("type")
	if lookupType == "" {
		WriteJSONError(w, http.StatusBadRequest, "Query parameter 'type' is required")
		return
	}

	languageID := constants.DefaultLanguageID
	if raw := r.URL.Query().Get("language_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteJSONError(w, http.StatusBadRequest, "Query parameter 'language_id' must be a positive number")
			return
		}
		languageID = parsed
	}

	entries, err := h.getLookupsUC.GetLookup(r.Context(), lookupType, languageID)
	if err != nil {
		logger.Error("Failed to get lookup", err, port.Fields{"lookup_type": lookupType})
		WriteJSONError(w, http.StatusBadGateway, fmt.Sprintf("Failed to get lookup '%s'", lookupType))
		return
	}

	RespondWithJSON(w, http.StatusOK, LookupResponseDTO{
		Success: true,
		Type:    lookupType,
		Entries: entries,
	})
}
