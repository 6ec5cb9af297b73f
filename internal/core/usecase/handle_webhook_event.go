package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
	"crm-sync-service/internal/core/port/usecases_port"
)

type HandleWebhookEventUseCase struct {
	crmClient port.CrmClientPort
	storage   port.PropertyStoragePort
	sessions  port.SyncSessionStoragePort
}

func NewHandleWebhookEventUseCase(
	crmClient port.CrmClientPort,
	storage port.PropertyStoragePort,
	sessions port.SyncSessionStoragePort,
) (*HandleWebhookEventUseCase, error) {
	if crmClient == nil || storage == nil || sessions == nil {
		return nil, fmt.Errorf("handle webhook use case: dependencies cannot be nil")
	}
	return &HandleWebhookEventUseCase{
		crmClient: crmClient,
		storage:   storage,
		sessions:  sessions,
	}, nil
}

// HandleEvent - основной метод. Применяет одно push-уведомление от CRM.
func (uc *HandleWebhookEventUseCase) HandleEvent(ctx context.Context, event *domain.WebhookEvent) (*usecases_port.WebhookResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":    "HandleWebhookEvent",
		"event":       event.Event,
		"property_id": event.PropertyID,
	})

	session := &domain.SyncSession{
		Kind:      domain.SyncKindWebhook,
		Status:    domain.SessionStatusPending,
		StartedAt: time.Now().UTC(),
	}

	var result *usecases_port.WebhookResult
	var err error

	switch event.Event {
	case domain.WebhookEventCreated, domain.WebhookEventUpdated:
		result, err = uc.applyUpsertEvent(ctx, ucLogger, event, &session.Stats)
	case domain.WebhookEventDeleted:
		// Удаление в CRM — это смена статуса, локально запись остаётся
		result, err = uc.applyStatusChange(ctx, ucLogger, event, domain.PropertyStatusDeleted, &session.Stats)
	case domain.WebhookEventStatusChanged:
		if event.Changes == nil {
			err = &domain.ValidationError{Field: "changes", Reason: "status_changed event without changes payload"}
		} else {
			result, err = uc.applyStatusChange(ctx, ucLogger, event, event.Changes.NewStatus, &session.Stats)
		}
	default:
		err = &domain.ValidationError{Field: "event", Reason: fmt.Sprintf("unknown event type %q", event.Event)}
	}

	if err != nil {
		// Провальное событие тоже остаётся в журнале сессий
		session.Stats.Total = 1
		session.Stats.Failed = 1
		uc.recordSession(ctx, ucLogger, session, err)
		return nil, err
	}

	result.Session = uc.recordSession(ctx, ucLogger, session, nil)
	return result, nil
}

// applyUpsertEvent обрабатывает created/updated: полезная нагрузка берётся
// из события, а при её отсутствии дотягивается из CRM.
func (uc *HandleWebhookEventUseCase) applyUpsertEvent(ctx context.Context, logger port.LoggerPort, event *domain.WebhookEvent, stats *domain.SyncStats) (*usecases_port.WebhookResult, error) {
	stats.Total = 1

	var prop *domain.UpstreamProperty

	if len(event.Data) > 0 {
		var parsed domain.UpstreamProperty
		if err := json.Unmarshal(event.Data, &parsed); err != nil {
			return nil, &domain.ValidationError{Field: "data", Reason: fmt.Sprintf("payload is not a valid property: %v", err)}
		}
		parsed.Raw = event.Data
		prop = &parsed
	} else {
		fetched, err := uc.crmClient.FetchPropertyByID(ctx, event.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("fetch property %d: %w", event.PropertyID, err)
		}
		if fetched == nil {
			// CRM уже не знает объект: событие устарело, применять нечего
			logger.Warn("Webhook for property unknown to CRM, skipping", nil)
			return &usecases_port.WebhookResult{Event: event.Event, Applied: false, Reason: "property not found in CRM"}, nil
		}
		prop = fetched
	}

	if prop.PropertyID == 0 {
		prop.PropertyID = event.PropertyID
	}
	if prop.UpdateDate.IsZero() {
		prop.UpdateDate = event.Timestamp
	}

	info, err := uc.storage.GetSyncInfo(ctx, prop.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("get sync info: %w", err)
	}
	if info != nil && !prop.UpdateDate.After(info.UpdateDate) {
		logger.Debug("Webhook payload is not newer than local record, skipping", nil)
		return &usecases_port.WebhookResult{Event: event.Event, Applied: false, Reason: "local record is newer"}, nil
	}

	result, err := uc.storage.UpsertFromUpstream(ctx, prop)
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	if result.Created {
		stats.New = 1
	} else {
		stats.Updated = 1
	}

	return &usecases_port.WebhookResult{Event: event.Event, Applied: true}, nil
}

// applyStatusChange переигрывает сохранённый сырой payload объекта
// с форсированным статусом. Локальный ID записи при этом не меняется.
func (uc *HandleWebhookEventUseCase) applyStatusChange(ctx context.Context, logger port.LoggerPort, event *domain.WebhookEvent, newStatus int, stats *domain.SyncStats) (*usecases_port.WebhookResult, error) {
	stats.Total = 1

	info, err := uc.storage.GetSyncInfo(ctx, event.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("get sync info: %w", err)
	}
	if info == nil {
		// Объект никогда не синхронизировался: менять статус нечему
		logger.Warn("Status change for unknown local property, skipping", nil)
		return &usecases_port.WebhookResult{Event: event.Event, Applied: false, Reason: "property unknown locally"}, nil
	}

	if !event.Timestamp.After(info.UpdateDate) {
		logger.Debug("Status change event is not newer than local record, skipping", nil)
		return &usecases_port.WebhookResult{Event: event.Event, Applied: false, Reason: "local record is newer"}, nil
	}

	prop, err := uc.rebuildProperty(ctx, info, event.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return &usecases_port.WebhookResult{Event: event.Event, Applied: false, Reason: "no payload to replay"}, nil
	}

	prop.StatusID = newStatus
	prop.UpdateDate = event.Timestamp

	if _, err := uc.storage.UpsertFromUpstream(ctx, prop); err != nil {
		return nil, fmt.Errorf("upsert status change: %w", err)
	}

	if newStatus == domain.PropertyStatusDeleted {
		stats.Deleted = 1
	} else {
		stats.Updated = 1
	}

	return &usecases_port.WebhookResult{Event: event.Event, Applied: true}, nil
}

// rebuildProperty восстанавливает объект из сохранённого raw payload,
// а при его отсутствии дотягивает из CRM.
func (uc *HandleWebhookEventUseCase) rebuildProperty(ctx context.Context, info *domain.PropertySyncInfo, crmID int64) (*domain.UpstreamProperty, error) {
	if len(info.RawPayload) > 0 {
		var prop domain.UpstreamProperty
		if err := json.Unmarshal(info.RawPayload, &prop); err == nil {
			prop.Raw = info.RawPayload
			if prop.PropertyID == 0 {
				prop.PropertyID = crmID
			}
			return &prop, nil
		}
		// Битый сохранённый payload: падаем на запрос к CRM
	}

	fetched, err := uc.crmClient.FetchPropertyByID(ctx, crmID)
	if err != nil {
		return nil, fmt.Errorf("fetch property %d: %w", crmID, err)
	}
	return fetched, nil
}

// recordSession - best-effort запись вебхук-сессии в журнал.
// Провал записи логируется, но не мешает ответить CRM.
func (uc *HandleWebhookEventUseCase) recordSession(ctx context.Context, logger port.LoggerPort, session *domain.SyncSession, cause error) *domain.SyncSession {
	now := time.Now().UTC()
	session.CompletedAt = &now
	session.DurationSeconds = now.Sub(session.StartedAt).Seconds()

	if cause != nil {
		session.Status = domain.SessionStatusFailed
		msg := cause.Error()
		session.ErrorMessage = &msg
	} else {
		session.Status = domain.SessionStatusCompleted
	}

	id, err := uc.sessions.Create(ctx, session)
	if err != nil {
		logger.Warn("Failed to create webhook session record", port.Fields{"error": err.Error()})
		return nil
	}
	session.ID = id

	if err := uc.sessions.MarkSyncing(ctx, id); err != nil {
		logger.Warn("Failed to advance webhook session record", port.Fields{"error": err.Error()})
		return session
	}
	if err := uc.sessions.Finalize(ctx, session); err != nil {
		logger.Warn("Failed to finalize webhook session record", port.Fields{"error": err.Error()})
	}

	return session
}
