package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"crm-sync-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookUC(t *testing.T, crm *mockCrmClient, storage *mockPropertyStorage, sessions *mockSessionStorage) *HandleWebhookEventUseCase {
	t.Helper()
	uc, err := NewHandleWebhookEventUseCase(crm, storage, sessions)
	require.NoError(t, err)
	return uc
}

func TestHandleWebhook_CreatedWithInlinePayload(t *testing.T) {
	storage := newMockPropertyStorage()
	sessions := &mockSessionStorage{}
	uc := newWebhookUC(t, &mockCrmClient{}, storage, sessions)

	payload := json.RawMessage(`{"PropertyID": 55, "StatusID": 1, "Price": 90000, "UpdateDate": "2026-05-10T12:00:00Z", "SendDate": "2026-05-10T11:00:00Z"}`)
	event := &domain.WebhookEvent{
		Event:      domain.WebhookEventCreated,
		PropertyID: 55,
		Timestamp:  time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
		Data:       payload,
	}

	result, err := uc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, result.Applied)

	upserts := storage.upserted()
	require.Len(t, upserts, 1)
	assert.Equal(t, int64(55), upserts[0].Prop.PropertyID)
	// Payload события сохраняется как сырой JSON
	assert.JSONEq(t, string(payload), string(upserts[0].Prop.Raw))

	require.NotNil(t, result.Session)
	assert.Equal(t, domain.SyncKindWebhook, result.Session.Kind)
	assert.Equal(t, 1, result.Session.Stats.Total)
	assert.Equal(t, 1, result.Session.Stats.New)
}

func TestHandleWebhook_UpdatedWithoutPayloadFetchesFromCrm(t *testing.T) {
	price := 120000.0
	crm := &mockCrmClient{
		propertyByID: map[int64]*domain.UpstreamProperty{
			77: {
				PropertyID: 77,
				StatusID:   domain.PropertyStatusActive,
				Price:      &price,
				UpdateDate: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
				Raw:        json.RawMessage(`{"PropertyID": 77}`),
			},
		},
	}
	storage := newMockPropertyStorage()
	uc := newWebhookUC(t, crm, storage, &mockSessionStorage{})

	event := &domain.WebhookEvent{
		Event:      domain.WebhookEventUpdated,
		PropertyID: 77,
		Timestamp:  time.Date(2026, 5, 10, 12, 5, 0, 0, time.UTC),
	}

	result, err := uc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	require.Len(t, storage.upserted(), 1)
}

func TestHandleWebhook_UpdatedUnknownInCrmIsNoOp(t *testing.T) {
	storage := newMockPropertyStorage()
	uc := newWebhookUC(t, &mockCrmClient{propertyByID: map[int64]*domain.UpstreamProperty{}}, storage, &mockSessionStorage{})

	event := &domain.WebhookEvent{
		Event:      domain.WebhookEventUpdated,
		PropertyID: 404,
		Timestamp:  time.Now().UTC(),
	}

	result, err := uc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.Reason)
	assert.Empty(t, storage.upserted())
}

func TestHandleWebhook_StaleEventSkipped(t *testing.T) {
	localID := uuid.New()
	storage := newMockPropertyStorage()
	storage.syncInfo[55] = &domain.PropertySyncInfo{
		LocalID:    localID,
		CrmID:      55,
		UpdateDate: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	uc := newWebhookUC(t, &mockCrmClient{}, storage, &mockSessionStorage{})

	event := &domain.WebhookEvent{
		Event:      domain.WebhookEventUpdated,
		PropertyID: 55,
		Timestamp:  time.Date(2026, 5, 10, 11, 0, 0, 0, time.UTC), // старее локальной
		Data:       json.RawMessage(`{"PropertyID": 55, "StatusID": 1, "Price": 1, "UpdateDate": "2026-05-10T11:00:00Z"}`),
	}

	result, err := uc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Empty(t, storage.upserted())
}

func TestHandleWebhook_DeletedBecomesStatusChange(t *testing.T) {
	localID := uuid.New()
	storage := newMockPropertyStorage()
	storage.syncInfo[88] = &domain.PropertySyncInfo{
		LocalID:    localID,
		CrmID:      88,
		StatusID:   domain.PropertyStatusActive,
		UpdateDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		RawPayload: json.RawMessage(`{"PropertyID": 88, "StatusID": 1, "Price": 50000, "UpdateDate": "2026-05-01T00:00:00Z", "SendDate": "2026-04-30T00:00:00Z"}`),
	}

	uc := newWebhookUC(t, &mockCrmClient{}, storage, &mockSessionStorage{})

	eventTime := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	result, err := uc.HandleEvent(context.Background(), &domain.WebhookEvent{
		Event:      domain.WebhookEventDeleted,
		PropertyID: 88,
		Timestamp:  eventTime,
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	upserts := storage.upserted()
	require.Len(t, upserts, 1)
	// Статус форсирован, отметка времени взята из события
	assert.Equal(t, domain.PropertyStatusDeleted, upserts[0].Prop.StatusID)
	assert.True(t, upserts[0].Prop.UpdateDate.Equal(eventTime))

	// Локальный ID записи не изменился
	assert.Equal(t, localID, storage.syncInfo[88].LocalID)

	require.NotNil(t, result.Session)
	assert.Equal(t, 1, result.Session.Stats.Deleted)
}

func TestHandleWebhook_DeletedUnknownLocallyIsNoOp(t *testing.T) {
	storage := newMockPropertyStorage()
	uc := newWebhookUC(t, &mockCrmClient{}, storage, &mockSessionStorage{})

	result, err := uc.HandleEvent(context.Background(), &domain.WebhookEvent{
		Event:      domain.WebhookEventDeleted,
		PropertyID: 1234,
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Empty(t, storage.upserted())
}

func TestHandleWebhook_StatusChanged(t *testing.T) {
	storage := newMockPropertyStorage()
	storage.syncInfo[99] = &domain.PropertySyncInfo{
		LocalID:    uuid.New(),
		CrmID:      99,
		StatusID:   domain.PropertyStatusDeleted,
		UpdateDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		RawPayload: json.RawMessage(`{"PropertyID": 99, "StatusID": 2, "Price": 60000, "UpdateDate": "2026-05-01T00:00:00Z", "SendDate": "2026-04-30T00:00:00Z"}`),
	}

	uc := newWebhookUC(t, &mockCrmClient{}, storage, &mockSessionStorage{})

	result, err := uc.HandleEvent(context.Background(), &domain.WebhookEvent{
		Event:      domain.WebhookEventStatusChanged,
		PropertyID: 99,
		Timestamp:  time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		Changes:    &domain.WebhookChanges{NewStatus: domain.PropertyStatusActive},
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	upserts := storage.upserted()
	require.Len(t, upserts, 1)
	assert.Equal(t, domain.PropertyStatusActive, upserts[0].Prop.StatusID)
}

func TestHandleWebhook_StatusChangedWithoutChangesRejected(t *testing.T) {
	sessions := &mockSessionStorage{}
	uc := newWebhookUC(t, &mockCrmClient{}, newMockPropertyStorage(), sessions)

	_, err := uc.HandleEvent(context.Background(), &domain.WebhookEvent{
		Event:      domain.WebhookEventStatusChanged,
		PropertyID: 1,
		Timestamp:  time.Now().UTC(),
	})
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)

	// Отклонённое событие всё равно журналируется провальной сессией
	finalized := sessions.lastFinalized()
	require.NotNil(t, finalized)
	assert.Equal(t, domain.SessionStatusFailed, finalized.Status)
	assert.Equal(t, 1, finalized.Stats.Failed)
	require.NotNil(t, finalized.ErrorMessage)
	assert.Contains(t, *finalized.ErrorMessage, "changes")
}

func TestHandleWebhook_UnknownEventRejected(t *testing.T) {
	sessions := &mockSessionStorage{}
	uc := newWebhookUC(t, &mockCrmClient{}, newMockPropertyStorage(), sessions)

	_, err := uc.HandleEvent(context.Background(), &domain.WebhookEvent{
		Event:      "renamed",
		PropertyID: 1,
		Timestamp:  time.Now().UTC(),
	})
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)

	finalized := sessions.lastFinalized()
	require.NotNil(t, finalized)
	assert.Equal(t, domain.SessionStatusFailed, finalized.Status)
}

func TestHandleWebhook_SessionRecordingIsBestEffort(t *testing.T) {
	storage := newMockPropertyStorage()
	sessions := &mockSessionStorage{createErr: errors.New("session store unavailable")}
	uc := newWebhookUC(t, &mockCrmClient{}, storage, sessions)

	payload := json.RawMessage(`{"PropertyID": 5, "StatusID": 1, "Price": 100, "UpdateDate": "2026-05-10T12:00:00Z"}`)
	result, err := uc.HandleEvent(context.Background(), &domain.WebhookEvent{
		Event:      domain.WebhookEventCreated,
		PropertyID: 5,
		Timestamp:  time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
		Data:       payload,
	})

	// Провал журнала не мешает применить событие
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Nil(t, result.Session)
	require.Len(t, storage.upserted(), 1)
}
