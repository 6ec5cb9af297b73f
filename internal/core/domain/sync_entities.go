package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncKind — канал, через который пришла синхронизация.
type SyncKind string

const (
	SyncKindFull        SyncKind = "full"
	SyncKindIncremental SyncKind = "incremental"
	SyncKindWebhook     SyncKind = "webhook"
	SyncKindCSVImport   SyncKind = "csv_import"
)

// SessionStatus — жизненный цикл сессии: pending → syncing → completed|failed.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusSyncing   SessionStatus = "syncing"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// SyncStats — агрегированные счётчики одной сессии.
// Сумма new+updated+deleted+failed всегда <= total: пропущенные по правилу
// "новее — побеждает" записи не попадают ни в один счётчик.
type SyncStats struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SyncSession — одна запись аудита попытки синхронизации.
// После установки CompletedAt запись никогда не изменяется.
type SyncSession struct {
	ID     uuid.UUID
	Kind   SyncKind
	Status SessionStatus

	// Окно инкрементального фильтра (для full — пустое).
	FromDate *time.Time
	ToDate   *time.Time

	Stats SyncStats

	StartedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds float64

	ErrorMessage *string
	// ErrorDetails — структурированный список ошибок по записям (JSON-массив).
	ErrorDetails json.RawMessage
}

// PropertyFilter — параметры запроса списка объектов к CRM.
type PropertyFilter struct {
	StatusID int
	// IsSync — обязательный маркер для CRM, отличает синхронизацию от обычных выборок.
	IsSync            bool
	UpdateDateFromUTC *time.Time
	SendDateFromUTC   *time.Time
	IncludeDeleted    bool
	// Detailed запрашивает полные вложенные данные (картинки, характеристики и т.д.).
	// Синхронизация всегда ходит в detailed-режиме.
	Detailed bool
}

// SyncSettings — активные реквизиты подключения к CRM.
// Хранятся одной строкой в БД, а не в окружении: токен ротируется через API.
type SyncSettings struct {
	BaseURL             string
	AuthToken           string
	PollIntervalMinutes int
	UpdatedAt           time.Time
}

// LookupEntry — элемент справочника CRM (категории, назначения и т.п.).
type LookupEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Типы вебхук-событий от CRM.
const (
	WebhookEventCreated       = "created"
	WebhookEventUpdated       = "updated"
	WebhookEventDeleted       = "deleted"
	WebhookEventStatusChanged = "status_changed"
)

// WebhookEvent — одно push-уведомление об изменении объекта в CRM.
type WebhookEvent struct {
	Event      string          `json:"event"`
	PropertyID int64           `json:"property_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
	Changes    *WebhookChanges `json:"changes,omitempty"`
}

type WebhookChanges struct {
	NewStatus int `json:"new_status"`
}
