package rest

import (
	"encoding/json"
	"time"

	"crm-sync-service/internal/core/domain"
)

// RunSyncRequestDTO - тело запроса POST /api/v1/sync
type RunSyncRequestDTO struct {
	SyncType       string     `json:"syncType"`
	IncludeDeleted bool       `json:"includeDeleted"`
	LastSyncDate   *time.Time `json:"lastSyncDate,omitempty"`
	AuthToken      string     `json:"authToken,omitempty"`
}

// SyncStatsDTO - счётчики сессии в ответах API
type SyncStatsDTO struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

func toStatsDTO(s domain.SyncStats) SyncStatsDTO {
	return SyncStatsDTO{
		Total:   s.Total,
		New:     s.New,
		Updated: s.Updated,
		Deleted: s.Deleted,
		Failed:  s.Failed,
	}
}

// SyncRunResponseDTO - ответ POST /api/v1/sync.
// success отражает итог сессии: частичный провал записей — всё ещё success,
// провал счётчики показывают отдельно.
type SyncRunResponseDTO struct {
	Success       bool            `json:"success"`
	SyncSessionID string          `json:"syncSessionId"`
	Status        string          `json:"status"`
	Stats         SyncStatsDTO    `json:"stats"`
	Duration      float64         `json:"duration"`
	Error         string          `json:"error,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

func toRunResponseDTO(s *domain.SyncSession) *SyncRunResponseDTO {
	if s == nil {
		return nil
	}
	dto := &SyncRunResponseDTO{
		Success:       s.Status != domain.SessionStatusFailed,
		SyncSessionID: s.ID.String(),
		Status:        string(s.Status),
		Stats:         toStatsDTO(s.Stats),
		Duration:      s.DurationSeconds,
	}
	if s.ErrorMessage != nil {
		dto.Error = *s.ErrorMessage
	}
	if !dto.Success {
		dto.Details = s.ErrorDetails
	}
	return dto
}

// SyncSessionDTO - представление сессии синхронизации в ответах API
type SyncSessionDTO struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	FromDate        *time.Time      `json:"from_date,omitempty"`
	ToDate          *time.Time      `json:"to_date,omitempty"`
	Stats           SyncStatsDTO    `json:"stats"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DurationSeconds float64         `json:"duration_seconds"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	ErrorDetails    json.RawMessage `json:"error_details,omitempty"`
}

func toSessionDTO(s *domain.SyncSession) *SyncSessionDTO {
	if s == nil {
		return nil
	}
	return &SyncSessionDTO{
		ID:              s.ID.String(),
		Kind:            string(s.Kind),
		Status:          string(s.Status),
		FromDate:        s.FromDate,
		ToDate:          s.ToDate,
		Stats:           toStatsDTO(s.Stats),
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		DurationSeconds: s.DurationSeconds,
		ErrorMessage:    s.ErrorMessage,
		ErrorDetails:    s.ErrorDetails,
	}
}

// LastSessionResponseDTO - ответ GET /api/v1/sync
type LastSessionResponseDTO struct {
	Success bool            `json:"success"`
	Session *SyncSessionDTO `json:"session"`
}

// WebhookResponseDTO - ответ на принятое push-событие
type WebhookResponseDTO struct {
	Success bool             `json:"success"`
	Event   string           `json:"event"`
	Result  WebhookResultDTO `json:"result"`
}

type WebhookResultDTO struct {
	Applied bool            `json:"applied"`
	Reason  string          `json:"reason,omitempty"`
	Session *SyncSessionDTO `json:"session,omitempty"`
}

// LookupResponseDTO - ответ GET /api/v1/lookups
type LookupResponseDTO struct {
	Success bool                 `json:"success"`
	Type    string               `json:"type"`
	Entries []domain.LookupEntry `json:"entries"`
}
