package usecases_port

import (
	"context"

	"crm-sync-service/internal/core/domain"
)

// GetLastSessionUseCase — последняя сессия синхронизации для GET /sync.
type GetLastSessionUseCase interface {
	GetLastSession(ctx context.Context) (*domain.SyncSession, error)
}
