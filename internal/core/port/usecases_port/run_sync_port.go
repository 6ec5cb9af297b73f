package usecases_port

import (
	"context"
	"time"

	"crm-sync-service/internal/core/domain"
)

// RunSyncParams — параметры запуска синхронизации.
type RunSyncParams struct {
	Kind           domain.SyncKind
	IncludeDeleted bool
	// LastSyncDate — базовая точка для инкрементального запуска.
	// Без неё incremental не определён и откатывается к full.
	LastSyncDate *time.Time
	// AuthToken, если задан, сохраняется в настройки перед запуском (ротация токена).
	AuthToken string
}

// RunSyncUseCase — запуск полной или инкрементальной синхронизации.
type RunSyncUseCase interface {
	RunSync(ctx context.Context, params RunSyncParams) (*domain.SyncSession, error)
}
