package port

import (
	"context"

	"crm-sync-service/internal/core/domain"

	"github.com/google/uuid"
)

// SyncSessionStoragePort — append-only журнал попыток синхронизации.
type SyncSessionStoragePort interface {
	// Create создаёт сессию в статусе pending и возвращает её ID.
	Create(ctx context.Context, session *domain.SyncSession) (uuid.UUID, error)

	// MarkSyncing переводит сессию в статус syncing.
	MarkSyncing(ctx context.Context, id uuid.UUID) error

	// Finalize записывает счётчики, completed_at и длительность ровно один раз.
	// Повторная финализация — ошибка.
	Finalize(ctx context.Context, session *domain.SyncSession) error

	// GetLatest возвращает последнюю по started_at сессию или nil, если журнала ещё нет.
	GetLatest(ctx context.Context) (*domain.SyncSession, error)
}
