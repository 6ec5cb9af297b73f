package port

import (
	"context"

	"crm-sync-service/internal/core/domain"

	"github.com/google/uuid"
)

// IndexRefreshPort — уведомление поисковой витрины о завершённой синхронизации.
// Вызов fire-and-forget: провал публикации логируется и не эскалируется.
type IndexRefreshPort interface {
	PublishRefresh(ctx context.Context, sessionID uuid.UUID, stats domain.SyncStats) error
}
