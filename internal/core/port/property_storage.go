package port

import (
	"context"

	"crm-sync-service/internal/core/domain"
)

// PropertyStoragePort — узкий контракт шлюза персистентности.
type PropertyStoragePort interface {
	// GetSyncInfo возвращает срез локальной записи по идентификатору CRM
	// или nil, если такой записи ещё нет.
	GetSyncInfo(ctx context.Context, crmID int64) (*domain.PropertySyncInfo, error)

	// UpsertFromUpstream атомарно вставляет или обновляет основную строку
	// (матчинг по crm_id), затем заменяет дочерние коллекции целиком,
	// каждую в своей транзакции. Провал дочерней коллекции не откатывает
	// основную строку и возвращается предупреждением в результате.
	UpsertFromUpstream(ctx context.Context, prop *domain.UpstreamProperty) (*domain.UpsertResult, error)
}
