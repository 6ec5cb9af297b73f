package port

import (
	"context"

	"crm-sync-service/internal/core/domain"
)

// LookupCachePort — кэш справочников CRM.
type LookupCachePort interface {
	// Get возвращает (nil, nil) при промахе кэша.
	Get(ctx context.Context, lookupType string, languageID int) ([]domain.LookupEntry, error)

	Set(ctx context.Context, lookupType string, languageID int, entries []domain.LookupEntry) error
}
