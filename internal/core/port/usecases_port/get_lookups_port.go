package usecases_port

import (
	"context"

	"crm-sync-service/internal/core/domain"
)

// GetLookupsUseCase — выдача справочника CRM через кэш.
type GetLookupsUseCase interface {
	GetLookup(ctx context.Context, lookupType string, languageID int) ([]domain.LookupEntry, error)
}
