package usecase

import (
	"context"
	"fmt"

	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
)

type GetLookupsUseCase struct {
	crmClient port.CrmClientPort
	cache     port.LookupCachePort
}

func NewGetLookupsUseCase(crmClient port.CrmClientPort, cache port.LookupCachePort) (*GetLookupsUseCase, error) {
	if crmClient == nil {
		return nil, fmt.Errorf("get lookups use case: crm client cannot be nil")
	}
	return &GetLookupsUseCase{
		crmClient: crmClient,
		cache:     cache,
	}, nil
}

// GetLookup отдаёт справочник по схеме cache-aside: сперва кэш, при промахе
// или недоступном Redis — поход в CRM с последующей записью в кэш.
func (uc *GetLookupsUseCase) GetLookup(ctx context.Context, lookupType string, languageID int) ([]domain.LookupEntry, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":    "GetLookups",
		"lookup_type": lookupType,
		"language_id": languageID,
	})

	if uc.cache != nil {
		entries, err := uc.cache.Get(ctx, lookupType, languageID)
		if err != nil {
			// Лежащий Redis не должен ломать выдачу справочников
			ucLogger.Warn("Lookup cache read failed, falling back to CRM", port.Fields{"error": err.Error()})
		} else if entries != nil {
			return entries, nil
		}
	}

	entries, err := uc.crmClient.FetchLookup(ctx, lookupType, languageID)
	if err != nil {
		return nil, fmt.Errorf("could not fetch lookup %q: %w", lookupType, err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, lookupType, languageID, entries); err != nil {
			ucLogger.Warn("Lookup cache write failed", port.Fields{"error": err.Error()})
		}
	}

	return entries, nil
}
