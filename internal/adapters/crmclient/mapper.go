package crmclient

import (
	"encoding/json"
	"fmt"

	"crm-sync-service/internal/core/domain"
)

// toDomainProperty разбирает сырой JSON объекта из CRM в доменную модель,
// сохраняя исходные байты в поле Raw для дословного хранения в БД.
func toDomainProperty(raw json.RawMessage) (*domain.UpstreamProperty, error) {
	var prop domain.UpstreamProperty
	if err := json.Unmarshal(raw, &prop); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upstream property: %w", err)
	}

	// Копия: raw может ссылаться на переиспользуемый буфер декодера.
	prop.Raw = make(json.RawMessage, len(raw))
	copy(prop.Raw, raw)

	return &prop, nil
}

func toDomainLookupEntries(entries []lookupEntry) []domain.LookupEntry {
	result := make([]domain.LookupEntry, len(entries))
	for i, e := range entries {
		result[i] = domain.LookupEntry{
			ID:   e.ID,
			Name: e.Name,
		}
	}
	return result
}
