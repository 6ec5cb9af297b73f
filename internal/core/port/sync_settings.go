package port

import (
	"context"

	"crm-sync-service/internal/core/domain"
)

// SyncSettingsPort — доступ к активным реквизитам CRM (одна строка в БД).
type SyncSettingsPort interface {
	GetSettings(ctx context.Context) (*domain.SyncSettings, error)

	// SaveSettings перезаписывает реквизиты; пустые поля не затирают сохранённые значения.
	SaveSettings(ctx context.Context, settings *domain.SyncSettings) error
}
