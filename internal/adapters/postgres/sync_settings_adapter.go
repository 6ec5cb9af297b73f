package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-sync-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSyncSettingsAdapter реализует SyncSettingsPort для PostgreSQL.
// Реквизиты живут одной строкой с фиксированным id = 1.
type PostgresSyncSettingsAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresSyncSettingsAdapter создает новый экземпляр адаптера.
func NewPostgresSyncSettingsAdapter(pool *pgxpool.Pool) (*PostgresSyncSettingsAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresSyncSettingsAdapter{
		pool: pool,
	}, nil
}

// GetSettings возвращает активные реквизиты или nil, если они ещё не заданы.
func (a *PostgresSyncSettingsAdapter) GetSettings(ctx context.Context) (*domain.SyncSettings, error) {
	var s domain.SyncSettings

	err := a.pool.QueryRow(ctx, `
		SELECT base_url, auth_token, poll_interval_minutes, updated_at
		FROM sync_settings
		WHERE id = 1
	`).Scan(&s.BaseURL, &s.AuthToken, &s.PollIntervalMinutes, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get sync settings", Err: err}
	}

	return &s, nil
}

// SaveSettings перезаписывает реквизиты. Пустые поля не затирают сохранённые
// значения: токен можно ротировать, не передавая base_url заново.
func (a *PostgresSyncSettingsAdapter) SaveSettings(ctx context.Context, settings *domain.SyncSettings) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO sync_settings (id, base_url, auth_token, poll_interval_minutes, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			base_url = CASE WHEN EXCLUDED.base_url <> '' THEN EXCLUDED.base_url ELSE sync_settings.base_url END,
			auth_token = CASE WHEN EXCLUDED.auth_token <> '' THEN EXCLUDED.auth_token ELSE sync_settings.auth_token END,
			poll_interval_minutes = CASE WHEN EXCLUDED.poll_interval_minutes > 0 THEN EXCLUDED.poll_interval_minutes ELSE sync_settings.poll_interval_minutes END,
			updated_at = EXCLUDED.updated_at
	`, settings.BaseURL, settings.AuthToken, settings.PollIntervalMinutes, time.Now().UTC())

	if err != nil {
		return &domain.PersistenceError{Op: "save sync settings", Err: err}
	}

	return nil
}
