package postgres

import (
	"context"
	"errors"
	"fmt"

	"crm-sync-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSyncSessionAdapter реализует SyncSessionStoragePort для PostgreSQL.
type PostgresSyncSessionAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresSyncSessionAdapter создает новый экземпляр адаптера.
func NewPostgresSyncSessionAdapter(pool *pgxpool.Pool) (*PostgresSyncSessionAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresSyncSessionAdapter{
		pool: pool,
	}, nil
}

// Create создаёт сессию в статусе pending и возвращает её ID.
func (a *PostgresSyncSessionAdapter) Create(ctx context.Context, session *domain.SyncSession) (uuid.UUID, error) {
	var id uuid.UUID

	err := a.pool.QueryRow(ctx, `
		INSERT INTO sync_sessions (kind, status, from_date, to_date, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`, session.Kind, domain.SessionStatusPending, session.FromDate, session.ToDate, session.StartedAt).Scan(&id)

	if err != nil {
		return uuid.Nil, &domain.PersistenceError{Op: "create sync session", Err: err}
	}

	return id, nil
}

// MarkSyncing переводит сессию из pending в syncing.
func (a *PostgresSyncSessionAdapter) MarkSyncing(ctx context.Context, id uuid.UUID) error {
	tag, err := a.pool.Exec(ctx, `
		UPDATE sync_sessions
		SET status = $1
		WHERE id = $2 AND status = $3
	`, domain.SessionStatusSyncing, id, domain.SessionStatusPending)

	if err != nil {
		return &domain.PersistenceError{Op: "mark session syncing", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &domain.PersistenceError{
			Op:  "mark session syncing",
			Err: fmt.Errorf("session %s not found or not pending", id),
		}
	}

	return nil
}

// Finalize записывает итог сессии ровно один раз: условие completed_at IS NULL
// делает повторную финализацию ошибкой, журнал остаётся append-only.
func (a *PostgresSyncSessionAdapter) Finalize(ctx context.Context, session *domain.SyncSession) error {
	tag, err := a.pool.Exec(ctx, `
		UPDATE sync_sessions
		SET status = $1,
			total = $2,
			new_count = $3,
			updated_count = $4,
			deleted_count = $5,
			failed_count = $6,
			completed_at = $7,
			duration_seconds = $8,
			error_message = $9,
			error_details = $10
		WHERE id = $11 AND completed_at IS NULL
	`,
		session.Status,
		session.Stats.Total, session.Stats.New, session.Stats.Updated,
		session.Stats.Deleted, session.Stats.Failed,
		session.CompletedAt, session.DurationSeconds,
		session.ErrorMessage, session.ErrorDetails,
		session.ID,
	)

	if err != nil {
		return &domain.PersistenceError{Op: "finalize sync session", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &domain.PersistenceError{
			Op:  "finalize sync session",
			Err: fmt.Errorf("session %s not found or already finalized", session.ID),
		}
	}

	return nil
}

// GetLatest возвращает последнюю по started_at сессию или nil, если журнала ещё нет.
func (a *PostgresSyncSessionAdapter) GetLatest(ctx context.Context) (*domain.SyncSession, error) {
	var s domain.SyncSession

	err := a.pool.QueryRow(ctx, `
		SELECT id, kind, status, from_date, to_date,
			total, new_count, updated_count, deleted_count, failed_count,
			started_at, completed_at, duration_seconds, error_message, error_details
		FROM sync_sessions
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(
		&s.ID, &s.Kind, &s.Status, &s.FromDate, &s.ToDate,
		&s.Stats.Total, &s.Stats.New, &s.Stats.Updated, &s.Stats.Deleted, &s.Stats.Failed,
		&s.StartedAt, &s.CompletedAt, &s.DurationSeconds, &s.ErrorMessage, &s.ErrorDetails,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get latest sync session", Err: err}
	}

	return &s, nil
}
