package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/mmcloughlin/geohash"
)

// Точность геохэша ~153x153 метра
const geohashPrecision = 7

// dbPool - срез методов pgxpool.Pool, которыми пользуется адаптер.
type dbPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPropertyAdapter реализует PropertyStoragePort для PostgreSQL.
type PostgresPropertyAdapter struct {
	pool dbPool
}

// NewPostgresPropertyAdapter создает новый экземпляр адаптера.
func NewPostgresPropertyAdapter(pool dbPool) (*PostgresPropertyAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresPropertyAdapter{
		pool: pool,
	}, nil
}

// GetSyncInfo возвращает срез локальной записи по crm_id или nil, если записи нет.
func (a *PostgresPropertyAdapter) GetSyncInfo(ctx context.Context, crmID int64) (*domain.PropertySyncInfo, error) {
	var info domain.PropertySyncInfo

	err := a.pool.QueryRow(ctx, `
		SELECT id, crm_id, status_id, update_date, raw_payload
		FROM properties
		WHERE crm_id = $1
	`, crmID).Scan(&info.LocalID, &info.CrmID, &info.StatusID, &info.UpdateDate, &info.RawPayload)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get sync info", Err: err}
	}

	return &info, nil
}

// UpsertFromUpstream сохраняет один объект из представления CRM.
//
// Основная строка пишется одной транзакцией (ON CONFLICT по crm_id) —
// наполовину записанную строку снаружи увидеть нельзя. Дочерние коллекции
// заменяются целиком ПОСЛЕ коммита основной строки, каждая в своей
// транзакции: провал одной коллекции не откатывает ни основную строку,
// ни соседние коллекции, а возвращается предупреждением. Следующая полная
// синхронизация такой объект долечит.
func (a *PostgresPropertyAdapter) UpsertFromUpstream(ctx context.Context, prop *domain.UpstreamProperty) (*domain.UpsertResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresPropertyAdapter",
		"method":    "UpsertFromUpstream",
		"crm_id":    prop.PropertyID,
	})

	warnings, err := domain.ValidateUpstreamProperty(prop)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		repoLogger.Warn("Property validation warning", port.Fields{"warning": w})
	}

	result := &domain.UpsertResult{ChildWarnings: warnings}

	// --- Шаг 1: основная строка в одной транзакции ---
	if err := a.upsertCoreRow(ctx, prop, result); err != nil {
		return nil, err
	}

	// --- Шаг 2: замена дочерних коллекций, каждая в своей транзакции ---
	childReplacements := []struct {
		name string
		fn   func(context.Context, *domain.UpstreamProperty, *domain.UpsertResult) error
	}{
		{"images", a.replaceImages},
		{"characteristics", a.replaceCharacteristics},
		{"partner", a.replacePartner},
		{"distances", a.replaceDistances},
		{"parkings", a.replaceParkings},
		{"basements", a.replaceBasements},
		{"flags", a.replaceFlags},
	}

	for _, child := range childReplacements {
		if err := child.fn(ctx, prop, result); err != nil {
			// Не фатально: основная строка уже зафиксирована.
			repoLogger.Warn("Child collection replacement failed", port.Fields{
				"collection": child.name,
				"error":      err.Error(),
			})
			result.ChildWarnings = append(result.ChildWarnings,
				fmt.Sprintf("failed to replace %s: %v", child.name, err))
		}
	}

	repoLogger.Debug("Upsert finished", port.Fields{
		"local_id": result.LocalID,
		"created":  result.Created,
		"warnings": len(result.ChildWarnings),
	})
	return result, nil
}

func (a *PostgresPropertyAdapter) upsertCoreRow(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return &domain.PersistenceError{Op: "begin core row transaction", Err: err}
	}
	defer tx.Rollback(ctx)

	var gh string
	if prop.Latitude != nil && prop.Longitude != nil {
		full := geohash.Encode(*prop.Latitude, *prop.Longitude)
		if len(full) >= geohashPrecision {
			gh = full[:geohashPrecision]
		} else {
			gh = full
		}
	}

	now := time.Now().UTC()

	// xmax = 0 означает, что строка была вставлена (INSERT)
	err = tx.QueryRow(ctx, `
		INSERT INTO properties (
			crm_id, category_id, sub_category_id, purpose_id, status_id,
			price, area, lot_area, latitude, longitude, geohash, postal_code,
			raw_payload, send_date, update_date, last_synced_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16
		)
		ON CONFLICT (crm_id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			sub_category_id = EXCLUDED.sub_category_id,
			purpose_id = EXCLUDED.purpose_id,
			status_id = EXCLUDED.status_id,
			price = EXCLUDED.price,
			area = EXCLUDED.area,
			lot_area = EXCLUDED.lot_area,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			geohash = EXCLUDED.geohash,
			postal_code = EXCLUDED.postal_code,
			raw_payload = EXCLUDED.raw_payload,
			send_date = EXCLUDED.send_date,
			update_date = EXCLUDED.update_date,
			last_synced_at = EXCLUDED.last_synced_at
		RETURNING id, (xmax = 0) AS inserted;
	`,
		prop.PropertyID, prop.CategoryID, prop.SubCategoryID, prop.PurposeID, prop.StatusID,
		*prop.Price, prop.Area, prop.LotArea, prop.Latitude, prop.Longitude, gh, prop.PostalCode,
		prop.Raw, prop.SendDate, prop.UpdateDate, now,
	).Scan(&result.LocalID, &result.Created)

	if err != nil {
		return &domain.PersistenceError{Op: "upsert core property row", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.PersistenceError{Op: "commit core property row", Err: err}
	}
	return nil
}
