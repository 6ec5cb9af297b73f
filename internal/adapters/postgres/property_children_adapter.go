package postgres

import (
	"context"
	"fmt"

	"crm-sync-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// Замена дочерних коллекций объекта. Каждая коллекция — отдельная
// транзакция "удалить все + вставить все": частичного состояния
// (старые строки вперемешку с новыми) увидеть нельзя, а провал одной
// коллекции не трогает остальные.

func (a *PostgresPropertyAdapter) replaceImages(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_images WHERE property_id = $1`, result.LocalID); err != nil {
		return fmt.Errorf("delete old images: %w", err)
	}

	if len(prop.Images) > 0 {
		rows := make([][]interface{}, 0, len(prop.Images))
		for _, img := range prop.Images {
			rows = append(rows, []interface{}{result.LocalID, img.SortOrder, img.URL, img.ThumbnailURL})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"property_images"},
			[]string{"property_id", "sort_order", "url", "thumbnail_url"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy images: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (a *PostgresPropertyAdapter) replaceCharacteristics(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_characteristics WHERE property_id = $1`, result.LocalID); err != nil {
		return fmt.Errorf("delete old characteristics: %w", err)
	}

	if len(prop.Characteristics) > 0 {
		rows := make([][]interface{}, 0, len(prop.Characteristics))
		for _, c := range prop.Characteristics {
			rows = append(rows, []interface{}{result.LocalID, c.Key, c.Value, c.LanguageID})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"property_characteristics"},
			[]string{"property_id", "key", "value", "language_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy characteristics: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (a *PostgresPropertyAdapter) replacePartner(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_partners WHERE property_id = $1`, result.LocalID); err != nil {
		return fmt.Errorf("delete old partner: %w", err)
	}

	if prop.Partner != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO property_partners (property_id, partner_id, name, email, phone)
			VALUES ($1, $2, $3, $4, $5)
		`, result.LocalID, prop.Partner.PartnerID, prop.Partner.Name, prop.Partner.Email, prop.Partner.Phone)
		if err != nil {
			return fmt.Errorf("insert partner: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (a *PostgresPropertyAdapter) replaceDistances(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_distances WHERE property_id = $1`, result.LocalID); err != nil {
		return fmt.Errorf("delete old distances: %w", err)
	}

	if len(prop.Distances) > 0 {
		rows := make([][]interface{}, 0, len(prop.Distances))
		for _, d := range prop.Distances {
			rows = append(rows, []interface{}{result.LocalID, d.LandmarkType, d.Meters})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"property_distances"},
			[]string{"property_id", "landmark_type", "meters"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy distances: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (a *PostgresPropertyAdapter) replaceParkings(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_parkings WHERE property_id = $1`, result.LocalID); err != nil {
		return fmt.Errorf("delete old parkings: %w", err)
	}

	if len(prop.Parkings) > 0 {
		rows := make([][]interface{}, 0, len(prop.Parkings))
		for _, p := range prop.Parkings {
			rows = append(rows, []interface{}{result.LocalID, p.ParkingType, p.Count, p.Area})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"property_parkings"},
			[]string{"property_id", "parking_type", "count", "area"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy parkings: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (a *PostgresPropertyAdapter) replaceBasements(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_basements WHERE property_id = $1`, result.LocalID); err != nil {
		return fmt.Errorf("delete old basements: %w", err)
	}

	if len(prop.Basements) > 0 {
		rows := make([][]interface{}, 0, len(prop.Basements))
		for _, b := range prop.Basements {
			rows = append(rows, []interface{}{result.LocalID, b.BasementType, b.Area})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"property_basements"},
			[]string{"property_id", "basement_type", "area"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy basements: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (a *PostgresPropertyAdapter) replaceFlags(ctx context.Context, prop *domain.UpstreamProperty, result *domain.UpsertResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO property_flags (property_id, is_exclusive, is_featured, has_elevator, is_furnished, is_negotiable)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (property_id) DO UPDATE SET
			is_exclusive = EXCLUDED.is_exclusive,
			is_featured = EXCLUDED.is_featured,
			has_elevator = EXCLUDED.has_elevator,
			is_furnished = EXCLUDED.is_furnished,
			is_negotiable = EXCLUDED.is_negotiable
	`, result.LocalID, prop.Flags.IsExclusive, prop.Flags.IsFeatured, prop.Flags.HasElevator, prop.Flags.IsFurnished, prop.Flags.IsNegotiable)
	if err != nil {
		return fmt.Errorf("upsert flags: %w", err)
	}

	return tx.Commit(ctx)
}
