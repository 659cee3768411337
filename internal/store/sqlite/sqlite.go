package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"macropulse/internal/model"
	"macropulse/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SeedIndicators(ctx context.Context, indicators []model.Indicator) error {
	if len(indicators) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indicators (
			id, name, category, unit, frequency, attribution, description,
			transforms, tags, synthetic_base, synthetic_volatility, synthetic_trend
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id)
		DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			unit = excluded.unit,
			frequency = excluded.frequency,
			attribution = excluded.attribution,
			description = excluded.description,
			transforms = excluded.transforms,
			tags = excluded.tags,
			synthetic_base = excluded.synthetic_base,
			synthetic_volatility = excluded.synthetic_volatility,
			synthetic_trend = excluded.synthetic_trend
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ind := range indicators {
		transforms := make([]string, 0, len(ind.Transforms))
		for _, t := range ind.Transforms {
			transforms = append(transforms, string(t))
		}
		_, err = stmt.ExecContext(
			ctx,
			ind.ID,
			ind.Name,
			string(ind.Category),
			ind.Unit,
			string(ind.Frequency),
			ind.Attribution,
			ind.Description,
			strings.Join(transforms, ","),
			strings.Join(ind.Tags, ","),
			ind.SyntheticBase,
			ind.SyntheticVolatility,
			ind.SyntheticTrend,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) ListIndicators(ctx context.Context) ([]model.Indicator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, unit, frequency, attribution, description,
			transforms, tags, synthetic_base, synthetic_volatility, synthetic_trend
		FROM indicators
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indicators := make([]model.Indicator, 0)
	for rows.Next() {
		var ind model.Indicator
		var category, frequency, transforms, tags string
		if err := rows.Scan(
			&ind.ID, &ind.Name, &category, &ind.Unit, &frequency,
			&ind.Attribution, &ind.Description, &transforms, &tags,
			&ind.SyntheticBase, &ind.SyntheticVolatility, &ind.SyntheticTrend,
		); err != nil {
			return nil, err
		}
		ind.Category = model.Category(category)
		ind.Frequency = model.Frequency(frequency)
		for _, t := range splitList(transforms) {
			ind.Transforms = append(ind.Transforms, model.Transform(t))
		}
		ind.Tags = splitList(tags)
		indicators = append(indicators, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return indicators, nil
}

var _ store.Store = (*Store)(nil)

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS indicators (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			unit TEXT NOT NULL,
			frequency TEXT NOT NULL,
			attribution TEXT NOT NULL,
			description TEXT NOT NULL,
			transforms TEXT NOT NULL,
			tags TEXT NOT NULL,
			synthetic_base REAL NOT NULL,
			synthetic_volatility REAL NOT NULL,
			synthetic_trend REAL NOT NULL
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
