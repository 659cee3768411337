package store

import (
	"context"

	"macropulse/internal/model"
)

// Store persists indicator catalog metadata so deployments can override the
// built-in catalog without a rebuild. Observations are never persisted.
type Store interface {
	SeedIndicators(ctx context.Context, indicators []model.Indicator) error
	ListIndicators(ctx context.Context) ([]model.Indicator, error)
	Close() error
}

