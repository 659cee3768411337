package providers

import (
	"context"
	"time"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
)

// SeriesOptions narrows and transforms a series request. From/To are
// inclusive date bounds in the same string format the series uses; empty
// means unbounded. Transform defaults to level.
type SeriesOptions struct {
	From      string
	To        string
	Transform model.Transform
}

// Provider is the uniform read contract every source implements. The router
// treats all implementations polymorphically; adapters own their upstream's
// auth, encoding and response shape behind this boundary.
type Provider interface {
	Name() model.SourceID

	// ListIndicators returns static metadata. Only the catalog-holding
	// implementation returns a non-empty list; live adapters defer to it.
	ListIndicators(ctx context.Context, filter catalog.Filter) ([]model.Indicator, error)

	// Latest returns the most recent observation with the preceding one as
	// Prior. Fails with ErrUnsupportedEntity outside the capability set and
	// ErrUpstreamUnavailable on network or payload trouble.
	Latest(ctx context.Context, indicatorID string) (model.Observation, error)

	// Series returns date-ordered points, range-filtered before transform.
	// Insufficient lookback history for YoY/MoM yields an empty series.
	Series(ctx context.Context, indicatorID string, opts SeriesOptions) ([]model.SeriesPoint, error)

	// NextScheduledUpdate returns the next expected release date, or nil
	// when no schedule can be inferred.
	NextScheduledUpdate(ctx context.Context, indicatorID string) (*time.Time, error)

	// Supports is the capability predicate for routing decisions.
	Supports(indicatorID string) bool

	// CheckHealth hits the source's cheapest endpoint. Used by the prober
	// only; any error means unavailable.
	CheckHealth(ctx context.Context) error
}
