package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"macropulse/internal/catalog"
	"macropulse/internal/health"
	"macropulse/internal/model"
	"macropulse/internal/providers"
)

var sourceNames = map[model.SourceID]string{
	model.SourceMoSPI:     "Ministry of Statistics",
	model.SourceRBI:       "Reserve Bank of India",
	model.SourceNSE:       "National Stock Exchange",
	model.SourceSynthetic: "Synthetic baseline",
}

// Router walks a fixed priority order of sources per request and falls back
// to the synthetic baseline whenever a live source is unavailable, fails,
// or (by default) returns an empty series. Every catalog indicator is
// therefore always answerable.
type Router struct {
	order             []model.SourceID
	sources           map[model.SourceID]providers.Provider
	baseline          providers.Provider
	prober            *health.Prober
	strictEmptySeries bool
	logger            *slog.Logger

	mu       sync.RWMutex
	lastUsed map[string]model.SourceDescriptor
}

type Option func(*Router)

// WithStrictEmptySeries keeps a successful-but-empty upstream series
// instead of swapping in baseline data. Off by default: a populated chart
// beats an honest-but-blank one.
func WithStrictEmptySeries(strict bool) Option {
	return func(r *Router) { r.strictEmptySeries = strict }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a router over live sources in priority order (highest first)
// plus the baseline, which is always the implicit last resort.
func New(order []model.SourceID, sources []providers.Provider, baseline providers.Provider, prober *health.Prober, opts ...Option) *Router {
	byID := make(map[model.SourceID]providers.Provider, len(sources))
	for _, source := range sources {
		byID[source.Name()] = source
	}

	r := &Router{
		order:    order,
		sources:  byID,
		baseline: baseline,
		prober:   prober,
		logger:   slog.Default(),
		lastUsed: make(map[string]model.SourceDescriptor),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) descriptor(id model.SourceID) model.SourceDescriptor {
	priority := len(r.order) + 1
	for i, candidate := range r.order {
		if candidate == id {
			priority = i + 1
			break
		}
	}
	return model.SourceDescriptor{ID: id, Name: sourceNames[id], Priority: priority}
}

// Resolve picks the first capable, available source in priority order, or
// the baseline when none qualifies. Resolution always completes before the
// delegated call is issued; there is no speculative parallel dispatch.
func (r *Router) Resolve(ctx context.Context, indicatorID string) (providers.Provider, model.SourceDescriptor) {
	for _, id := range r.order {
		source, ok := r.sources[id]
		if !ok || !source.Supports(indicatorID) {
			continue
		}
		if !r.prober.IsAvailable(ctx, id) {
			continue
		}
		return source, r.descriptor(id)
	}
	return r.baseline, r.descriptor(model.SourceSynthetic)
}

// ExpectedSource is the pure capability+priority answer, ignoring live
// availability. Useful for the source-health view next to LastUsedSource.
func (r *Router) ExpectedSource(indicatorID string) model.SourceDescriptor {
	for _, id := range r.order {
		if source, ok := r.sources[id]; ok && source.Supports(indicatorID) {
			return r.descriptor(id)
		}
	}
	return r.descriptor(model.SourceSynthetic)
}

// LastUsedSource reports which source actually answered the most recent
// request for the indicator.
func (r *Router) LastUsedSource(indicatorID string) model.SourceDescriptor {
	r.mu.RLock()
	descriptor, ok := r.lastUsed[indicatorID]
	r.mu.RUnlock()
	if !ok {
		return r.ExpectedSource(indicatorID)
	}
	return descriptor
}

func (r *Router) recordUse(indicatorID string, descriptor model.SourceDescriptor) {
	r.mu.Lock()
	r.lastUsed[indicatorID] = descriptor
	r.mu.Unlock()
}

// ListIndicators serves catalog metadata through the catalog-holding
// baseline source.
func (r *Router) ListIndicators(ctx context.Context, filter catalog.Filter) ([]model.Indicator, error) {
	return r.baseline.ListIndicators(ctx, filter)
}

// RefreshAll resets availability state so the next calls re-probe.
func (r *Router) RefreshAll() {
	r.prober.RefreshAll()
}

// SourceHealth snapshots the prober's records for the health indicator.
func (r *Router) SourceHealth() map[model.SourceID]health.Record {
	return r.prober.Records()
}

func (r *Router) Latest(ctx context.Context, indicatorID string) (model.Observation, error) {
	source, descriptor := r.Resolve(ctx, indicatorID)
	observation, err := source.Latest(ctx, indicatorID)
	if err != nil && descriptor.ID != model.SourceSynthetic {
		r.logFallback(descriptor.ID, "latest", indicatorID, err)
		descriptor = r.descriptor(model.SourceSynthetic)
		observation, err = r.baseline.Latest(ctx, indicatorID)
	}
	if err != nil {
		// Baseline failures mean the id is not in the catalog; propagate.
		return model.Observation{}, err
	}
	r.recordUse(indicatorID, descriptor)
	return observation, nil
}

func (r *Router) Series(ctx context.Context, indicatorID string, opts providers.SeriesOptions) ([]model.SeriesPoint, error) {
	source, descriptor := r.Resolve(ctx, indicatorID)
	points, err := source.Series(ctx, indicatorID, opts)

	if descriptor.ID != model.SourceSynthetic {
		// An empty result from a live source is indistinguishable from a
		// source that has no data for this id; the caller always needs a
		// renderable chart.
		if err == nil && len(points) == 0 && !r.strictEmptySeries {
			r.logger.Info("empty upstream series, using baseline",
				slog.String("source", string(descriptor.ID)),
				slog.String("indicator", indicatorID),
			)
			descriptor = r.descriptor(model.SourceSynthetic)
			points, err = r.baseline.Series(ctx, indicatorID, opts)
		} else if err != nil {
			r.logFallback(descriptor.ID, "series", indicatorID, err)
			descriptor = r.descriptor(model.SourceSynthetic)
			points, err = r.baseline.Series(ctx, indicatorID, opts)
		}
	}
	if err != nil {
		return nil, err
	}
	r.recordUse(indicatorID, descriptor)
	return points, nil
}

func (r *Router) NextScheduledUpdate(ctx context.Context, indicatorID string) (*time.Time, error) {
	source, descriptor := r.Resolve(ctx, indicatorID)
	next, err := source.NextScheduledUpdate(ctx, indicatorID)
	if err != nil && descriptor.ID != model.SourceSynthetic {
		r.logFallback(descriptor.ID, "nextScheduledUpdate", indicatorID, err)
		descriptor = r.descriptor(model.SourceSynthetic)
		next, err = r.baseline.NextScheduledUpdate(ctx, indicatorID)
	}
	if err != nil {
		return nil, err
	}
	r.recordUse(indicatorID, descriptor)
	return next, nil
}

func (r *Router) logFallback(source model.SourceID, operation, indicatorID string, err error) {
	r.logger.Warn("source call failed, falling back to baseline",
		slog.String("source", string(source)),
		slog.String("operation", operation),
		slog.String("indicator", indicatorID),
		slog.String("error", err.Error()),
	)
}
