package synthetic

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
	"macropulse/internal/providers"
	"macropulse/internal/schedule"
	"macropulse/internal/series"
)

const (
	subAnnualPoints = 24
	coarsePoints    = 12

	cacheSize = 256
	cacheTTL  = 10 * time.Minute

	// Walk step: (uniform(0,1) - driftOffset) * volatility + trend. The
	// offset below 0.5 gives the walk a slight upward bias.
	driftOffset = 0.48
)

// Provider is the always-available baseline source. It holds the indicator
// catalog and fabricates plausible series by a per-indicator random walk.
// Generation is stateless and reentrant; only the series cache is shared.
type Provider struct {
	catalog *catalog.Catalog
	cache   *expirable.LRU[string, []model.SeriesPoint]
}

func New(cat *catalog.Catalog) *Provider {
	return &Provider{
		catalog: cat,
		cache:   expirable.NewLRU[string, []model.SeriesPoint](cacheSize, nil, cacheTTL),
	}
}

func (p *Provider) Name() model.SourceID {
	return model.SourceSynthetic
}

// ListIndicators is non-empty only here: the baseline is the
// catalog-holding implementation, live adapters defer to it.
func (p *Provider) ListIndicators(_ context.Context, filter catalog.Filter) ([]model.Indicator, error) {
	return p.catalog.List(filter), nil
}

func (p *Provider) Supports(indicatorID string) bool {
	return p.catalog.Has(indicatorID)
}

func (p *Provider) CheckHealth(_ context.Context) error {
	return nil
}

func (p *Provider) Latest(ctx context.Context, indicatorID string) (model.Observation, error) {
	points, err := p.Series(ctx, indicatorID, providers.SeriesOptions{})
	if err != nil {
		return model.Observation{}, err
	}
	if len(points) == 0 {
		return model.Observation{}, fmt.Errorf("%w: synthetic series for %s came back empty", providers.ErrMalformedResponse, indicatorID)
	}

	last := points[len(points)-1]
	observation := model.Observation{
		IndicatorID: indicatorID,
		Date:        last.Date,
		Value:       last.Value,
	}
	if len(points) >= 2 {
		prior := points[len(points)-2].Value
		observation.Prior = &prior
		forecast := series.Round2(prior)
		surprise := series.Round2(last.Value - forecast)
		observation.Forecast = &forecast
		observation.Surprise = &surprise
	}
	return observation, nil
}

func (p *Provider) Series(_ context.Context, indicatorID string, opts providers.SeriesOptions) ([]model.SeriesPoint, error) {
	ind, err := p.catalog.Get(indicatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", providers.ErrUnsupportedEntity, indicatorID)
	}

	points, ok := p.cache.Get(indicatorID)
	if !ok {
		points = generate(ind)
		p.cache.Add(indicatorID, points)
	}

	copied := make([]model.SeriesPoint, len(points))
	copy(copied, points)
	return series.ApplyTransform(copied, ind.Frequency, opts.From, opts.To, opts.Transform), nil
}

func (p *Provider) NextScheduledUpdate(_ context.Context, indicatorID string) (*time.Time, error) {
	ind, err := p.catalog.Get(indicatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", providers.ErrUnsupportedEntity, indicatorID)
	}
	return schedule.NextUpdate(ind, time.Now()), nil
}

func generate(ind model.Indicator) []model.SeriesPoint {
	count := subAnnualPoints
	if !ind.Frequency.SubAnnual() {
		count = coarsePoints
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dates := walkDates(ind.Frequency, count)
	points := make([]model.SeriesPoint, count)
	value := ind.SyntheticBase
	for i := 0; i < count; i++ {
		points[i] = model.SeriesPoint{Date: dates[i], Value: series.Round2(value)}
		value += (rng.Float64()-driftOffset)*ind.SyntheticVolatility + ind.SyntheticTrend
	}
	return points
}

// walkDates produces count ascending period labels ending at the current
// period: full ISO dates for daily/weekly cadences, year-month otherwise.
func walkDates(freq model.Frequency, count int) []string {
	now := time.Now()
	dates := make([]string, count)
	switch freq {
	case model.FreqDaily:
		day := now
		for i := count - 1; i >= 0; i-- {
			dates[i] = day.Format("2006-01-02")
			day = day.AddDate(0, 0, -1)
		}
	case model.FreqWeekly:
		day := now
		for i := count - 1; i >= 0; i-- {
			dates[i] = day.Format("2006-01-02")
			day = day.AddDate(0, 0, -7)
		}
	case model.FreqBiWeekly:
		day := now
		for i := count - 1; i >= 0; i-- {
			dates[i] = day.Format("2006-01-02")
			day = day.AddDate(0, 0, -14)
		}
	default:
		months := 1
		switch freq {
		case model.FreqBiMonthly:
			months = 2
		case model.FreqQuarterly:
			months = 3
		case model.FreqAnnual:
			months = 12
		}
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := count - 1; i >= 0; i-- {
			dates[i] = month.Format("2006-01")
			month = month.AddDate(0, -months, 0)
		}
	}
	return dates
}

var _ providers.Provider = (*Provider)(nil)
