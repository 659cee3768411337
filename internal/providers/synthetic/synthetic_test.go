package synthetic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
	"macropulse/internal/providers"
	"macropulse/internal/series"
)

func newProvider() *Provider {
	return New(catalog.Default())
}

func TestSeriesPointCounts(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	tests := []struct {
		id   string
		want int
	}{
		{"cpi-inflation", 24},      // monthly
		{"nifty-50", 24},           // daily
		{"forex-reserves", 24},     // weekly
		{"bank-credit-growth", 24}, // bi-weekly
		{"repo-rate", 24},          // bi-monthly
		{"gdp-growth", 12},         // quarterly
	}
	for _, tt := range tests {
		points, err := p.Series(ctx, tt.id, providers.SeriesOptions{})
		require.NoError(t, err, tt.id)
		assert.Len(t, points, tt.want, tt.id)
	}
}

func TestSeriesDatesAscend(t *testing.T) {
	p := newProvider()

	for _, id := range []string{"cpi-inflation", "nifty-50", "gdp-growth"} {
		points, err := p.Series(context.Background(), id, providers.SeriesOptions{})
		require.NoError(t, err)
		for i := 1; i < len(points); i++ {
			assert.Less(t, points[i-1].Date, points[i].Date, id)
		}
	}
}

func TestSeriesValuesStayNearBase(t *testing.T) {
	p := newProvider()

	points, err := p.Series(context.Background(), "cpi-inflation", providers.SeriesOptions{})
	require.NoError(t, err)

	// base 5.1, volatility 0.4, trend -0.02: 24 steps cannot wander more
	// than 24 * (0.52*0.4 + 0.02) from the base.
	const base, bound = 5.1, 24 * (0.52*0.4 + 0.02)
	for _, point := range points {
		assert.InDelta(t, base, point.Value, bound+0.01)
	}
}

func TestSeriesValuesAreRounded(t *testing.T) {
	p := newProvider()

	points, err := p.Series(context.Background(), "gst-collections", providers.SeriesOptions{})
	require.NoError(t, err)
	for _, point := range points {
		assert.Equal(t, series.Round2(point.Value), point.Value)
	}
}

func TestSeriesIsCached(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	first, err := p.Series(ctx, "cpi-inflation", providers.SeriesOptions{})
	require.NoError(t, err)
	second, err := p.Series(ctx, "cpi-inflation", providers.SeriesOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSeriesTransform(t *testing.T) {
	p := newProvider()

	points, err := p.Series(context.Background(), "cpi-inflation", providers.SeriesOptions{Transform: model.TransformMoM})
	require.NoError(t, err)
	assert.Len(t, points, 23)
}

func TestSeriesUnknownIndicator(t *testing.T) {
	p := newProvider()

	_, err := p.Series(context.Background(), "nope", providers.SeriesOptions{})
	assert.ErrorIs(t, err, providers.ErrUnsupportedEntity)
}

func TestLatest(t *testing.T) {
	p := newProvider()

	observation, err := p.Latest(context.Background(), "cpi-inflation")
	require.NoError(t, err)
	assert.Equal(t, "cpi-inflation", observation.IndicatorID)
	assert.NotEmpty(t, observation.Date)
	require.NotNil(t, observation.Prior)
	require.NotNil(t, observation.Forecast)
	require.NotNil(t, observation.Surprise)
	assert.Equal(t, *observation.Prior, *observation.Forecast)
	assert.Equal(t, series.Round2(observation.Value-*observation.Forecast), *observation.Surprise)
}

func TestLatestMatchesCachedSeries(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	points, err := p.Series(ctx, "usd-inr", providers.SeriesOptions{})
	require.NoError(t, err)
	observation, err := p.Latest(ctx, "usd-inr")
	require.NoError(t, err)

	last := points[len(points)-1]
	assert.Equal(t, last.Date, observation.Date)
	assert.Equal(t, last.Value, observation.Value)
}

func TestNextScheduledUpdate(t *testing.T) {
	p := newProvider()

	next, err := p.NextScheduledUpdate(context.Background(), "cpi-inflation")
	require.NoError(t, err)
	require.NotNil(t, next)

	_, err = p.NextScheduledUpdate(context.Background(), "nope")
	assert.ErrorIs(t, err, providers.ErrUnsupportedEntity)
}

func TestSupports(t *testing.T) {
	p := newProvider()
	assert.True(t, p.Supports("nifty-50"))
	assert.False(t, p.Supports("nope"))
}
