package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
	"macropulse/internal/providers"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Mode)
	assert.Equal(t, []string{"mospi", "rbi", "nse"}, cfg.SourcePriority)
	assert.False(t, cfg.StrictEmptySeries)
	assert.Equal(t, 5*time.Minute, cfg.ProbeTTL)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
}

func TestParseFromEnvironment(t *testing.T) {
	t.Setenv("DASH_PROVIDER_MODE", "hybrid")
	t.Setenv("DASH_SOURCE_PRIORITY", "rbi,mospi")
	t.Setenv("DASH_STRICT_EMPTY_SERIES", "true")
	t.Setenv("DASH_PROBE_TTL", "90s")
	t.Setenv("DASH_MOSPI_API_KEY", "secret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "hybrid", cfg.Mode)
	assert.Equal(t, []string{"rbi", "mospi"}, cfg.SourcePriority)
	assert.True(t, cfg.StrictEmptySeries)
	assert.Equal(t, 90*time.Second, cfg.ProbeTTL)
	assert.Equal(t, "secret", cfg.MoSPIAPIKey)
}

func TestResolvedMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"mock", ModeMock},
		{"mospi", ModeMoSPI},
		{"rbi", ModeRBI},
		{"nse", ModeNSE},
		{"hybrid", ModeHybrid},
		{"  Hybrid ", ModeHybrid},
		{"production", ModeMock},
		{"", ModeMock},
	}
	for _, tt := range tests {
		cfg := Config{Mode: tt.in}
		assert.Equal(t, tt.want, cfg.ResolvedMode(nil), tt.in)
	}
}

func TestPriorityOrderSkipsUnknown(t *testing.T) {
	cfg := Config{SourcePriority: []string{"rbi", "bloomberg", "nse"}}
	assert.Equal(t, []model.SourceID{model.SourceRBI, model.SourceNSE}, cfg.priorityOrder(nil))

	cfg = Config{SourcePriority: []string{"bloomberg"}}
	assert.Equal(t, []model.SourceID{model.SourceMoSPI, model.SourceRBI, model.SourceNSE}, cfg.priorityOrder(nil))
}

func TestBuildMockModeServesSynthetic(t *testing.T) {
	cfg := Config{Mode: "mock"}
	r := cfg.Build(catalog.Default(), nil)
	ctx := context.Background()

	_, descriptor := r.Resolve(ctx, "cpi-inflation")
	assert.Equal(t, model.SourceSynthetic, descriptor.ID)

	points, err := r.Series(ctx, "cpi-inflation", providers.SeriesOptions{})
	require.NoError(t, err)
	assert.Len(t, points, 24)
}

func TestBuildUnknownModeFallsBackToMock(t *testing.T) {
	cfg := Config{Mode: "bloomberg-terminal"}
	r := cfg.Build(catalog.Default(), nil)

	_, descriptor := r.Resolve(context.Background(), "nifty-50")
	assert.Equal(t, model.SourceSynthetic, descriptor.ID)
}

func TestBuildSingleSourceModeExpectedSource(t *testing.T) {
	cfg := Config{Mode: "nse"}
	r := cfg.Build(catalog.Default(), nil)

	// Capability-wise the chain holds only the market feed; everything it
	// cannot serve is expected from the baseline.
	assert.Equal(t, model.SourceNSE, r.ExpectedSource("nifty-50").ID)
	assert.Equal(t, model.SourceSynthetic, r.ExpectedSource("cpi-inflation").ID)
}
