package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSeedAndListRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seeded := catalog.Default().List(catalog.Filter{})
	require.NoError(t, store.SeedIndicators(ctx, seeded))

	listed, err := store.ListIndicators(ctx)
	require.NoError(t, err)
	require.Len(t, listed, len(seeded))

	byID := make(map[string]model.Indicator, len(listed))
	for _, ind := range listed {
		byID[ind.ID] = ind
	}
	want, err := catalog.Default().Get("cpi-inflation")
	require.NoError(t, err)
	got := byID["cpi-inflation"]
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Category, got.Category)
	assert.Equal(t, want.Frequency, got.Frequency)
	assert.Equal(t, want.Transforms, got.Transforms)
	assert.Equal(t, want.Tags, got.Tags)
	assert.Equal(t, want.SyntheticBase, got.SyntheticBase)
	assert.Equal(t, want.SyntheticVolatility, got.SyntheticVolatility)
}

func TestSeedUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ind := model.Indicator{
		ID: "cpi-inflation", Name: "Old Name",
		Category: model.CategoryInflation, Unit: "%", Frequency: model.FreqMonthly,
		Attribution: "x", Description: "y",
		Transforms: []model.Transform{model.TransformLevel},
	}
	require.NoError(t, store.SeedIndicators(ctx, []model.Indicator{ind}))

	ind.Name = "New Name"
	ind.SyntheticBase = 4.2
	require.NoError(t, store.SeedIndicators(ctx, []model.Indicator{ind}))

	listed, err := store.ListIndicators(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "New Name", listed[0].Name)
	assert.Equal(t, 4.2, listed[0].SyntheticBase)
}

func TestSeedEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SeedIndicators(context.Background(), nil))

	listed, err := store.ListIndicators(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
