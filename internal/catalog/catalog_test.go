package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macropulse/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	cat := Default()
	assert.Equal(t, 13, cat.Len())

	ind, err := cat.Get("cpi-inflation")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryInflation, ind.Category)
	assert.Equal(t, model.FreqMonthly, ind.Frequency)
	assert.Positive(t, ind.SyntheticVolatility)

	assert.True(t, cat.Has("nifty-50"))
	assert.False(t, cat.Has("shadow-rate"))

	_, err = cat.Get("shadow-rate")
	assert.Error(t, err)
}

func TestListFilterByCategory(t *testing.T) {
	cat := Default()

	markets := cat.List(Filter{Category: model.CategoryMarkets})
	require.NotEmpty(t, markets)
	for _, ind := range markets {
		assert.Equal(t, model.CategoryMarkets, ind.Category)
	}

	assert.Len(t, cat.List(Filter{}), cat.Len())
}

func TestListFilterByTag(t *testing.T) {
	cat := Default()

	tagged := cat.List(Filter{Tag: "PRICES"}) // case-insensitive
	require.NotEmpty(t, tagged)
	for _, ind := range tagged {
		assert.Contains(t, []string{"cpi-inflation", "wpi-inflation"}, ind.ID)
	}
}

func TestListFilterByQuery(t *testing.T) {
	cat := Default()

	hits := cat.List(Filter{Query: "inflation"})
	require.NotEmpty(t, hits)
	ids := make([]string, 0, len(hits))
	for _, ind := range hits {
		ids = append(ids, ind.ID)
	}
	assert.Contains(t, ids, "cpi-inflation")

	assert.Empty(t, cat.List(Filter{Query: "cryptocurrency"}))
}

func TestNewCopiesInput(t *testing.T) {
	indicators := []model.Indicator{{ID: "a", Name: "A"}}
	cat := New(indicators)

	indicators[0].Name = "mutated"
	ind, err := cat.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", ind.Name)
}

func TestEveryDefaultIndicatorIsWellFormed(t *testing.T) {
	for _, ind := range Default().List(Filter{}) {
		assert.NotEmpty(t, ind.ID)
		assert.NotEmpty(t, ind.Name)
		assert.NotEmpty(t, ind.Unit)
		assert.NotEmpty(t, ind.Attribution)
		assert.NotEmpty(t, ind.Transforms, ind.ID)
		assert.True(t, ind.SupportsTransform(model.TransformLevel), ind.ID)
	}
}
