package catalog

import (
	"fmt"
	"strings"

	"macropulse/internal/model"
)

// Filter narrows a catalog listing. Zero value matches everything.
type Filter struct {
	Category model.Category
	Tag      string
	Query    string
}

func (f Filter) matches(ind model.Indicator) bool {
	if f.Category != "" && ind.Category != f.Category {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range ind.Tags {
			if strings.EqualFold(tag, f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Query != "" {
		query := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(ind.Name), query) &&
			!strings.Contains(strings.ToLower(ind.ID), query) &&
			!strings.Contains(strings.ToLower(ind.Description), query) {
			return false
		}
	}
	return true
}

// Catalog is the read-only set of indicators defined at process start.
type Catalog struct {
	indicators []model.Indicator
	byID       map[string]model.Indicator
}

func New(indicators []model.Indicator) *Catalog {
	byID := make(map[string]model.Indicator, len(indicators))
	for _, ind := range indicators {
		byID[ind.ID] = ind
	}
	copied := make([]model.Indicator, len(indicators))
	copy(copied, indicators)
	return &Catalog{indicators: copied, byID: byID}
}

// Default returns the built-in indicator catalog.
func Default() *Catalog {
	return New(defaultIndicators())
}

func (c *Catalog) List(filter Filter) []model.Indicator {
	out := make([]model.Indicator, 0, len(c.indicators))
	for _, ind := range c.indicators {
		if filter.matches(ind) {
			out = append(out, ind)
		}
	}
	return out
}

func (c *Catalog) Get(id string) (model.Indicator, error) {
	ind, ok := c.byID[id]
	if !ok {
		return model.Indicator{}, fmt.Errorf("catalog: unknown indicator %q", id)
	}
	return ind, nil
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.indicators)
}

func levelOnly() []model.Transform {
	return []model.Transform{model.TransformLevel}
}

func allTransforms() []model.Transform {
	return []model.Transform{model.TransformLevel, model.TransformYoY, model.TransformMoM}
}

func defaultIndicators() []model.Indicator {
	return []model.Indicator{
		{
			ID:          "cpi-inflation",
			Name:        "CPI Inflation",
			Category:    model.CategoryInflation,
			Unit:        "% y/y",
			Frequency:   model.FreqMonthly,
			Attribution: "Ministry of Statistics and Programme Implementation",
			Description: "Headline consumer price inflation, combined (rural + urban).",
			Transforms:  allTransforms(),
			Tags:        []string{"prices", "headline"},

			SyntheticBase:       5.1,
			SyntheticVolatility: 0.4,
			SyntheticTrend:      -0.02,
		},
		{
			ID:          "wpi-inflation",
			Name:        "WPI Inflation",
			Category:    model.CategoryInflation,
			Unit:        "% y/y",
			Frequency:   model.FreqMonthly,
			Attribution: "Office of the Economic Adviser, DPIIT",
			Description: "Wholesale price inflation, all commodities.",
			Transforms:  allTransforms(),
			Tags:        []string{"prices", "wholesale"},

			SyntheticBase:       3.2,
			SyntheticVolatility: 0.6,
			SyntheticTrend:      0.0,
		},
		{
			ID:          "iip-growth",
			Name:        "Industrial Production",
			Category:    model.CategoryGrowth,
			Unit:        "% y/y",
			Frequency:   model.FreqMonthly,
			Attribution: "Ministry of Statistics and Programme Implementation",
			Description: "Index of Industrial Production, general index growth.",
			Transforms:  allTransforms(),
			Tags:        []string{"output", "industry"},

			SyntheticBase:       4.5,
			SyntheticVolatility: 1.2,
			SyntheticTrend:      0.01,
		},
		{
			ID:          "gdp-growth",
			Name:        "Real GDP Growth",
			Category:    model.CategoryGrowth,
			Unit:        "% y/y",
			Frequency:   model.FreqQuarterly,
			Attribution: "National Statistical Office",
			Description: "Quarterly real gross domestic product growth at constant prices.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformYoY},
			Tags:        []string{"output", "headline"},

			SyntheticBase:       6.8,
			SyntheticVolatility: 0.5,
			SyntheticTrend:      0.0,
		},
		{
			ID:          "unemployment-rate",
			Name:        "Unemployment Rate",
			Category:    model.CategoryEmployment,
			Unit:        "%",
			Frequency:   model.FreqMonthly,
			Attribution: "Centre for Monitoring Indian Economy",
			Description: "All-India unemployment rate, 30-day moving average.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformMoM},
			Tags:        []string{"labour"},

			SyntheticBase:       7.8,
			SyntheticVolatility: 0.3,
			SyntheticTrend:      0.0,
		},
		{
			ID:          "repo-rate",
			Name:        "Policy Repo Rate",
			Category:    model.CategoryMonetary,
			Unit:        "%",
			Frequency:   model.FreqBiMonthly,
			Attribution: "Reserve Bank of India",
			Description: "Monetary Policy Committee repo rate decision.",
			Transforms:  levelOnly(),
			Tags:        []string{"policy", "rates"},

			SyntheticBase:       6.5,
			SyntheticVolatility: 0.05,
			SyntheticTrend:      0.0,
		},
		{
			ID:          "forex-reserves",
			Name:        "Foreign Exchange Reserves",
			Category:    model.CategoryExternal,
			Unit:        "USD bn",
			Frequency:   model.FreqWeekly,
			Attribution: "Reserve Bank of India",
			Description: "Total foreign exchange reserves including gold and SDRs.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformMoM},
			Tags:        []string{"external", "reserves"},

			SyntheticBase:       642.0,
			SyntheticVolatility: 3.5,
			SyntheticTrend:      0.4,
		},
		{
			ID:          "trade-balance",
			Name:        "Merchandise Trade Balance",
			Category:    model.CategoryExternal,
			Unit:        "USD bn",
			Frequency:   model.FreqMonthly,
			Attribution: "Ministry of Commerce and Industry",
			Description: "Monthly merchandise exports minus imports.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformMoM},
			Tags:        []string{"external", "trade"},

			SyntheticBase:       -20.5,
			SyntheticVolatility: 2.0,
			SyntheticTrend:      0.0,
		},
		{
			ID:          "gst-collections",
			Name:        "GST Collections",
			Category:    model.CategoryFiscal,
			Unit:        "INR bn",
			Frequency:   model.FreqMonthly,
			Attribution: "Ministry of Finance",
			Description: "Gross goods and services tax collections.",
			Transforms:  allTransforms(),
			Tags:        []string{"fiscal", "revenue"},

			SyntheticBase:       1720.0,
			SyntheticVolatility: 45.0,
			SyntheticTrend:      6.0,
		},
		{
			ID:          "bank-credit-growth",
			Name:        "Bank Credit Growth",
			Category:    model.CategoryMonetary,
			Unit:        "% y/y",
			Frequency:   model.FreqBiWeekly,
			Attribution: "Reserve Bank of India",
			Description: "Scheduled commercial bank non-food credit growth, fortnightly.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformMoM},
			Tags:        []string{"credit", "banking"},

			SyntheticBase:       15.2,
			SyntheticVolatility: 0.5,
			SyntheticTrend:      0.0,
		},
		{
			ID:          "nifty-50",
			Name:        "Nifty 50",
			Category:    model.CategoryMarkets,
			Unit:        "index",
			Frequency:   model.FreqDaily,
			Attribution: "National Stock Exchange of India",
			Description: "Benchmark equity index closing level.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformMoM},
			Tags:        []string{"equities"},

			SyntheticBase:       24400.0,
			SyntheticVolatility: 180.0,
			SyntheticTrend:      12.0,
		},
		{
			ID:          "india-vix",
			Name:        "India VIX",
			Category:    model.CategoryMarkets,
			Unit:        "index",
			Frequency:   model.FreqDaily,
			Attribution: "National Stock Exchange of India",
			Description: "Implied volatility index derived from Nifty option prices.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformMoM},
			Tags:        []string{"equities", "volatility"},

			SyntheticBase:       13.8,
			SyntheticVolatility: 0.9,
			SyntheticTrend:      0.0,
		},
		{
			ID:          "usd-inr",
			Name:        "USD/INR",
			Category:    model.CategoryMarkets,
			Unit:        "INR",
			Frequency:   model.FreqDaily,
			Attribution: "Reserve Bank of India reference rate",
			Description: "Rupees per US dollar, reference rate.",
			Transforms:  []model.Transform{model.TransformLevel, model.TransformMoM},
			Tags:        []string{"currency"},

			SyntheticBase:       83.4,
			SyntheticVolatility: 0.2,
			SyntheticTrend:      0.01,
		},
	}
}
