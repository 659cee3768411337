package model

type Category string

const (
	CategoryInflation  Category = "inflation"
	CategoryGrowth     Category = "growth"
	CategoryEmployment Category = "employment"
	CategoryExternal   Category = "external"
	CategoryMonetary   Category = "monetary"
	CategoryMarkets    Category = "markets"
	CategoryFiscal     Category = "fiscal"
)

type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqBiWeekly  Frequency = "bi-weekly"
	FreqMonthly   Frequency = "monthly"
	FreqBiMonthly Frequency = "bi-monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqAnnual    Frequency = "annual"
)

// SubAnnual reports whether the cadence is finer than quarterly.
func (f Frequency) SubAnnual() bool {
	switch f {
	case FreqQuarterly, FreqAnnual:
		return false
	default:
		return true
	}
}

type Transform string

const (
	TransformLevel Transform = "level"
	TransformYoY   Transform = "yoy"
	TransformMoM   Transform = "mom"
)

type Status string

const (
	StatusHeating Status = "heating"
	StatusCooling Status = "cooling"
	StatusWatch   Status = "watch"
	StatusNeutral Status = "neutral"
)

type SourceID string

const (
	SourceMoSPI     SourceID = "mospi"
	SourceRBI       SourceID = "rbi"
	SourceNSE       SourceID = "nse"
	SourceSynthetic SourceID = "synthetic"
)

// SourceDescriptor identifies one origin in the priority chain.
type SourceDescriptor struct {
	ID       SourceID
	Name     string
	Priority int
}

// Indicator is static metadata for one trackable quantity. The catalog owns
// these; nothing mutates them at runtime.
type Indicator struct {
	ID          string
	Name        string
	Category    Category
	Unit        string
	Frequency   Frequency
	Attribution string
	Description string
	Transforms  []Transform
	Tags        []string

	// Random-walk parameters for the synthetic baseline.
	SyntheticBase       float64
	SyntheticVolatility float64
	SyntheticTrend      float64
}

func (i Indicator) SupportsTransform(t Transform) bool {
	for _, candidate := range i.Transforms {
		if candidate == t {
			return true
		}
	}
	return false
}

// Observation is one dated sample for one indicator from one source.
// Prior, Forecast and Surprise are optional.
type Observation struct {
	IndicatorID string
	Date        string
	Value       float64
	Prior       *float64
	Forecast    *float64
	Surprise    *float64
}

// SeriesPoint is one (date, value) pair. Dates are ISO dates, or year-month
// strings for monthly-and-coarser cadences.
type SeriesPoint struct {
	Date  string
	Value float64
}
