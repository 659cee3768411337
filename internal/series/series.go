package series

import (
	"math"
	"sort"

	"macropulse/internal/model"
)

// Status thresholds are in percentage-of-value units: 0.3 means 0.3%.
const (
	heatingThreshold = 0.3
	watchThreshold   = 0.15
)

// ClassifyStatus buckets a percent change. Comparisons are strict, so an
// exact 0.3 lands in watch, not heating.
func ClassifyStatus(changePct float64) model.Status {
	switch {
	case changePct > heatingThreshold:
		return model.StatusHeating
	case changePct < -heatingThreshold:
		return model.StatusCooling
	case math.Abs(changePct) > watchThreshold:
		return model.StatusWatch
	default:
		return model.StatusNeutral
	}
}

// Round2 rounds to two decimal places, the precision every emitted value
// carries.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// ComputeYoY emits percent change against the value lookback periods
// earlier. Points with a zero denominator are skipped rather than emitted
// as NaN or Inf. Fewer than lookback+1 points yields an empty series.
func ComputeYoY(points []model.SeriesPoint, lookback int) []model.SeriesPoint {
	if lookback <= 0 || len(points) <= lookback {
		return []model.SeriesPoint{}
	}
	out := make([]model.SeriesPoint, 0, len(points)-lookback)
	for i := lookback; i < len(points); i++ {
		base := points[i-lookback].Value
		if base == 0 {
			continue
		}
		change := (points[i].Value - base) / math.Abs(base) * 100
		out = append(out, model.SeriesPoint{
			Date:  points[i].Date,
			Value: Round2(change),
		})
	}
	return out
}

// ComputeMoM is period-over-period percent change.
func ComputeMoM(points []model.SeriesPoint) []model.SeriesPoint {
	return ComputeYoY(points, 1)
}

// YoYLookback maps a cadence to the number of periods in one year.
func YoYLookback(freq model.Frequency) int {
	switch freq {
	case model.FreqDaily:
		return 365
	case model.FreqWeekly:
		return 52
	case model.FreqBiWeekly:
		return 26
	case model.FreqMonthly:
		return 12
	case model.FreqBiMonthly:
		return 6
	case model.FreqQuarterly:
		return 4
	case model.FreqAnnual:
		return 1
	default:
		return 12
	}
}

// SortByDate orders points ascending. Dates are ISO-style strings, so the
// lexicographic order is the chronological one.
func SortByDate(points []model.SeriesPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
}

// FilterRange keeps points inside the inclusive [from, to] window. Empty
// bounds are open.
func FilterRange(points []model.SeriesPoint, from, to string) []model.SeriesPoint {
	out := make([]model.SeriesPoint, 0, len(points))
	for _, point := range points {
		if from != "" && point.Date < from {
			continue
		}
		if to != "" && point.Date > to {
			continue
		}
		out = append(out, point)
	}
	return out
}

// ApplyTransform normalizes (sort, range filter) then applies the requested
// transform using the cadence-appropriate lookback.
func ApplyTransform(points []model.SeriesPoint, freq model.Frequency, from, to string, transform model.Transform) []model.SeriesPoint {
	SortByDate(points)
	points = FilterRange(points, from, to)
	switch transform {
	case model.TransformYoY:
		return ComputeYoY(points, YoYLookback(freq))
	case model.TransformMoM:
		return ComputeMoM(points)
	default:
		return points
	}
}
