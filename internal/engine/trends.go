package engine

import (
	"math"
	"sort"
	"time"
)

// BuildTrends turns an irregular sample history into time-aligned series
// per category. Every dataset has exactly one value slot per label; a
// parameter missing from a sample yields nil at that position so charting
// clients can rely on aligned arrays. Categories whose parameters never
// appear in the samples are omitted. Output is deterministic for a fixed
// sample set and grouping.
func BuildTrends(samples []Sample, categoryGroups map[string][]string) map[string]TrendSeries {
	usable := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		if sample.Completed() && !sample.Timestamp.IsZero() {
			usable = append(usable, sample)
		}
	}
	if len(usable) == 0 {
		return map[string]TrendSeries{}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		if !usable[i].Timestamp.Equal(usable[j].Timestamp) {
			return usable[i].Timestamp.Before(usable[j].Timestamp)
		}
		return usable[i].ID < usable[j].ID
	})

	labels := make([]string, len(usable))
	for i, sample := range usable {
		labels[i] = sample.Timestamp.UTC().Format(time.RFC3339)
	}

	result := map[string]TrendSeries{}
	for category, parameterNames := range categoryGroups {
		series := TrendSeries{CategoryName: category, Labels: labels}
		for _, name := range parameterNames {
			values := make([]*float64, len(usable))
			populated := false
			for i, sample := range usable {
				if v, ok := readingValue(sample, name); ok {
					value := v
					values[i] = &value
					populated = true
				}
			}
			if !populated {
				continue
			}
			series.Datasets = append(series.Datasets, TrendDataset{
				ParameterLabel: name,
				Unit:           readingUnit(usable, name),
				Values:         values,
			})
		}
		if len(series.Datasets) > 0 {
			result[category] = series
		}
	}
	return result
}

func readingValue(sample Sample, name string) (float64, bool) {
	for _, reading := range sample.Parameters {
		if reading.Name != name {
			continue
		}
		if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
			continue
		}
		return reading.Value, true
	}
	return 0, false
}

func readingUnit(samples []Sample, name string) string {
	for _, sample := range samples {
		for _, reading := range sample.Parameters {
			if reading.Name == name {
				return reading.Unit
			}
		}
	}
	return ""
}
