package weather

import (
	"fmt"
	"math"
)

// Analyze computes every requested statistic for every requested metric across
// measurements. Results are ordered by metric name (as given) and then by
// statistic (as given). Metrics absent from all measurements produce no results.
//
// Statistics are validated up front: an unsupported one fails the whole call
// before any value is computed.
func Analyze(measurements []Measurement, metricNames []string, statistics []Statistic) ([]AggregateResult, error) {
	for _, stat := range statistics {
		if !stat.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedStatistic, stat)
		}
	}

	results := make([]AggregateResult, 0, len(metricNames)*len(statistics))
	if len(statistics) == 0 {
		return results, nil
	}

	for _, name := range metricNames {
		values := metricValues(measurements, name)
		if len(values) == 0 {
			continue
		}

		for _, stat := range statistics {
			results = append(results, AggregateResult{
				Metric:    name,
				Statistic: stat,
				Value:     compute(stat, values),
			})
		}
	}

	return results, nil
}

// metricValues collects the values of name from every measurement that has it.
func metricValues(measurements []Measurement, name string) []float64 {
	var values []float64
	for _, m := range measurements {
		if v, ok := m.Metric(name); ok {
			values = append(values, v)
		}
	}
	return values
}

func compute(stat Statistic, values []float64) float64 {
	switch stat {
	case StatisticMin:
		return minValue(values)
	case StatisticMax:
		return maxValue(values)
	default:
		return averageValue(values)
	}
}

func minValue(values []float64) float64 {
	lowest := values[0]
	for _, v := range values[1:] {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

func maxValue(values []float64) float64 {
	highest := values[0]
	for _, v := range values[1:] {
		if v > highest {
			highest = v
		}
	}
	return highest
}

// averageValue returns the mean rounded half-up to two decimals, or 0 for no values.
func averageValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return roundHalfUp(sum / float64(len(values)))
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
