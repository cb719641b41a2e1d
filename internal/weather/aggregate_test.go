package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStats = []Statistic{StatisticMin, StatisticMax, StatisticAverage}

func mustMeasurement(t *testing.T, ts time.Time, kv ...any) Measurement {
	t.Helper()

	b := NewBuilder().WithTimestamp(ts)
	for i := 0; i < len(kv); i += 2 {
		b.WithMetric(kv[i].(string), kv[i+1].(float64))
	}
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func scenario(t *testing.T) []Measurement {
	base := time.Date(2015, 9, 1, 16, 0, 0, 0, time.UTC)
	return []Measurement{
		mustMeasurement(t, base, "temp", 10.0, "dew", 5.0),
		mustMeasurement(t, base.Add(10*time.Minute), "temp", 20.0),
		mustMeasurement(t, base.Add(20*time.Minute), "dew", 8.0),
	}
}

func TestAnalyzeScenario(t *testing.T) {
	results, err := Analyze(scenario(t), []string{"temp", "dew"}, allStats)
	require.NoError(t, err)

	assert.Equal(t, []AggregateResult{
		{Metric: "temp", Statistic: StatisticMin, Value: 10},
		{Metric: "temp", Statistic: StatisticMax, Value: 20},
		{Metric: "temp", Statistic: StatisticAverage, Value: 15},
		{Metric: "dew", Statistic: StatisticMin, Value: 5},
		{Metric: "dew", Statistic: StatisticMax, Value: 8},
		{Metric: "dew", Statistic: StatisticAverage, Value: 6.5},
	}, results)
}

func TestAnalyzePreservesRequestedOrder(t *testing.T) {
	stats := []Statistic{StatisticAverage, StatisticMin}
	results, err := Analyze(scenario(t), []string{"dew", "temp"}, stats)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "dew", results[0].Metric)
	assert.Equal(t, StatisticAverage, results[0].Statistic)
	assert.Equal(t, "dew", results[1].Metric)
	assert.Equal(t, StatisticMin, results[1].Statistic)
	assert.Equal(t, "temp", results[2].Metric)
	assert.Equal(t, StatisticAverage, results[2].Statistic)
}

func TestAnalyzeEmptyInputs(t *testing.T) {
	ms := scenario(t)

	results, err := Analyze(nil, []string{"temp"}, allStats)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = Analyze(ms, nil, allStats)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = Analyze(ms, []string{"temp"}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnalyzeSkipsMissingMetrics(t *testing.T) {
	results, err := Analyze(scenario(t), []string{"precipitation", "temp"}, allStats)
	require.NoError(t, err)

	require.Len(t, results, len(allStats))
	for _, r := range results {
		assert.Equal(t, "temp", r.Metric)
	}
}

func TestAnalyzeCrossProductSize(t *testing.T) {
	names := []string{"temp", "dew"}
	results, err := Analyze(scenario(t), names, allStats)
	require.NoError(t, err)
	assert.Len(t, results, len(names)*len(allStats))
}

func TestAnalyzeUnsupportedStatistic(t *testing.T) {
	bogus := Statistic(42)

	_, err := Analyze(scenario(t), []string{"temp"}, []Statistic{StatisticMin, bogus})
	assert.ErrorIs(t, err, ErrUnsupportedStatistic)

	// Fails even when the metric has no data at all.
	_, err = Analyze(scenario(t), []string{"humidity"}, []Statistic{bogus})
	assert.ErrorIs(t, err, ErrUnsupportedStatistic)

	_, err = Analyze(nil, []string{"temp"}, []Statistic{0})
	assert.ErrorIs(t, err, ErrUnsupportedStatistic)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	ms := scenario(t)
	names := []string{"temp", "dew", "missing"}

	first, err := Analyze(ms, names, allStats)
	require.NoError(t, err)
	second, err := Analyze(ms, names, allStats)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyzeMinAverageMaxOrdering(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{-3.25, 17.5, 0, 2.125, 99.99, -40}

	var ms []Measurement
	for i, v := range values {
		ms = append(ms, mustMeasurement(t, base.Add(time.Duration(i)*time.Minute), "t", v))
	}

	results, err := Analyze(ms, []string{"t"}, allStats)
	require.NoError(t, err)
	require.Len(t, results, 3)

	lo, hi, avg := results[0].Value, results[1].Value, results[2].Value
	assert.Equal(t, -40.0, lo)
	assert.Equal(t, 99.99, hi)
	assert.LessOrEqual(t, lo, avg)
	assert.LessOrEqual(t, avg, hi)
}

func TestAverageRounding(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"rounds up thirds", []float64{1, 2, 2}, 1.67},
		{"exact half", []float64{1, 2}, 1.5},
		{"rounds down thirds", []float64{1, 1, 2}, 1.33},
		{"negative thirds", []float64{-1, -2, -2}, -1.67},
		{"single value", []float64{27.1}, 27.1},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, averageValue(tt.values), 1e-9)
		})
	}
}
