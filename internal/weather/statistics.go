package weather

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedStatistic is returned when a statistic outside the supported set is requested.
var ErrUnsupportedStatistic = errors.New("unsupported statistic")

// Statistic identifies a summary computed over a metric's values.
type Statistic int

const (
	StatisticMin Statistic = iota + 1
	StatisticMax
	StatisticAverage
)

func (s Statistic) String() string {
	switch s {
	case StatisticMin:
		return "min"
	case StatisticMax:
		return "max"
	case StatisticAverage:
		return "average"
	default:
		return fmt.Sprintf("Statistic(%d)", int(s))
	}
}

// Valid reports whether s is one of the supported statistics.
func (s Statistic) Valid() bool {
	return s == StatisticMin || s == StatisticMax || s == StatisticAverage
}

// MarshalText renders the statistic as its lower-case name.
func (s Statistic) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedStatistic, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a statistic name.
func (s *Statistic) UnmarshalText(text []byte) error {
	parsed, err := ParseStatistic(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatistic maps a case-insensitive name to a Statistic. "avg" is accepted
// as an alias for "average".
func ParseStatistic(name string) (Statistic, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "min":
		return StatisticMin, nil
	case "max":
		return StatisticMax, nil
	case "average", "avg":
		return StatisticAverage, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedStatistic, name)
	}
}

// AggregateResult is one (metric, statistic) cell of an analysis.
type AggregateResult struct {
	Metric    string    `json:"metric"`
	Statistic Statistic `json:"stat"`
	Value     float64   `json:"value"`
}
