package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weathertracker/internal/weather"
)

func TestDecodeMeasurementKeepsFieldOrder(t *testing.T) {
	m, err := decodeMeasurement([]byte(`{"humidity":71,"timestamp":"2015-09-01T18:00:00+02:00","temperature":-3.5}`))
	require.NoError(t, err)

	assert.True(t, m.Timestamp().Equal(time.Date(2015, 9, 1, 16, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"humidity", "temperature"}, m.Names())
	assert.Equal(t, `{"timestamp":"2015-09-01T16:00:00.000Z","humidity":71,"temperature":-3.5}`, string(encodeMeasurement(m)))
}

func TestDecodeMeasurementErrors(t *testing.T) {
	_, err := decodeMeasurement([]byte(`{"temperature":1}`))
	assert.ErrorIs(t, err, errMissingTimestamp)

	_, err = decodeMeasurement([]byte(`{"timestamp":"2015-09-01T16:00:00Z","t":1,"t":2}`))
	assert.ErrorIs(t, err, weather.ErrDuplicateMetric)

	_, err = decodeMeasurement([]byte(`{"timestamp":"2015-09-01T16:00:00Z","t":null}`))
	assert.Error(t, err)
}

func TestDecodeMeasurementRejectsTrailingData(t *testing.T) {
	bodies := []string{
		`{"timestamp":"2015-09-01T16:00:00.000Z","temperature":1} garbage`,
		`{"timestamp":"2015-09-01T16:00:00.000Z","temperature":1}{}`,
		`{"timestamp":"2015-09-01T16:00:00.000Z","temperature":1`,
	}
	for _, body := range bodies {
		if _, err := decodeMeasurement([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}

	m, err := decodeMeasurement([]byte("{\"timestamp\":\"2015-09-01T16:00:00.000Z\",\"temperature\":1}\n  \t"))
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature"}, m.Names())
}

func TestDecodeMeasurementTruncatesToMilliseconds(t *testing.T) {
	m, err := decodeMeasurement([]byte(`{"timestamp":"2015-09-01T16:00:00.1234Z","temperature":1}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 9, 1, 16, 0, 0, 123_000_000, time.UTC), m.Timestamp())
}

func TestEncodeMeasurementsEmpty(t *testing.T) {
	assert.Equal(t, "[]", string(encodeMeasurements(nil)))
}
