package httpapi

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/i474232898/weathertracker/internal/common"
	"github.com/i474232898/weathertracker/internal/weather"
)

// JSON is the codec used for request and response bodies.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

const timestampField = "timestamp"

var errMissingTimestamp = errors.New("timestamp is required")

// decodeMeasurement reads a flat object such as
// {"timestamp": "2015-09-01T16:00:00.000Z", "temperature": 27.1}. Every field
// other than timestamp is a metric and must be a number. Field order is kept.
func decodeMeasurement(body []byte) (weather.Measurement, error) {
	iter := JSON.BorrowIterator(body)
	defer JSON.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return weather.Measurement{}, errors.New("measurement must be a JSON object")
	}

	var (
		b       = weather.NewBuilder()
		hasTime bool
		bad     error
	)
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		if field == timestampField {
			if it.WhatIsNext() != jsoniter.StringValue {
				bad = fmt.Errorf("%s must be a string", timestampField)
				return false
			}
			ts, err := common.ParseInstant(it.ReadString())
			if err != nil {
				bad = fmt.Errorf("%s: %w", timestampField, err)
				return false
			}
			b.WithTimestamp(ts)
			hasTime = true
			return true
		}

		if it.WhatIsNext() != jsoniter.NumberValue {
			bad = fmt.Errorf("metric %q must be a number", field)
			return false
		}
		b.WithMetric(field, it.ReadFloat64())
		return true
	})

	if bad != nil {
		return weather.Measurement{}, bad
	}
	// A complete object ends on its closing brace, so even io.EOF means truncation.
	if iter.Error != nil {
		return weather.Measurement{}, fmt.Errorf("malformed measurement: %w", iter.Error)
	}
	// Only whitespace may follow the object.
	iter.WhatIsNext()
	if iter.Error != io.EOF {
		return weather.Measurement{}, errors.New("unexpected data after measurement object")
	}
	if !hasTime {
		return weather.Measurement{}, errMissingTimestamp
	}

	return b.Build()
}

// encodeMeasurement renders m in the same flat shape decodeMeasurement accepts.
func encodeMeasurement(m weather.Measurement) []byte {
	stream := JSON.BorrowStream(nil)
	defer JSON.ReturnStream(stream)

	writeMeasurement(stream, m)
	return append([]byte(nil), stream.Buffer()...)
}

func encodeMeasurements(ms []weather.Measurement) []byte {
	stream := JSON.BorrowStream(nil)
	defer JSON.ReturnStream(stream)

	stream.WriteArrayStart()
	for i, m := range ms {
		if i > 0 {
			stream.WriteMore()
		}
		writeMeasurement(stream, m)
	}
	stream.WriteArrayEnd()
	return append([]byte(nil), stream.Buffer()...)
}

func writeMeasurement(stream *jsoniter.Stream, m weather.Measurement) {
	stream.WriteObjectStart()
	stream.WriteObjectField(timestampField)
	stream.WriteString(common.FormatInstant(m.Timestamp()))
	for _, metric := range m.Metrics() {
		stream.WriteMore()
		stream.WriteObjectField(metric.Name)
		stream.WriteFloat64(metric.Value)
	}
	stream.WriteObjectEnd()
}
