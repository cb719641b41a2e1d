package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weathertracker/internal/ingest"
	"github.com/i474232898/weathertracker/internal/weather"
)

// OpenMeteoProvider implements ingest.Provider for Open-Meteo. It needs no API
// key but only works with coordinates.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPayload struct {
	CurrentWeather struct {
		Time        int64    `json:"time"`
		Temperature *float64 `json:"temperature"`
		WindSpeed   *float64 `json:"windspeed"`
	} `json:"current_weather"`
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc ingest.Location) (weather.Measurement, error) {
	if !loc.HasCoordinates() {
		return weather.Measurement{}, errors.New("openmeteo requires latitude and longitude")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", formatCoordinate(*loc.Lat))
		values.Set("longitude", formatCoordinate(*loc.Lon))
		values.Set("current_weather", "true")
		values.Set("windspeed_unit", "ms")
		values.Set("timeformat", "unixtime")

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Measurement{}, err
	}
	defer resp.Body.Close()

	var payload openMeteoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Measurement{}, fmt.Errorf("openmeteo: decode: %w", err)
	}

	cur := payload.CurrentWeather
	b := weather.NewBuilder().WithTimestamp(readingTime(cur.Time))
	addIfPresent(b, MetricTemperature, cur.Temperature)
	addIfPresent(b, MetricWindSpeed, cur.WindSpeed)

	return b.Build()
}

var _ ingest.Provider = (*OpenMeteoProvider)(nil)
