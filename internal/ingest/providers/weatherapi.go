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

// WeatherAPIProvider implements ingest.Provider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Current struct {
		LastUpdatedEpoch int64    `json:"last_updated_epoch"`
		TempC            *float64 `json:"temp_c"`
		Humidity         *float64 `json:"humidity"`
		WindKph          *float64 `json:"wind_kph"`
		PressureMb       *float64 `json:"pressure_mb"`
		PrecipMm         *float64 `json:"precip_mm"`
	} `json:"current"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc ingest.Location) (weather.Measurement, error) {
	if p.apiKey == "" {
		return weather.Measurement{}, errors.New("weatherapi api key is not configured")
	}
	if loc.IsZero() {
		return weather.Measurement{}, fmt.Errorf("weatherapi: %w", errNoLocation)
	}
	query := loc.Query()
	if loc.City == "" {
		query = formatCoordinate(*loc.Lat) + "," + formatCoordinate(*loc.Lon)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", query)

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Measurement{}, err
	}
	defer resp.Body.Close()

	var payload weatherAPIPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Measurement{}, fmt.Errorf("weatherapi: decode: %w", err)
	}

	cur := payload.Current
	b := weather.NewBuilder().WithTimestamp(readingTime(cur.LastUpdatedEpoch))
	addIfPresent(b, MetricTemperature, cur.TempC)
	addIfPresent(b, MetricHumidity, cur.Humidity)
	if cur.WindKph != nil {
		// kph to m/s
		b.WithMetric(MetricWindSpeed, *cur.WindKph/3.6)
	}
	addIfPresent(b, MetricPressure, cur.PressureMb)
	addIfPresent(b, MetricPrecipitation, cur.PrecipMm)

	return b.Build()
}

var _ ingest.Provider = (*WeatherAPIProvider)(nil)
