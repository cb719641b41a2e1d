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

// OpenWeatherProvider implements ingest.Provider for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPayload struct {
	Dt   int64 `json:"dt"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Rain *struct {
		OneH   *float64 `json:"1h"`
		ThreeH *float64 `json:"3h"`
	} `json:"rain"`
}

// Fetch reads current conditions. Fields missing from the payload are left out
// of the measurement rather than recorded as zero.
func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc ingest.Location) (weather.Measurement, error) {
	if p.apiKey == "" {
		return weather.Measurement{}, errors.New("openweather api key is not configured")
	}
	if loc.IsZero() {
		return weather.Measurement{}, fmt.Errorf("openweather: %w", errNoLocation)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		if loc.City == "" {
			values.Set("lat", formatCoordinate(*loc.Lat))
			values.Set("lon", formatCoordinate(*loc.Lon))
		} else {
			values.Set("q", loc.Query())
		}

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Measurement{}, err
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Measurement{}, fmt.Errorf("openweather: decode: %w", err)
	}

	b := weather.NewBuilder().WithTimestamp(readingTime(payload.Dt))
	if payload.Main != nil {
		addIfPresent(b, MetricTemperature, payload.Main.Temp)
		addIfPresent(b, MetricHumidity, payload.Main.Humidity)
		addIfPresent(b, MetricPressure, payload.Main.Pressure)
	}
	if payload.Wind != nil {
		addIfPresent(b, MetricWindSpeed, payload.Wind.Speed)
	}
	if payload.Rain != nil {
		precip := payload.Rain.OneH
		if precip == nil {
			precip = payload.Rain.ThreeH
		}
		addIfPresent(b, MetricPrecipitation, precip)
	}

	return b.Build()
}

func addIfPresent(b *weather.Builder, name string, value *float64) {
	if value != nil {
		b.WithMetric(name, *value)
	}
}

var _ ingest.Provider = (*OpenWeatherProvider)(nil)
