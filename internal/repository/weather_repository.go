package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fakhrymubarak/weather-board/internal/config"
	"github.com/fakhrymubarak/weather-board/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxBodyBytes = 1 << 20

// WeatherClient performs a single current-weather lookup against OpenWeatherMap.
type WeatherClient interface {
	FetchReading(ctx context.Context, req model.LookupRequest) (*model.WeatherReading, error)
}

// ClientOptions carries the fixed parts of every request.
type ClientOptions struct {
	BaseURL  string
	Units    string
	Lang     string
	Location *time.Location
	Now      func() time.Time
}

// DefaultClientOptions reads the client settings from config.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseURL:  config.GetOpenWeatherApiUrl(),
		Units:    config.GetOpenWeatherUnits(),
		Lang:     config.GetOpenWeatherLang(),
		Location: config.GetDisplayLocation(),
	}
}

// weatherClient implements WeatherClient. It keeps no state between calls.
type weatherClient struct {
	httpClient *http.Client
	opts       ClientOptions
}

// NewWeatherClient creates a client. Without an explicit http.Client it uses a
// traced client bounded by the configured upstream timeout.
func NewWeatherClient(opts ClientOptions, httpClient ...*http.Client) WeatherClient {
	var client *http.Client
	if len(httpClient) > 0 && httpClient[0] != nil {
		client = httpClient[0]
	} else {
		client = &http.Client{
			Timeout:   config.GetOpenWeatherTimeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &weatherClient{httpClient: client, opts: opts}
}

// FetchReading issues exactly one GET, or none when the credential is empty
// or the coordinate is not finite.
func (c *weatherClient) FetchReading(ctx context.Context, req model.LookupRequest) (*model.WeatherReading, error) {
	tracer := otel.Tracer("weather-board/repository")
	ctx, span := tracer.Start(ctx, "openweathermap: current weather")
	defer span.End()

	span.SetAttributes(
		attribute.Float64("weather.lat", req.Coordinate.Latitude),
		attribute.Float64("weather.lon", req.Coordinate.Longitude),
	)

	reading, err := c.fetch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return reading, nil
}

func (c *weatherClient) fetch(ctx context.Context, req model.LookupRequest) (*model.WeatherReading, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return nil, &WeatherError{Kind: KindMissingCredential}
	}
	if !req.Coordinate.IsFinite() {
		return nil, NewInvalidInput("请输入有效的经纬度坐标")
	}

	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return nil, newTransportFailure(err)
	}
	q := u.Query()
	q.Set("lat", req.Coordinate.LatParam())
	q.Set("lon", req.Coordinate.LonParam())
	q.Set("appid", req.Credential)
	q.Set("units", c.opts.Units)
	q.Set("lang", c.opts.Lang)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, newTransportFailure(err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// url.Error carries the full URL, appid included.
		return nil, newTransportFailure(redactKey(err, req.Credential))
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &WeatherError{Kind: KindInvalidCredential, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &WeatherError{Kind: KindRateLimited, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr model.OpenWeatherMapError
		_ = json.NewDecoder(body).Decode(&apiErr)
		return nil, newUpstreamError(resp.StatusCode, apiErr.Message)
	}

	var data model.OpenWeatherMapResponse
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return nil, newMalformedResponse("decode body", err)
	}
	return c.toReading(&data, req)
}

// toReading maps the provider payload onto the display record. Any missing
// required field fails the whole reading.
func (c *weatherClient) toReading(data *model.OpenWeatherMapResponse, req model.LookupRequest) (*model.WeatherReading, error) {
	switch {
	case data.Main == nil:
		return nil, newMalformedResponse("missing main", nil)
	case data.Main.Temp == nil:
		return nil, newMalformedResponse("missing main.temp", nil)
	case data.Main.FeelsLike == nil:
		return nil, newMalformedResponse("missing main.feels_like", nil)
	case data.Main.Humidity == nil:
		return nil, newMalformedResponse("missing main.humidity", nil)
	case data.Main.Pressure == nil:
		return nil, newMalformedResponse("missing main.pressure", nil)
	case data.Wind == nil || data.Wind.Speed == nil:
		return nil, newMalformedResponse("missing wind.speed", nil)
	case len(data.Weather) == 0:
		return nil, newMalformedResponse("missing weather[0]", nil)
	case data.Weather[0].Description == nil || data.Weather[0].Icon == nil:
		return nil, newMalformedResponse("missing weather[0].description or icon", nil)
	case data.Visibility == nil:
		return nil, newMalformedResponse("missing visibility", nil)
	}

	icon := *data.Weather[0].Icon
	reading := &model.WeatherReading{
		LocationName:      req.LocationName,
		CountryLabel:      req.CountryLabel,
		TemperatureC:      *data.Main.Temp,
		FeelsLikeC:        *data.Main.FeelsLike,
		HumidityPct:       roundInt(*data.Main.Humidity),
		WindSpeedMps:      *data.Wind.Speed,
		PressureHpa:       roundInt(*data.Main.Pressure),
		VisibilityKm:      *data.Visibility / 1000,
		ConditionText:     *data.Weather[0].Description,
		ConditionIconCode: icon,
		ConditionGlyph:    model.IconGlyph(icon),
		FetchedAt:         c.opts.Now().In(c.opts.Location),
	}
	if data.Sys != nil {
		if data.Sys.Sunrise != nil {
			reading.SunriseLocal = FormatClock(*data.Sys.Sunrise, c.opts.Location)
		}
		if data.Sys.Sunset != nil {
			reading.SunsetLocal = FormatClock(*data.Sys.Sunset, c.opts.Location)
		}
	}
	return reading, nil
}

// FormatClock renders epoch seconds as a 24h HH:MM time of day in loc.
func FormatClock(epoch int64, loc *time.Location) string {
	return time.Unix(epoch, 0).In(loc).Format("15:04")
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), key, "REDACTED"), cause: errors.Unwrap(err)}
}
