package model

import (
	"math"
	"strconv"
	"time"
)

// Coordinate is a latitude/longitude pair identifying a query location.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// IsFinite reports whether both components are usable numbers.
// Range is not checked; the provider rejects out-of-range values itself.
func (c Coordinate) IsFinite() bool {
	return !math.IsNaN(c.Latitude) && !math.IsInf(c.Latitude, 0) &&
		!math.IsNaN(c.Longitude) && !math.IsInf(c.Longitude, 0)
}

// LatParam and LonParam render the coordinate verbatim for the query string.
func (c Coordinate) LatParam() string { return strconv.FormatFloat(c.Latitude, 'f', -1, 64) }
func (c Coordinate) LonParam() string { return strconv.FormatFloat(c.Longitude, 'f', -1, 64) }

// LookupRequest is everything the client needs for a single call.
type LookupRequest struct {
	Coordinate   Coordinate
	Credential   string
	LocationName string
	CountryLabel string
}

// WeatherReading is the normalized snapshot returned for one lookup.
type WeatherReading struct {
	LocationName      string    `json:"location_name"`
	CountryLabel      string    `json:"country_label"`
	TemperatureC      float64   `json:"temperature_c"`
	FeelsLikeC        float64   `json:"feels_like_c"`
	HumidityPct       int       `json:"humidity_pct"`
	WindSpeedMps      float64   `json:"wind_speed_mps"`
	PressureHpa       int       `json:"pressure_hpa"`
	VisibilityKm      float64   `json:"visibility_km"`
	ConditionText     string    `json:"condition_text"`
	ConditionIconCode string    `json:"condition_icon_code"`
	ConditionGlyph    string    `json:"condition_glyph"`
	SunriseLocal      string    `json:"sunrise_local,omitempty"`
	SunsetLocal       string    `json:"sunset_local,omitempty"`
	FetchedAt         time.Time `json:"fetched_at"`
}
