package model

import "time"

// CustomLocation is a free-form coordinate entered by the visitor.
type CustomLocation struct {
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
}

// Selection is what a surface currently looks up: a table city or a custom location.
type Selection struct {
	CityIndex *int            `json:"city_index,omitempty"`
	Custom    *CustomLocation `json:"custom,omitempty"`
}

// DisplayError is the user-visible trace of a failed lookup.
type DisplayError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// DisplayState is the last-write-wins view of one page session.
type DisplayState struct {
	SurfaceID       string          `json:"surface_id"`
	Variant         Variant         `json:"variant"`
	Selection       Selection       `json:"selection"`
	AutoRefresh     bool            `json:"auto_refresh"`
	HasCredential   bool            `json:"has_credential"`
	Reading         *WeatherReading `json:"reading,omitempty"`
	Error           *DisplayError   `json:"error,omitempty"`
	Sequence        int64           `json:"sequence"`
	AppliedSequence int64           `json:"applied_sequence"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Loading reports whether a lookup newer than the displayed result is in flight.
func (s *DisplayState) Loading() bool {
	return s.Sequence > s.AppliedSequence
}

// Target resolves the selection into the location to look up.
func (s *DisplayState) Target() (name, country string, coord Coordinate, ok bool) {
	switch {
	case s.Selection.Custom != nil:
		return s.Selection.Custom.Name, CustomCountryLabel, s.Selection.Custom.Coordinate, true
	case s.Selection.CityIndex != nil:
		c, found := CityAt(s.Variant, *s.Selection.CityIndex)
		if !found {
			return "", "", Coordinate{}, false
		}
		return c.DisplayName, c.CountryLabel, c.Coordinate, true
	}
	return "", "", Coordinate{}, false
}

const (
	// DefaultCustomName labels a custom location the visitor left unnamed.
	DefaultCustomName = "自定义位置"
	// CustomCountryLabel is the country shown for custom locations.
	CustomCountryLabel = "Unknown"
)
