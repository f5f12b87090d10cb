package model

// FallbackGlyph is shown for icon codes the table does not know.
const FallbackGlyph = "🌤️"

var iconGlyphs = map[string]string{
	"01d": "☀️", "01n": "🌙",
	"02d": "⛅", "02n": "☁️",
	"03d": "☁️", "03n": "☁️",
	"04d": "☁️", "04n": "☁️",
	"09d": "🌧️", "09n": "🌧️",
	"10d": "🌦️", "10n": "🌧️",
	"11d": "⛈️", "11n": "⛈️",
	"13d": "❄️", "13n": "❄️",
	"50d": "🌫️", "50n": "🌫️",
}

// IconGlyph maps a provider icon code such as "01d" to a display glyph.
func IconGlyph(code string) string {
	if g, ok := iconGlyphs[code]; ok {
		return g
	}
	return FallbackGlyph
}

// IconCodes returns the codes with a dedicated glyph.
func IconCodes() []string {
	codes := make([]string, 0, len(iconGlyphs))
	for c := range iconGlyphs {
		codes = append(codes, c)
	}
	return codes
}
