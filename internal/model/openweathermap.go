package model

// OpenWeatherMapResponse mirrors the fields of /data/2.5/weather we read.
// Pointers distinguish a missing field from a zero value.
type OpenWeatherMapResponse struct {
	Name string `json:"name"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   float64  `json:"temp_min"`
		TempMax   float64  `json:"temp_max"`
		Pressure  *float64 `json:"pressure"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
		Deg   float64  `json:"deg"`
	} `json:"wind"`
	Weather []struct {
		ID          int     `json:"id"`
		Main        string  `json:"main"`
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
	} `json:"weather"`
	Visibility *float64 `json:"visibility"`
	Sys        *struct {
		Country string `json:"country"`
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int `json:"timezone"`
}

// OpenWeatherMapError is the body the provider sends alongside non-2xx statuses.
// cod is a number on some endpoints and a string on others, so it is not decoded.
type OpenWeatherMapError struct {
	Message string `json:"message"`
}
