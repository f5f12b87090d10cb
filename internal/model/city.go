package model

import "fmt"

// Variant selects which of the two pages a surface belongs to.
type Variant string

const (
	// VariantConfigured uses the server-side API key and auto-refreshes.
	VariantConfigured Variant = "configured"
	// VariantUser asks the visitor for their own API key.
	VariantUser Variant = "user"
)

// ParseVariant accepts the two known variant names. Empty means configured.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantConfigured:
		return VariantConfigured, nil
	case VariantUser:
		return VariantUser, nil
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// City is one entry of the static city picker.
type City struct {
	DisplayName  string     `json:"name"`
	CountryLabel string     `json:"country"`
	Coordinate   Coordinate `json:"coordinate"`
}

var configuredCities = []City{
	{DisplayName: "北京", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 39.9042, Longitude: 116.4074}},
	{DisplayName: "上海", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 31.2304, Longitude: 121.4737}},
	{DisplayName: "广州", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 23.1291, Longitude: 113.2644}},
	{DisplayName: "深圳", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 22.3193, Longitude: 114.1694}},
	{DisplayName: "杭州", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 30.2741, Longitude: 120.1551}},
	{DisplayName: "成都", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 30.5728, Longitude: 104.0668}},
	{DisplayName: "西安", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 34.3416, Longitude: 108.9398}},
	{DisplayName: "南京", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 32.0603, Longitude: 118.7969}},
	{DisplayName: "武汉", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 30.5928, Longitude: 114.3055}},
	{DisplayName: "重庆", CountryLabel: "中国", Coordinate: Coordinate{Latitude: 29.4316, Longitude: 106.9123}},
	{DisplayName: "东京", CountryLabel: "日本", Coordinate: Coordinate{Latitude: 35.6762, Longitude: 139.6503}},
	{DisplayName: "首尔", CountryLabel: "韩国", Coordinate: Coordinate{Latitude: 37.5665, Longitude: 126.9780}},
	{DisplayName: "纽约", CountryLabel: "美国", Coordinate: Coordinate{Latitude: 40.7128, Longitude: -74.0060}},
	{DisplayName: "伦敦", CountryLabel: "英国", Coordinate: Coordinate{Latitude: 51.5074, Longitude: -0.1278}},
	{DisplayName: "巴黎", CountryLabel: "法国", Coordinate: Coordinate{Latitude: 48.8566, Longitude: 2.3522}},
	{DisplayName: "柏林", CountryLabel: "德国", Coordinate: Coordinate{Latitude: 52.5200, Longitude: 13.4050}},
	{DisplayName: "罗马", CountryLabel: "意大利", Coordinate: Coordinate{Latitude: 41.9028, Longitude: 12.4964}},
	{DisplayName: "马德里", CountryLabel: "西班牙", Coordinate: Coordinate{Latitude: 40.4168, Longitude: -3.7038}},
	{DisplayName: "莫斯科", CountryLabel: "俄罗斯", Coordinate: Coordinate{Latitude: 55.7558, Longitude: 37.6176}},
	{DisplayName: "悉尼", CountryLabel: "澳大利亚", Coordinate: Coordinate{Latitude: -33.8688, Longitude: 151.2093}},
}

var userCities = []City{
	{DisplayName: "北京", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 39.9042, Longitude: 116.4074}},
	{DisplayName: "上海", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 31.2304, Longitude: 121.4737}},
	{DisplayName: "广州", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 23.1291, Longitude: 113.2644}},
	{DisplayName: "深圳", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 22.3193, Longitude: 114.1694}},
	{DisplayName: "杭州", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 30.2741, Longitude: 120.1551}},
	{DisplayName: "成都", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 30.5728, Longitude: 104.0668}},
	{DisplayName: "西安", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 34.3416, Longitude: 108.9398}},
	{DisplayName: "南京", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 32.0603, Longitude: 118.7969}},
	{DisplayName: "武汉", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 30.5928, Longitude: 114.3055}},
	{DisplayName: "重庆", CountryLabel: "CN", Coordinate: Coordinate{Latitude: 29.4316, Longitude: 106.9123}},
	{DisplayName: "东京", CountryLabel: "JP", Coordinate: Coordinate{Latitude: 35.6762, Longitude: 139.6503}},
	{DisplayName: "首尔", CountryLabel: "KR", Coordinate: Coordinate{Latitude: 37.5665, Longitude: 126.9780}},
	{DisplayName: "纽约", CountryLabel: "US", Coordinate: Coordinate{Latitude: 40.7128, Longitude: -74.0060}},
	{DisplayName: "伦敦", CountryLabel: "GB", Coordinate: Coordinate{Latitude: 51.5074, Longitude: -0.1278}},
	{DisplayName: "巴黎", CountryLabel: "FR", Coordinate: Coordinate{Latitude: 48.8566, Longitude: 2.3522}},
	{DisplayName: "柏林", CountryLabel: "DE", Coordinate: Coordinate{Latitude: 52.5200, Longitude: 13.4050}},
	{DisplayName: "罗马", CountryLabel: "IT", Coordinate: Coordinate{Latitude: 41.9028, Longitude: 12.4964}},
	{DisplayName: "马德里", CountryLabel: "ES", Coordinate: Coordinate{Latitude: 40.4168, Longitude: -3.7038}},
	{DisplayName: "莫斯科", CountryLabel: "RU", Coordinate: Coordinate{Latitude: 55.7558, Longitude: 37.6176}},
	{DisplayName: "悉尼", CountryLabel: "AU", Coordinate: Coordinate{Latitude: -33.8688, Longitude: 151.2093}},
}

// Cities returns a copy of the city table for the variant.
func Cities(v Variant) []City {
	src := configuredCities
	if v == VariantUser {
		src = userCities
	}
	out := make([]City, len(src))
	copy(out, src)
	return out
}

// CityAt returns the city at index i for the variant.
func CityAt(v Variant, i int) (City, bool) {
	src := configuredCities
	if v == VariantUser {
		src = userCities
	}
	if i < 0 || i >= len(src) {
		return City{}, false
	}
	return src[i], true
}
