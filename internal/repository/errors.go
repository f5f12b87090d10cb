package repository

import (
	"errors"
	"fmt"

	"github.com/fakhrymubarak/weather-board/internal/model"
)

// ErrorKind classifies a failed lookup.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindInvalidCredential ErrorKind = "invalid_credential"
	KindRateLimited       ErrorKind = "rate_limited"
	KindUpstream          ErrorKind = "upstream_error"
	KindTransport         ErrorKind = "transport_failure"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInternal          ErrorKind = "internal"
)

// Sentinels for errors.Is. A *WeatherError matches the sentinel of its kind
// regardless of status, cause or detail.
var (
	ErrMissingCredential = &WeatherError{Kind: KindMissingCredential}
	ErrInvalidCredential = &WeatherError{Kind: KindInvalidCredential}
	ErrRateLimited       = &WeatherError{Kind: KindRateLimited}
	ErrUpstream          = &WeatherError{Kind: KindUpstream}
	ErrTransport         = &WeatherError{Kind: KindTransport}
	ErrMalformedResponse = &WeatherError{Kind: KindMalformedResponse}
	ErrInvalidInput      = &WeatherError{Kind: KindInvalidInput}
)

// WeatherError is the single error type returned by a lookup.
type WeatherError struct {
	Kind   ErrorKind
	Status int
	Detail string
	Cause  error
}

func (e *WeatherError) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *WeatherError) Unwrap() error { return e.Cause }

func (e *WeatherError) Is(target error) bool {
	t, ok := target.(*WeatherError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// Message is the text shown to the visitor. Credential problems are worded
// differently depending on who owns the key.
func (e *WeatherError) Message(v model.Variant) string {
	switch e.Kind {
	case KindMissingCredential:
		if v == model.VariantUser {
			return "请输入 API Key"
		}
		return "API Key 未配置，请在环境变量中设置 OPENWEATHERMAP_API_KEY"
	case KindInvalidCredential:
		if v == model.VariantUser {
			return "API Key 无效，请检查您的 API Key"
		}
		return "API Key 无效，请检查环境变量配置"
	case KindRateLimited:
		return "API 请求次数超限，请稍后再试"
	case KindUpstream:
		return fmt.Sprintf("请求失败: %d", e.Status)
	case KindMalformedResponse:
		return "天气数据格式异常，请稍后再试"
	case KindInvalidInput:
		if e.Detail != "" {
			return e.Detail
		}
		return "请输入有效的经纬度坐标"
	}
	return "获取天气数据失败"
}

func newUpstreamError(status int, detail string) *WeatherError {
	return &WeatherError{Kind: KindUpstream, Status: status, Detail: detail}
}

func newTransportFailure(cause error) *WeatherError {
	return &WeatherError{Kind: KindTransport, Cause: cause}
}

func newMalformedResponse(detail string, cause error) *WeatherError {
	return &WeatherError{Kind: KindMalformedResponse, Detail: detail, Cause: cause}
}

// NewInvalidInput reports caller input that cannot be sent upstream.
// detail is shown to the visitor verbatim.
func NewInvalidInput(detail string) *WeatherError {
	return &WeatherError{Kind: KindInvalidInput, Detail: detail}
}

// KindOf returns the kind of a lookup error, or KindInternal for anything else.
func KindOf(err error) ErrorKind {
	var we *WeatherError
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindInternal
}

// ToDisplayError converts any lookup failure into its user-visible form.
func ToDisplayError(err error, v model.Variant) *model.DisplayError {
	if err == nil {
		return nil
	}
	var we *WeatherError
	if errors.As(err, &we) {
		return &model.DisplayError{Kind: string(we.Kind), Message: we.Message(v), Status: we.Status}
	}
	return &model.DisplayError{Kind: string(KindInternal), Message: "获取天气数据失败"}
}
