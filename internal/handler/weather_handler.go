package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fakhrymubarak/weather-board/internal/config"
	"github.com/fakhrymubarak/weather-board/internal/model"
	"github.com/fakhrymubarak/weather-board/internal/redis"
	"github.com/fakhrymubarak/weather-board/internal/repository"
	"github.com/fakhrymubarak/weather-board/internal/service"
	"github.com/go-chi/chi/v5"
)

type WeatherHandler struct {
	WeatherService service.WeatherServiceInterface
	// Ping reports whether the display store is reachable.
	Ping            func(ctx context.Context) error
	SessionTTL      time.Duration
	RefreshInterval time.Duration
}

func NewWeatherHandler(svc service.WeatherServiceInterface) *WeatherHandler {
	return &WeatherHandler{
		WeatherService:  svc,
		Ping:            redis.Ping,
		SessionTTL:      config.GetSessionTTL(),
		RefreshInterval: config.GetRefreshInterval(),
	}
}

func (h *WeatherHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		config.GetLogger().Errorw("could not encode json", "error", err)
	}
}

func (h *WeatherHandler) writeError(w http.ResponseWriter, r *http.Request, err error, v model.Variant, data interface{}) {
	status := statusFor(err)
	msg := errorMessage(err, v)
	if status >= http.StatusInternalServerError {
		config.GetLogger().Errorw("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSONResponse(w, status, model.Failure(msg, data))
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, repository.ErrSurfaceNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	switch repository.KindOf(err) {
	case repository.KindInvalidInput, repository.KindMissingCredential:
		return http.StatusBadRequest
	case repository.KindInvalidCredential:
		return http.StatusUnauthorized
	case repository.KindRateLimited:
		return http.StatusTooManyRequests
	case repository.KindUpstream, repository.KindMalformedResponse:
		return http.StatusBadGateway
	case repository.KindTransport:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorMessage(err error, v model.Variant) string {
	switch {
	case errors.Is(err, repository.ErrSurfaceNotFound):
		return "会话已过期，请刷新页面"
	case errors.Is(err, errBadRequest):
		return err.Error()
	}
	return repository.ToDisplayError(err, v).Message
}

func (h *WeatherHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.Ping(r.Context()); err != nil {
		config.GetLogger().Warnw("health check failed", "error", err)
		h.writeJSONResponse(w, http.StatusServiceUnavailable, model.Failure("redis unavailable", nil))
		return
	}
	h.writeJSONResponse(w, http.StatusOK, model.Success(map[string]string{"status": "ok"}))
}

func (h *WeatherHandler) HandleCities(w http.ResponseWriter, r *http.Request) {
	v, err := model.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		h.writeError(w, r, badRequest(err.Error()), model.VariantConfigured, nil)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, model.Success(model.Cities(v)))
}

func (h *WeatherHandler) HandleIcon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	h.writeJSONResponse(w, http.StatusOK, model.Success(map[string]string{
		"code":  code,
		"glyph": model.IconGlyph(code),
	}))
}

// HandleWeather is a one-off lookup. The caller's key comes from X-API-Key;
// without it the server key is used.
func (h *WeatherHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reading, err := h.WeatherService.Lookup(r.Context(), service.LookupInput{
		Lat:        q.Get("lat"),
		Lon:        q.Get("lon"),
		Name:       q.Get("name"),
		Credential: r.Header.Get("X-API-Key"),
	})
	if err != nil {
		v := model.VariantConfigured
		if r.Header.Get("X-API-Key") != "" {
			v = model.VariantUser
		}
		h.writeError(w, r, err, v, nil)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, model.Success(reading))
}
