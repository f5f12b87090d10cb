package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/fakhrymubarak/weather-board/internal/config"
	"github.com/fakhrymubarak/weather-board/internal/model"
	"github.com/fakhrymubarak/weather-board/internal/repository"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

func pagePath(v model.Variant) string {
	if v == model.VariantUser {
		return "/openweather"
	}
	return "/"
}

func cookieName(v model.Variant) string {
	return "weather_board_" + string(v)
}

type pageData struct {
	Title          string
	Variant        model.Variant
	State          *model.DisplayState
	Cities         []model.City
	RefreshSeconds int
}

func (p pageData) UserVariant() bool { return p.Variant == model.VariantUser }

func (p pageData) Selected(i int) bool {
	idx := p.State.Selection.CityIndex
	return p.State.Selection.Custom == nil && idx != nil && *idx == i
}

func (h *WeatherHandler) HandleConfiguredPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, model.VariantConfigured, "实时天气")
}

func (h *WeatherHandler) HandleUserPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, model.VariantUser, "OpenWeather 天气查询")
}

// renderPage shows the visitor's surface, opening a new one when the cookie is
// missing or its surface has expired.
func (h *WeatherHandler) renderPage(w http.ResponseWriter, r *http.Request, v model.Variant, title string) {
	state, err := h.currentSurface(r, v)
	if err != nil {
		config.GetLogger().Errorw("could not load surface", "variant", v, "error", err)
		http.Error(w, "服务暂时不可用", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(v),
		Value:    state.SurfaceID,
		Path:     "/",
		MaxAge:   int(h.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	data := pageData{
		Title:   title,
		Variant: v,
		State:   state,
		Cities:  model.Cities(v),
	}
	if state.AutoRefresh {
		data.RefreshSeconds = int(h.RefreshInterval.Seconds())
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		config.GetLogger().Errorw("could not render page", "variant", v, "error", err)
	}
}

func (h *WeatherHandler) currentSurface(r *http.Request, v model.Variant) (*model.DisplayState, error) {
	if c, err := r.Cookie(cookieName(v)); err == nil && c.Value != "" {
		state, err := h.WeatherService.Surface(r.Context(), c.Value)
		if err == nil && state.Variant == v {
			return state, nil
		}
		if err != nil && !errors.Is(err, repository.ErrSurfaceNotFound) {
			return nil, err
		}
	}
	state, err := h.WeatherService.OpenSurface(r.Context(), v)
	if state == nil {
		return nil, err
	}
	// A failed first lookup is already recorded on the state.
	return state, nil
}
