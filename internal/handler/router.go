package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SetupRouter wires the pages and the JSON API. serviceName names the server span.
func SetupRouter(h *WeatherHandler, serviceName string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", h.HandleConfiguredPage)
	r.Get("/openweather", h.HandleUserPage)
	r.Get("/health", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cities", h.HandleCities)
		r.Get("/icons/{code}", h.HandleIcon)
		r.Get("/weather", h.HandleWeather)

		r.Post("/surfaces", h.HandleCreateSurface)
		r.Route("/surfaces/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetSurface)
			r.Delete("/", h.HandleDeleteSurface)
			// HTML forms can only POST.
			r.Put("/credential", h.HandleSetCredential)
			r.Post("/credential", h.HandleSetCredential)
			r.Post("/city", h.HandleSelectCity)
			r.Post("/random", h.HandleRandomCity)
			r.Post("/custom", h.HandleCustomLocation)
			r.Post("/refresh", h.HandleRefresh)
			r.Put("/auto-refresh", h.HandleAutoRefresh)
			r.Post("/auto-refresh", h.HandleAutoRefresh)
		})
	})

	return otelhttp.NewHandler(r, serviceName)
}
