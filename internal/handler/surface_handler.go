package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fakhrymubarak/weather-board/internal/model"
	"github.com/fakhrymubarak/weather-board/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxRequestBytes = 64 << 10

var validate = validator.New()

var errBadRequest = errors.New("bad request")

type requestError struct{ msg string }

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

func badRequest(msg string) error { return &requestError{msg: msg} }

// formBinder is a request body that can also be filled from an HTML form.
type formBinder interface {
	fromForm(form url.Values) error
}

type createSurfaceRequest struct {
	Variant string `json:"variant" validate:"omitempty,oneof=configured user"`
}

func (req *createSurfaceRequest) fromForm(form url.Values) error {
	req.Variant = form.Get("variant")
	return nil
}

type credentialRequest struct {
	APIKey string `json:"api_key" validate:"max=128"`
}

func (req *credentialRequest) fromForm(form url.Values) error {
	req.APIKey = form.Get("api_key")
	return nil
}

type cityRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

func (req *cityRequest) fromForm(form url.Values) error {
	idx, err := strconv.Atoi(form.Get("index"))
	if err != nil {
		return badRequest("index must be an integer")
	}
	req.Index = &idx
	return nil
}

type customRequest struct {
	Lat  coordText `json:"lat"`
	Lon  coordText `json:"lon"`
	Name string    `json:"name" validate:"max=64"`
}

func (req *customRequest) fromForm(form url.Values) error {
	req.Lat = coordText(form.Get("lat"))
	req.Lon = coordText(form.Get("lon"))
	req.Name = form.Get("name")
	return nil
}

type autoRefreshRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (req *autoRefreshRequest) fromForm(form url.Values) error {
	// An unchecked checkbox is simply absent from the form.
	v := form.Get("enabled")
	enabled := v == "on" || v == "true" || v == "1"
	req.Enabled = &enabled
	return nil
}

// coordText accepts a coordinate sent either as a JSON number or a string;
// parsing happens in the service so both paths report the same errors.
type coordText string

func (c *coordText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = coordText(s)
		return nil
	}
	if string(b) == "null" {
		*c = ""
		return nil
	}
	*c = coordText(b)
	return nil
}

func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

// parseForm fills r.PostForm from a urlencoded or multipart body.
func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(maxRequestBytes)
	}
	return r.ParseForm()
}

// bind decodes a JSON or form body into dst and validates it. An empty JSON
// body leaves dst at its zero value.
func bind(r *http.Request, dst formBinder) error {
	if isForm(r) {
		r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBytes)
		if err := parseForm(r); err != nil {
			return badRequest("invalid form body")
		}
		if err := dst.fromForm(r.PostForm); err != nil {
			return err
		}
	} else {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return badRequest("invalid JSON body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return badRequest("invalid field " + strings.ToLower(verrs[0].Field()) + ": " + verrs[0].Tag())
		}
		return badRequest(err.Error())
	}
	return nil
}

// respondState answers a surface operation. Form posts are sent back to the
// owning page; API calls get the state, with the lookup error if there was one.
func (h *WeatherHandler) respondState(w http.ResponseWriter, r *http.Request, state *model.DisplayState, err error) {
	if isForm(r) {
		v := model.Variant(r.PostFormValue("variant"))
		if state != nil {
			v = state.Variant
		}
		if err != nil && state == nil && !errors.Is(err, repository.ErrSurfaceNotFound) {
			h.writeError(w, r, err, v, nil)
			return
		}
		http.Redirect(w, r, pagePath(v), http.StatusSeeOther)
		return
	}
	if err != nil {
		v := model.VariantConfigured
		if state != nil {
			v = state.Variant
		}
		h.writeError(w, r, err, v, state)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, model.Success(state))
}

func (h *WeatherHandler) HandleCreateSurface(w http.ResponseWriter, r *http.Request) {
	var req createSurfaceRequest
	if err := bind(r, &req); err != nil {
		h.respondState(w, r, nil, err)
		return
	}
	v, _ := model.ParseVariant(req.Variant)
	state, err := h.WeatherService.OpenSurface(r.Context(), v)
	if state != nil && !isForm(r) {
		// The surface exists even if its first lookup failed.
		h.writeJSONResponse(w, http.StatusCreated, stateEnvelope(state, err))
		return
	}
	h.respondState(w, r, state, err)
}

func stateEnvelope(state *model.DisplayState, err error) model.Response {
	if err != nil {
		return model.Failure(errorMessage(err, state.Variant), state)
	}
	return model.Success(state)
}

func (h *WeatherHandler) HandleGetSurface(w http.ResponseWriter, r *http.Request) {
	state, err := h.WeatherService.Surface(r.Context(), chi.URLParam(r, "id"))
	h.respondState(w, r, state, err)
}

func (h *WeatherHandler) HandleDeleteSurface(w http.ResponseWriter, r *http.Request) {
	if err := h.WeatherService.CloseSurface(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, model.VariantConfigured, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WeatherHandler) HandleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := bind(r, &req); err != nil {
		h.respondState(w, r, nil, err)
		return
	}
	state, err := h.WeatherService.SetCredential(r.Context(), chi.URLParam(r, "id"), req.APIKey)
	h.respondState(w, r, state, err)
}

func (h *WeatherHandler) HandleSelectCity(w http.ResponseWriter, r *http.Request) {
	var req cityRequest
	if err := bind(r, &req); err != nil {
		h.respondState(w, r, nil, err)
		return
	}
	state, err := h.WeatherService.SelectCity(r.Context(), chi.URLParam(r, "id"), *req.Index)
	h.respondState(w, r, state, err)
}

func (h *WeatherHandler) HandleRandomCity(w http.ResponseWriter, r *http.Request) {
	if isForm(r) {
		_ = parseForm(r)
	}
	state, err := h.WeatherService.SelectRandomCity(r.Context(), chi.URLParam(r, "id"))
	h.respondState(w, r, state, err)
}

func (h *WeatherHandler) HandleCustomLocation(w http.ResponseWriter, r *http.Request) {
	var req customRequest
	if err := bind(r, &req); err != nil {
		h.respondState(w, r, nil, err)
		return
	}
	state, err := h.WeatherService.SelectCustom(r.Context(), chi.URLParam(r, "id"), req.Name, string(req.Lat), string(req.Lon))
	h.respondState(w, r, state, err)
}

func (h *WeatherHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if isForm(r) {
		_ = parseForm(r)
	}
	state, err := h.WeatherService.Refresh(r.Context(), chi.URLParam(r, "id"))
	h.respondState(w, r, state, err)
}

func (h *WeatherHandler) HandleAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var req autoRefreshRequest
	if err := bind(r, &req); err != nil {
		h.respondState(w, r, nil, err)
		return
	}
	state, err := h.WeatherService.SetAutoRefresh(r.Context(), chi.URLParam(r, "id"), *req.Enabled)
	h.respondState(w, r, state, err)
}
