package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/fakhrymubarak/weather-board/internal/config"
	"github.com/fakhrymubarak/weather-board/internal/model"
	"github.com/fakhrymubarak/weather-board/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var validate = validator.New()

// Refresher re-invokes a job periodically per surface.
type Refresher interface {
	Schedule(surfaceID string, job func()) error
	Cancel(surfaceID string)
}

// WeatherServiceInterface is what the HTTP layer and CLI need.
type WeatherServiceInterface interface {
	Lookup(ctx context.Context, in LookupInput) (*model.WeatherReading, error)
	OpenSurface(ctx context.Context, variant model.Variant) (*model.DisplayState, error)
	Surface(ctx context.Context, surfaceID string) (*model.DisplayState, error)
	CloseSurface(ctx context.Context, surfaceID string) error
	SetCredential(ctx context.Context, surfaceID, key string) (*model.DisplayState, error)
	SelectCity(ctx context.Context, surfaceID string, index int) (*model.DisplayState, error)
	SelectRandomCity(ctx context.Context, surfaceID string) (*model.DisplayState, error)
	SelectCustom(ctx context.Context, surfaceID, name, lat, lon string) (*model.DisplayState, error)
	Refresh(ctx context.Context, surfaceID string) (*model.DisplayState, error)
	SetAutoRefresh(ctx context.Context, surfaceID string, enabled bool) (*model.DisplayState, error)
}

// LookupInput is a one-off lookup not tied to a surface.
// An empty Credential falls back to the configured key.
type LookupInput struct {
	Lat        string
	Lon        string
	Name       string
	Credential string
}

// WeatherService ties the stateless client to per-surface display state.
type WeatherService struct {
	WeatherClient repository.WeatherClient
	Display       repository.DisplayRepository
	Refresher     Refresher

	// configuredKey is the server-side key, read once at startup.
	configuredKey  string
	refreshTimeout time.Duration
	newID          func() string
	pick           func(n int) int
}

// NewWeatherService creates a service. configuredKey may be empty; lookups on
// configured surfaces then fail with MissingCredential instead of crashing.
func NewWeatherService(client repository.WeatherClient, display repository.DisplayRepository, refresher Refresher, configuredKey string) *WeatherService {
	return &WeatherService{
		WeatherClient:  client,
		Display:        display,
		Refresher:      refresher,
		configuredKey:  configuredKey,
		refreshTimeout: 30 * time.Second,
		newID:          uuid.NewString,
		pick:           rand.IntN,
	}
}

// ParseCoordinate turns user-entered text into a coordinate. Range is not
// checked here; the provider answers out-of-range values with an error.
func ParseCoordinate(lat, lon string) (model.Coordinate, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if validate.Var(lat, "required") != nil || validate.Var(lon, "required") != nil {
		return model.Coordinate{}, repository.NewInvalidInput("请输入经纬度坐标")
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lon, 64)
	c := model.Coordinate{Latitude: la, Longitude: lo}
	if err1 != nil || err2 != nil || !c.IsFinite() {
		return model.Coordinate{}, repository.NewInvalidInput("请输入有效的经纬度坐标")
	}
	return c, nil
}

func (s *WeatherService) Lookup(ctx context.Context, in LookupInput) (*model.WeatherReading, error) {
	coord, err := ParseCoordinate(in.Lat, in.Lon)
	if err != nil {
		return nil, err
	}
	key := in.Credential
	if key == "" {
		key = s.configuredKey
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = model.DefaultCustomName
	}
	return s.WeatherClient.FetchReading(ctx, model.LookupRequest{
		Coordinate:   coord,
		Credential:   key,
		LocationName: name,
		CountryLabel: model.CustomCountryLabel,
	})
}

// OpenSurface starts a page session on the first city of the table.
// Configured surfaces load immediately and auto-refresh; user surfaces wait for a key.
func (s *WeatherService) OpenSurface(ctx context.Context, variant model.Variant) (*model.DisplayState, error) {
	idx := 0
	state := &model.DisplayState{
		SurfaceID:   s.newID(),
		Variant:     variant,
		Selection:   model.Selection{CityIndex: &idx},
		AutoRefresh: variant == model.VariantConfigured,
	}
	if err := s.Display.Create(ctx, state); err != nil {
		return nil, err
	}
	config.GetLogger().Infow("surface opened", "surface", state.SurfaceID, "variant", variant)

	if !state.AutoRefresh {
		return s.Display.Get(ctx, state.SurfaceID)
	}
	s.arm(state.SurfaceID)
	return s.lookup(ctx, state.SurfaceID)
}

// Surface returns the state of a surface and counts as visitor activity.
func (s *WeatherService) Surface(ctx context.Context, surfaceID string) (*model.DisplayState, error) {
	if err := s.Display.Touch(ctx, surfaceID); err != nil {
		return nil, err
	}
	return s.Display.Get(ctx, surfaceID)
}

// CloseSurface cancels the refresh job and drops the state and credential.
func (s *WeatherService) CloseSurface(ctx context.Context, surfaceID string) error {
	s.Refresher.Cancel(surfaceID)
	if err := s.Display.Delete(ctx, surfaceID); err != nil {
		return err
	}
	config.GetLogger().Infow("surface closed", "surface", surfaceID)
	return nil
}

func (s *WeatherService) SetCredential(ctx context.Context, surfaceID, key string) (*model.DisplayState, error) {
	key = strings.TrimSpace(key)
	if err := s.Display.Touch(ctx, surfaceID); err != nil {
		return nil, err
	}
	if err := s.Display.SetCredential(ctx, surfaceID, key); err != nil {
		return nil, err
	}
	if key == "" {
		return s.fail(ctx, surfaceID, repository.ErrMissingCredential)
	}
	return s.Display.Get(ctx, surfaceID)
}

func (s *WeatherService) SelectCity(ctx context.Context, surfaceID string, index int) (*model.DisplayState, error) {
	state, err := s.Surface(ctx, surfaceID)
	if err != nil {
		return nil, err
	}
	if _, ok := model.CityAt(state.Variant, index); !ok {
		return s.fail(ctx, surfaceID, repository.NewInvalidInput("未知的城市"))
	}
	return s.selectAndLookup(ctx, surfaceID, model.Selection{CityIndex: &index})
}

func (s *WeatherService) SelectRandomCity(ctx context.Context, surfaceID string) (*model.DisplayState, error) {
	state, err := s.Surface(ctx, surfaceID)
	if err != nil {
		return nil, err
	}
	idx := s.pick(len(model.Cities(state.Variant)))
	return s.selectAndLookup(ctx, surfaceID, model.Selection{CityIndex: &idx})
}

func (s *WeatherService) SelectCustom(ctx context.Context, surfaceID, name, lat, lon string) (*model.DisplayState, error) {
	if err := s.Display.Touch(ctx, surfaceID); err != nil {
		return nil, err
	}
	coord, err := ParseCoordinate(lat, lon)
	if err != nil {
		return s.fail(ctx, surfaceID, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultCustomName
	}
	return s.selectAndLookup(ctx, surfaceID, model.Selection{Custom: &model.CustomLocation{Name: name, Coordinate: coord}})
}

// Refresh looks up the current selection again on behalf of the visitor.
func (s *WeatherService) Refresh(ctx context.Context, surfaceID string) (*model.DisplayState, error) {
	if err := s.Display.Touch(ctx, surfaceID); err != nil {
		return nil, err
	}
	return s.lookup(ctx, surfaceID)
}

// SetAutoRefresh toggles the periodic refresh. Turning it on also refreshes now.
func (s *WeatherService) SetAutoRefresh(ctx context.Context, surfaceID string, enabled bool) (*model.DisplayState, error) {
	if err := s.Display.Touch(ctx, surfaceID); err != nil {
		return nil, err
	}
	state, err := s.Display.Update(ctx, surfaceID, func(st *model.DisplayState) error {
		st.AutoRefresh = enabled
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !enabled {
		s.Refresher.Cancel(surfaceID)
		return state, nil
	}
	s.arm(surfaceID)
	return s.lookup(ctx, surfaceID)
}

func (s *WeatherService) selectAndLookup(ctx context.Context, surfaceID string, sel model.Selection) (*model.DisplayState, error) {
	state, err := s.Display.Update(ctx, surfaceID, func(st *model.DisplayState) error {
		st.Selection = sel
		return nil
	})
	if err != nil {
		return nil, err
	}
	if state.AutoRefresh {
		// Re-arm so the timer never fires against the previous location.
		s.arm(surfaceID)
	}
	return s.lookup(ctx, surfaceID)
}

// lookup runs one generation of the current selection and commits the outcome.
// The returned error is the lookup failure, if any; the state reflects it.
func (s *WeatherService) lookup(ctx context.Context, surfaceID string) (*model.DisplayState, error) {
	tracer := otel.Tracer("weather-board/service")
	ctx, span := tracer.Start(ctx, "service: lookup")
	defer span.End()
	span.SetAttributes(attribute.String("surface.id", surfaceID))

	state, err := s.Display.Get(ctx, surfaceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read surface")
		return nil, err
	}
	name, country, coord, ok := state.Target()
	if !ok {
		return s.fail(ctx, surfaceID, repository.NewInvalidInput("请选择城市或输入经纬度坐标"))
	}

	seq, err := s.Display.BeginLookup(ctx, surfaceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin lookup")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("lookup.generation", seq))

	var reading *model.WeatherReading
	key, lookupErr := s.credentialFor(ctx, state)
	if lookupErr == nil {
		reading, lookupErr = s.WeatherClient.FetchReading(ctx, model.LookupRequest{
			Coordinate:   coord,
			Credential:   key,
			LocationName: name,
			CountryLabel: country,
		})
	}
	if lookupErr != nil {
		span.RecordError(lookupErr)
		span.SetStatus(codes.Error, string(repository.KindOf(lookupErr)))
		config.GetLogger().Warnw("weather lookup failed", "surface", surfaceID, "generation", seq, "location", name, "error", lookupErr)
	}

	committed, err := s.Display.CommitLookup(ctx, surfaceID, seq, reading, repository.ToDisplayError(lookupErr, state.Variant))
	if errors.Is(err, repository.ErrStaleGeneration) {
		config.GetLogger().Debugw("dropping stale lookup result", "surface", surfaceID, "generation", seq)
		committed, err = s.Display.Get(ctx, surfaceID)
	}
	if err != nil {
		return nil, err
	}
	if lookupErr == nil {
		span.SetStatus(codes.Ok, "")
	}
	return committed, lookupErr
}

func (s *WeatherService) credentialFor(ctx context.Context, state *model.DisplayState) (string, error) {
	if state.Variant == model.VariantUser {
		return s.Display.Credential(ctx, state.SurfaceID)
	}
	return s.configuredKey, nil
}

// fail records a failure that never reached the provider as a generation of
// its own, so an older lookup still in flight cannot clear it.
func (s *WeatherService) fail(ctx context.Context, surfaceID string, cause error) (*model.DisplayState, error) {
	state, err := s.Display.Get(ctx, surfaceID)
	if err != nil {
		return nil, err
	}
	seq, err := s.Display.BeginLookup(ctx, surfaceID)
	if err != nil {
		return nil, err
	}
	committed, err := s.Display.CommitLookup(ctx, surfaceID, seq, nil, repository.ToDisplayError(cause, state.Variant))
	if errors.Is(err, repository.ErrStaleGeneration) {
		committed, err = s.Display.Get(ctx, surfaceID)
	}
	if err != nil {
		return nil, err
	}
	return committed, cause
}

// arm (re)starts the periodic refresh for a surface. Scheduled lookups do not
// count as activity, so an abandoned surface expires and its job cancels itself.
func (s *WeatherService) arm(surfaceID string) {
	err := s.Refresher.Schedule(surfaceID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()
		if _, err := s.lookup(ctx, surfaceID); errors.Is(err, repository.ErrSurfaceNotFound) {
			config.GetLogger().Infow("surface expired, stopping refresh", "surface", surfaceID)
			s.Refresher.Cancel(surfaceID)
		}
	})
	if err != nil {
		config.GetLogger().Errorw("could not arm auto refresh", "surface", surfaceID, "error", err)
	}
}
