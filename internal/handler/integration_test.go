package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fakhrymubarak/weather-board/internal/model"
	"github.com/fakhrymubarak/weather-board/internal/repository"
	"github.com/fakhrymubarak/weather-board/internal/scheduler"
	"github.com/fakhrymubarak/weather-board/internal/service"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

const owmBody = `{
	"name": "Beijing",
	"main": {"temp": 22.5, "feels_like": 21.8, "humidity": 40, "pressure": 1013},
	"wind": {"speed": 3.2},
	"weather": [{"description": "晴", "icon": "01d"}],
	"visibility": 10000,
	"sys": {"sunrise": 1700000000, "sunset": 1700036100}
}`

type WeatherAPITestSuite struct {
	suite.Suite
	miniRedis   *miniredis.Miniredis
	redisClient *redisv9.Client
	mockOWM     *httptest.Server
	refresher   *scheduler.Scheduler
	httpServer  *httptest.Server
	owmCalls    atomic.Int32
}

func (s *WeatherAPITestSuite) SetupTest() {
	s.miniRedis = miniredis.RunT(s.T())
	s.redisClient = redisv9.NewClient(&redisv9.Options{Addr: s.miniRedis.Addr()})
	s.owmCalls.Store(0)

	s.mockOWM = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.owmCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("appid") {
		case "bad-key":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"cod":401,"message":"Invalid API key"}`)
		default:
			_, _ = io.WriteString(w, owmBody)
		}
	}))

	client := repository.NewWeatherClient(repository.ClientOptions{
		BaseURL:  s.mockOWM.URL,
		Units:    "metric",
		Lang:     "zh_cn",
		Location: time.UTC,
	}, s.mockOWM.Client())
	display := repository.NewDisplayRepository(10*time.Minute, s.redisClient)
	s.refresher = scheduler.New(time.Hour)
	svc := service.NewWeatherService(client, display, s.refresher, "server-key")

	h := NewWeatherHandler(svc)
	h.Ping = func(ctx context.Context) error { return s.redisClient.Ping(ctx).Err() }
	h.SessionTTL = 10 * time.Minute
	h.RefreshInterval = time.Minute
	s.httpServer = httptest.NewServer(SetupRouter(h, "test"))
}

func (s *WeatherAPITestSuite) TearDownTest() {
	s.httpServer.Close()
	s.mockOWM.Close()
	s.refresher.Stop()
	_ = s.redisClient.Close()
}

func TestWeatherAPITestSuite(t *testing.T) {
	suite.Run(t, new(WeatherAPITestSuite))
}

type stateEnvelopeBody struct {
	Data    *model.DisplayState `json:"data"`
	Error   *string             `json:"error"`
	Message string              `json:"message"`
}

func (s *WeatherAPITestSuite) call(method, path, body string) (*http.Response, stateEnvelopeBody) {
	req, err := http.NewRequest(method, s.httpServer.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out stateEnvelopeBody
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (s *WeatherAPITestSuite) TestHealth() {
	resp, _ := s.call(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, resp.StatusCode)

	s.miniRedis.Close()
	resp, _ = s.call(http.MethodGet, "/health", "")
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *WeatherAPITestSuite) TestStatelessLookup() {
	resp, err := http.Get(s.httpServer.URL + "/api/weather?lat=39.9042&lon=116.4074&name=" + url.QueryEscape("北京"))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Data model.WeatherReading `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("北京", body.Data.LocationName)
	s.Equal(22.5, body.Data.TemperatureC)
	s.Equal(10.0, body.Data.VisibilityKm)
	s.Equal("☀️", body.Data.ConditionGlyph)
	s.Equal("22:13", body.Data.SunriseLocal)
	s.EqualValues(1, s.owmCalls.Load())
}

func (s *WeatherAPITestSuite) TestStatelessLookup_BadVisitorKey() {
	req, _ := http.NewRequest(http.MethodGet, s.httpServer.URL+"/api/weather?lat=1&lon=2", nil)
	req.Header.Set("X-API-Key", "bad-key")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *WeatherAPITestSuite) TestStatelessLookup_InvalidCoordinateMakesNoCall() {
	resp, err := http.Get(s.httpServer.URL + "/api/weather?lat=north&lon=2")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.EqualValues(0, s.owmCalls.Load())
}

func (s *WeatherAPITestSuite) TestConfiguredSurfaceLifecycle() {
	resp, body := s.call(http.MethodPost, "/api/surfaces", `{"variant":"configured"}`)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().NotNil(body.Data)
	s.Require().NotNil(body.Data.Reading)
	s.Equal("北京", body.Data.Reading.LocationName)
	s.True(body.Data.AutoRefresh)
	s.Equal(1, s.refresher.Len())
	id := body.Data.SurfaceID

	resp, body = s.call(http.MethodPost, "/api/surfaces/"+id+"/city", `{"index":1}`)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("上海", body.Data.Reading.LocationName)
	s.Equal(1, s.refresher.Len())

	resp, body = s.call(http.MethodPut, "/api/surfaces/"+id+"/auto-refresh", `{"enabled":false}`)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.False(body.Data.AutoRefresh)
	s.Equal(0, s.refresher.Len())

	resp, _ = s.call(http.MethodDelete, "/api/surfaces/"+id, "")
	s.Equal(http.StatusNoContent, resp.StatusCode)

	resp, _ = s.call(http.MethodGet, "/api/surfaces/"+id, "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *WeatherAPITestSuite) TestUserSurfaceCredentialFlow() {
	resp, body := s.call(http.MethodPost, "/api/surfaces", `{"variant":"user"}`)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Nil(body.Data.Reading)
	s.EqualValues(0, s.owmCalls.Load())
	id := body.Data.SurfaceID

	resp, body = s.call(http.MethodPost, "/api/surfaces/"+id+"/refresh", "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().NotNil(body.Error)
	s.Equal("请输入 API Key", *body.Error)
	s.EqualValues(0, s.owmCalls.Load())

	resp, body = s.call(http.MethodPut, "/api/surfaces/"+id+"/credential", `{"api_key":"bad-key"}`)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.True(body.Data.HasCredential)

	resp, body = s.call(http.MethodPost, "/api/surfaces/"+id+"/city", `{"index":0}`)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("API Key 无效，请检查您的 API Key", *body.Error)
	s.Nil(body.Data.Reading)

	s.call(http.MethodPut, "/api/surfaces/"+id+"/credential", `{"api_key":"good-key"}`)
	resp, body = s.call(http.MethodPost, "/api/surfaces/"+id+"/custom", `{"lat":51.5,"lon":-0.12,"name":"London"}`)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("London", body.Data.Reading.LocationName)
	s.Equal(model.CustomCountryLabel, body.Data.Reading.CountryLabel)
	s.Nil(body.Data.Error)

	s.call(http.MethodDelete, "/api/surfaces/"+id, "")
	s.False(s.miniRedis.Exists("surface:" + id + ":credential"))
}

func (s *WeatherAPITestSuite) TestPagesKeepTheirSurface() {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	client := &http.Client{Jar: jar}

	resp, err := client.Get(s.httpServer.URL + "/")
	s.Require().NoError(err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(page), "北京")
	s.Contains(string(page), `http-equiv="refresh" content="60"`)

	u, _ := url.Parse(s.httpServer.URL)
	cookies := jar.Cookies(u)
	s.Require().Len(cookies, 1)
	first := cookies[0].Value

	resp, err = client.Get(s.httpServer.URL + "/")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(first, jar.Cookies(u)[0].Value)
	s.EqualValues(1, s.owmCalls.Load(), "reopening the page reuses the surface")

	resp, err = client.Get(s.httpServer.URL + "/openweather")
	s.Require().NoError(err)
	page, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Contains(string(page), "API Key")
	s.NotContains(string(page), `http-equiv="refresh"`)
	s.Len(jar.Cookies(u), 2)
}

func (s *WeatherAPITestSuite) TestFormPostRedirectsToPage() {
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	resp, err := client.Get(s.httpServer.URL + "/")
	s.Require().NoError(err)
	resp.Body.Close()
	u, _ := url.Parse(s.httpServer.URL)
	id := jar.Cookies(u)[0].Value

	noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err = noFollow.PostForm(s.httpServer.URL+"/api/surfaces/"+id+"/city", url.Values{"index": {"4"}, "variant": {"configured"}})
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	_, body := s.call(http.MethodGet, "/api/surfaces/"+id, "")
	s.Equal("杭州", body.Data.Reading.LocationName)
}
