package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var once sync.Once
var logger *zap.SugaredLogger
var loggerOnce sync.Once

// isTestRun returns true if the current process is a Go test binary.
func isTestRun() bool {
	return flag.Lookup("test.v") != nil || filepath.Ext(os.Args[0]) == ".test"
}

func initConfig() {
	once.Do(func() {
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		root, err := getProjectRoot()
		if err != nil {
			GetLogger().Errorw("Error finding project root", "error", err)
		}
		viper.SetConfigType("yaml")

		viper.SetConfigName("config")
		viper.AddConfigPath(root)
		if err = viper.ReadInConfig(); err != nil {
			GetLogger().Errorw("Error reading config file", "error", err)
		}

		if isTestRun() {
			viper.SetConfigName("config_test")
			if err = viper.MergeInConfig(); err != nil {
				GetLogger().Errorw("Error reading test config file", "error", err)
			}
		}
	})
}

func getProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func GetOpenWeatherApiUrl() string {
	initConfig()
	url := viper.GetString("openweathermap.api_url")
	if url == "" {
		return "https://api.openweathermap.org/data/2.5/weather"
	}
	return url
}

// GetOpenWeatherUnits returns the units flag sent upstream. Defaults to metric.
func GetOpenWeatherUnits() string {
	initConfig()
	if u := viper.GetString("openweathermap.units"); u != "" {
		return u
	}
	return "metric"
}

// GetOpenWeatherLang returns the response-language tag. Defaults to zh_cn.
func GetOpenWeatherLang() string {
	initConfig()
	if l := viper.GetString("openweathermap.lang"); l != "" {
		return l
	}
	return "zh_cn"
}

// GetOpenWeatherTimeout bounds a single upstream call. Defaults to 10s.
func GetOpenWeatherTimeout() time.Duration {
	initConfig()
	return getDuration("openweathermap.timeout", 10*time.Second)
}

// GetOpenWeatherMapAPIKey returns the server-side key. It is read once at
// startup by main and handed to the service; an empty value is not an error here.
func GetOpenWeatherMapAPIKey() string {
	_ = godotenv.Load()
	return os.Getenv("OPENWEATHERMAP_API_KEY")
}

func GetRedisAddr() string {
	initConfig()
	return viper.GetString("redis.addr")
}

func GetServerPort() string {
	initConfig()
	serverPort := viper.GetString("server.port")
	return serverPort
}

// GetServerTimeoutDuration parses one of the server.* timeouts, falling back to def.
func GetServerTimeoutDuration(key string, def time.Duration) time.Duration {
	initConfig()
	return getDuration("server."+key, def)
}

// GetSessionTTL is how long an idle page session keeps its display state
// and credential. Defaults to 30m.
func GetSessionTTL() time.Duration {
	initConfig()
	return getDuration("session.ttl", 30*time.Minute)
}

// GetRefreshInterval is the auto-refresh period. Defaults to 5m.
func GetRefreshInterval() time.Duration {
	initConfig()
	return getDuration("refresh.interval", 5*time.Minute)
}

// GetDisplayLocation returns the zone sunrise and sunset are rendered in.
// Defaults to Asia/Shanghai; an unknown zone falls back to the local zone.
func GetDisplayLocation() *time.Location {
	initConfig()
	name := viper.GetString("display.timezone")
	if name == "" {
		name = "Asia/Shanghai"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		GetLogger().Warnw("Unknown display timezone, using local", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}

// GetTracingServiceName names the service in spans.
func GetTracingServiceName() string {
	initConfig()
	if n := viper.GetString("telemetry.service_name"); n != "" {
		return n
	}
	return "weather-board"
}

func getDuration(key string, def time.Duration) time.Duration {
	durStr := viper.GetString(key)
	if durStr == "" {
		return def
	}
	dur, err := time.ParseDuration(durStr)
	if err != nil || dur <= 0 {
		GetLogger().Warnw("Invalid duration in config, using default", "key", key, "value", durStr, "default", def)
		return def
	}
	return dur
}

// ReloadConfigForTest resets the config singleton and reloads Viper config. Use only in tests.
func ReloadConfigForTest() {
	once = sync.Once{}
	initConfig()
}

func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
	return logger
}
