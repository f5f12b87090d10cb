package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/fakhrymubarak/weather-board/internal/config"
	"github.com/fakhrymubarak/weather-board/internal/handler"
	"github.com/fakhrymubarak/weather-board/internal/model"
	"github.com/fakhrymubarak/weather-board/internal/redis"
	"github.com/fakhrymubarak/weather-board/internal/repository"
	"github.com/fakhrymubarak/weather-board/internal/scheduler"
	"github.com/fakhrymubarak/weather-board/internal/service"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "weather-board",
		Short:         "Current weather board backed by OpenWeatherMap",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Look up the current weather at a coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, _ := cmd.Flags().GetString("lat")
			lon, _ := cmd.Flags().GetString("lon")
			name, _ := cmd.Flags().GetString("name")
			key, _ := cmd.Flags().GetString("key")
			output, _ := cmd.Flags().GetString("output")
			return getWeather(cmd.Context(), cmd.OutOrStdout(), service.LookupInput{
				Lat: lat, Lon: lon, Name: name, Credential: key,
			}, output)
		},
	}
	getCmd.Flags().String("lat", "", "Latitude in decimal degrees")
	getCmd.Flags().String("lon", "", "Longitude in decimal degrees")
	getCmd.Flags().String("name", "", "Label for the location")
	getCmd.Flags().String("key", "", "OpenWeatherMap API key (defaults to OPENWEATHERMAP_API_KEY)")
	getCmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
	_ = getCmd.MarkFlagRequired("lat")
	_ = getCmd.MarkFlagRequired("lon")

	citiesCmd := &cobra.Command{
		Use:   "cities",
		Short: "List the built-in cities",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("variant")
			v, err := model.ParseVariant(name)
			if err != nil {
				return err
			}
			return printCities(cmd.OutOrStdout(), model.Cities(v))
		},
	}
	citiesCmd.Flags().String("variant", string(model.VariantConfigured), "City table (configured, user)")

	iconCmd := &cobra.Command{
		Use:   "icon [CODE]",
		Short: "Print the glyph for an OpenWeatherMap icon code, or the whole table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), model.IconGlyph(args[0]))
				return err
			}
			return printIcons(cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(serveCmd, getCmd, citiesCmd, iconCmd)
	return rootCmd
}

func serve(ctx context.Context) error {
	log := config.GetLogger()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if err := redis.Ping(ctx); err != nil {
		log.Warnw("redis not reachable at startup", "addr", config.GetRedisAddr(), "error", err)
	}
	defer func() {
		if err := redis.Close(); err != nil {
			log.Errorw("could not close redis client", "error", err)
		}
	}()

	configuredKey := config.GetOpenWeatherMapAPIKey()
	if configuredKey == "" {
		log.Warnw("OPENWEATHERMAP_API_KEY is not set; the configured page will show a setup error")
	}

	refresher := scheduler.New(config.GetRefreshInterval())
	refresher.Start()
	defer refresher.Stop()

	svc := service.NewWeatherService(
		repository.NewWeatherClient(repository.DefaultClientOptions()),
		repository.NewDisplayRepository(config.GetSessionTTL()),
		refresher,
		configuredKey,
	)
	router := handler.SetupRouter(handler.NewWeatherHandler(svc), config.GetTracingServiceName())

	port := config.GetServerPort()
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: config.GetServerTimeoutDuration("read_header_timeout", 15*time.Second),
		ReadTimeout:       config.GetServerTimeoutDuration("read_timeout", 15*time.Second),
		WriteTimeout:      config.GetServerTimeoutDuration("write_timeout", 10*time.Second),
		IdleTimeout:       config.GetServerTimeoutDuration("idle_timeout", 30*time.Second),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("weather board listening", "port", port)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorw("graceful shutdown failed", "error", err)
			return server.Close()
		}
		return nil
	}
}

func getWeather(ctx context.Context, out io.Writer, in service.LookupInput, output string) error {
	if output != "text" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}
	client := repository.NewWeatherClient(repository.DefaultClientOptions())
	svc := service.NewWeatherService(client, nil, nil, config.GetOpenWeatherMapAPIKey())

	reading, err := svc.Lookup(ctx, in)
	if err != nil {
		v := model.VariantConfigured
		if in.Credential != "" {
			v = model.VariantUser
		}
		return fmt.Errorf("%s (%w)", repository.ToDisplayError(err, v).Message, err)
	}

	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reading)
	}
	return printReading(out, reading)
}

func printReading(out io.Writer, r *model.WeatherReading) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s, %s\t%s %s\n", r.LocationName, r.CountryLabel, r.ConditionGlyph, r.ConditionText)
	fmt.Fprintf(w, "Temperature\t%.1f°C (feels like %.1f°C)\n", r.TemperatureC, r.FeelsLikeC)
	fmt.Fprintf(w, "Humidity\t%d%%\n", r.HumidityPct)
	fmt.Fprintf(w, "Wind\t%.1f m/s\n", r.WindSpeedMps)
	fmt.Fprintf(w, "Pressure\t%d hPa\n", r.PressureHpa)
	fmt.Fprintf(w, "Visibility\t%.1f km\n", r.VisibilityKm)
	if r.SunriseLocal != "" {
		fmt.Fprintf(w, "Sunrise\t%s\n", r.SunriseLocal)
	}
	if r.SunsetLocal != "" {
		fmt.Fprintf(w, "Sunset\t%s\n", r.SunsetLocal)
	}
	return w.Flush()
}

func printIcons(out io.Writer) error {
	codes := model.IconCodes()
	sort.Strings(codes)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range codes {
		fmt.Fprintf(w, "%s\t%s\n", c, model.IconGlyph(c))
	}
	return w.Flush()
}

func printCities(out io.Writer, cities []model.City) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCITY\tCOUNTRY\tLAT\tLON")
	for i, c := range cities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, c.DisplayName, c.CountryLabel, c.Coordinate.LatParam(), c.Coordinate.LonParam())
	}
	return w.Flush()
}
