// Command rotsesim simulates ROTSE-III observations of a field of model
// stars: it schedules nightly exposures, filters them by weather and cloud
// transparency, and writes the surviving observations to the configured
// sinks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/adapter/csvio"
	httpadapter "github.com/couchcryptid/rotse-sim/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/rotse-sim/internal/adapter/kafka"
	"github.com/couchcryptid/rotse-sim/internal/adapter/openmeteo"
	"github.com/couchcryptid/rotse-sim/internal/adapter/sqlite"
	"github.com/couchcryptid/rotse-sim/internal/astro"
	"github.com/couchcryptid/rotse-sim/internal/config"
	"github.com/couchcryptid/rotse-sim/internal/domain"
	"github.com/couchcryptid/rotse-sim/internal/observability"
	"github.com/couchcryptid/rotse-sim/internal/pipeline"
	"github.com/couchcryptid/rotse-sim/internal/starfield"
	"github.com/couchcryptid/rotse-sim/internal/transparency"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	curves, err := csvio.LoadLightCurves(cfg.StarsDir, cfg.LuminosityScale)
	if err != nil {
		return err
	}
	stars, err := starfield.NewPlacer(cfg.FieldCenter, cfg.FOV, cfg.MinSeparation, cfg.Seed).Place(curves)
	if err != nil {
		return fmt.Errorf("place stars: %w", err)
	}
	logger.Info("stars loaded", "dir", cfg.StarsDir, "count", len(stars))

	if cfg.End.IsZero() {
		cfg.End = pipeline.DefaultEnd(cfg.Start, cfg.Location, stars)
		logger.Info("end date derived from light curves", "end", cfg.End)
	}

	rec, err := loadWeather(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	sinks, recorder, closeSinks, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	region := domain.FieldOfView(cfg.FieldCenter, cfg.FOV+2*cfg.CloudSize)
	clouds := transparency.NewRandomCloudGenerator(region, cfg.CloudSize, cfg.Seed)
	model := transparency.NewModel(clouds, logger, metrics)

	runner := pipeline.New(pipeline.ParamsFromConfig(cfg), rec, astro.NewOracle(), model,
		sinks, recorder, logger, metrics)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, runner, nil, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	report, err := runner.Run(ctx, stars)
	if err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		logger.Warn("some stars were aborted", "failed", len(failed), "stars", len(report.Results))
	}
	return nil
}

// loadWeather reads the weather file when present and otherwise calls the
// archive API, saving the result to the weather file if one is configured.
func loadWeather(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*domain.WeatherRecord, error) {
	if cfg.WeatherFile != "" {
		if _, err := os.Stat(cfg.WeatherFile); err == nil {
			rec, err := openmeteo.LoadFile(cfg.WeatherFile, cfg.Location)
			if err != nil {
				return nil, err
			}
			logger.Info("weather loaded from file", "path", cfg.WeatherFile, "hours", len(rec.Hours))
			return rec, nil
		}
	}

	client := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherHourly, cfg.WeatherTimeout, logger, metrics)
	rec, err := client.Fetch(ctx, cfg.Site, cfg.Start, cfg.End.Add(-time.Nanosecond), cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	if cfg.WeatherFile != "" {
		if err := openmeteo.SaveFile(cfg.WeatherFile, rec); err != nil {
			logger.Warn("weather file not saved", "path", cfg.WeatherFile, "error", err)
		}
	}
	return rec, nil
}

// openSinks opens every configured output. The returned func closes them.
func openSinks(cfg *config.Config, logger *slog.Logger) ([]pipeline.Sink, pipeline.AdjustmentRecorder, func(), error) {
	var (
		sinks    []pipeline.Sink
		recorder pipeline.AdjustmentRecorder
		closers  []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}

	if cfg.OutputCSV != "" {
		w, err := csvio.Create(cfg.OutputCSV)
		if err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, pipeline.Sink{Name: "csv", Loader: w})
		closers = append(closers, w.Close)
	}
	if cfg.OutputSQLite != "" {
		store, err := sqlite.NewStore(cfg.OutputSQLite)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Loader: store})
		recorder = store
		closers = append(closers, store.Close)
	}
	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: w})
		closers = append(closers, w.Close)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if len(sinks) == 0 {
		logger.Warn("no output sink configured")
	}
	return sinks, recorder, closeAll, nil
}
