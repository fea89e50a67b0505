package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

const dateLayout = "2006-01-02"

// Config holds all simulation settings. Values come from an optional YAML
// file named by CONFIG_PATH, then environment variables, then defaults.
type Config struct {
	// Observation site.
	Site domain.Site `yaml:"site"`

	// Simulation date range. EndDate may be empty, in which case the span
	// ends at the last raw sample of the longest star.
	StartDate string         `yaml:"start_date"`
	EndDate   string         `yaml:"end_date"`
	TimeZone  string         `yaml:"time_zone"`
	Start     time.Time      `yaml:"-"`
	End       time.Time      `yaml:"-"`
	Location  *time.Location `yaml:"-"`

	// Filtering parameters.
	ElevationThreshold float64 `yaml:"elevation_threshold"` // degrees
	WindThreshold      float64 `yaml:"wind_threshold"`      // km/h
	PrecipThreshold    float64 `yaml:"precip_threshold"`    // mm
	MaxCloudCoverage   float64 `yaml:"max_cloud_coverage"`  // percent
	CloudSize          float64 `yaml:"cloud_size"`          // degrees
	ScheduleVerbose    bool    `yaml:"schedule_verbose"`

	// Field of view.
	FieldCenter domain.SkyPosition `yaml:"field_center"`
	FOV         float64            `yaml:"fov"` // full width, degrees

	// Weather source. WeatherFile, when set, replaces the API call.
	WeatherBaseURL string        `yaml:"weather_base_url"`
	WeatherHourly  string        `yaml:"weather_hourly"`
	WeatherFile    string        `yaml:"weather_file"`
	WeatherTimeout time.Duration `yaml:"weather_timeout"`

	// Star generation.
	StarsDir        string  `yaml:"stars_dir"`
	LuminosityScale float64 `yaml:"luminosity_scale"` // model output to erg/s/cm^2
	MinSeparation   float64 `yaml:"min_separation"`   // degrees
	Seed            int64   `yaml:"seed"`
	FirstStar       string  `yaml:"first_star"`
	Workers         int     `yaml:"workers"`

	// Output sinks. Empty paths disable the corresponding sink.
	OutputCSV    string   `yaml:"output_csv"`
	OutputSQLite string   `yaml:"output_sqlite"`
	KafkaEnabled bool     `yaml:"kafka_enabled"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"-"`
}

// Default returns the built-in settings: ROTSE-III at McDonald Observatory.
func Default() *Config {
	return &Config{
		Site:               domain.Site{Latitude: 30.6715, Longitude: -104.0224, Elevation: 2075},
		StartDate:          "2003-01-16",
		TimeZone:           "America/Chicago",
		ElevationThreshold: 20,
		WindThreshold:      40,
		PrecipThreshold:    0.1,
		MaxCloudCoverage:   80,
		CloudSize:          0.5,
		FieldCenter:        domain.SkyPosition{RA: 150, Dec: 30},
		FOV:                1.85,
		WeatherBaseURL:     "https://archive-api.open-meteo.com/v1/archive",
		WeatherHourly:      "precipitation,windspeed_10m,cloudcover,weathercode",
		WeatherTimeout:     30 * time.Second,
		StarsDir:           "stars",
		LuminosityScale:    6.29e14,
		MinSeparation:      0.01,
		Seed:               1,
		Workers:            runtime.NumCPU(),
		OutputCSV:          "observations.csv",
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaTopic:         "rotse-observations",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load reads configuration from CONFIG_PATH and environment variables,
// applying defaults where unset.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = shutdownTimeout

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"OBS_LATITUDE", &cfg.Site.Latitude},
		{"OBS_LONGITUDE", &cfg.Site.Longitude},
		{"OBS_ELEVATION", &cfg.Site.Elevation},
		{"ELEVATION_THRESHOLD", &cfg.ElevationThreshold},
		{"WIND_THRESHOLD", &cfg.WindThreshold},
		{"PRECIP_THRESHOLD", &cfg.PrecipThreshold},
		{"MAX_CLOUD_COVERAGE", &cfg.MaxCloudCoverage},
		{"CLOUD_SIZE", &cfg.CloudSize},
		{"FOV_CENTER_RA", &cfg.FieldCenter.RA},
		{"FOV_CENTER_DEC", &cfg.FieldCenter.Dec},
		{"FOV_SIZE", &cfg.FOV},
		{"STAR_MIN_SEPARATION", &cfg.MinSeparation},
		{"LUMINOSITY_SCALE", &cfg.LuminosityScale},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = parsed
	}

	cfg.StartDate = sharedcfg.EnvOrDefault("SIM_START_DATE", cfg.StartDate)
	cfg.EndDate = sharedcfg.EnvOrDefault("SIM_END_DATE", cfg.EndDate)
	cfg.TimeZone = sharedcfg.EnvOrDefault("SIM_TIMEZONE", cfg.TimeZone)
	cfg.WeatherBaseURL = sharedcfg.EnvOrDefault("WEATHER_BASE_URL", cfg.WeatherBaseURL)
	cfg.WeatherHourly = sharedcfg.EnvOrDefault("WEATHER_HOURLY", cfg.WeatherHourly)
	cfg.WeatherFile = sharedcfg.EnvOrDefault("WEATHER_FILE", cfg.WeatherFile)
	cfg.StarsDir = sharedcfg.EnvOrDefault("STARS_DIR", cfg.StarsDir)
	cfg.FirstStar = sharedcfg.EnvOrDefault("FIRST_STAR", cfg.FirstStar)
	cfg.OutputCSV = sharedcfg.EnvOrDefault("OUTPUT_CSV", cfg.OutputCSV)
	cfg.OutputSQLite = sharedcfg.EnvOrDefault("OUTPUT_SQLITE", cfg.OutputSQLite)
	cfg.KafkaTopic = sharedcfg.EnvOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.HTTPAddr = sharedcfg.EnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = sharedcfg.EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = sharedcfg.EnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = parseBool(v)
	}
	if v := os.Getenv("SCHEDULE_VERBOSE"); v != "" {
		cfg.ScheduleVerbose = parseBool(v)
	}
	if v := os.Getenv("WEATHER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return errors.New("invalid WEATHER_TIMEOUT")
		}
		cfg.WeatherTimeout = d
	}
	if v := os.Getenv("STAR_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.New("invalid STAR_SEED")
		}
		cfg.Seed = seed
	}
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.New("invalid WORKERS")
		}
		cfg.Workers = n
	}
	return nil
}

// resolve turns the textual date and zone settings into instants.
func (c *Config) resolve() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid SIM_TIMEZONE %q: %w", c.TimeZone, err)
	}
	c.Location = loc

	start, err := time.ParseInLocation(dateLayout, c.StartDate, loc)
	if err != nil {
		return fmt.Errorf("invalid SIM_START_DATE %q: %w", c.StartDate, err)
	}
	c.Start = start

	c.End = time.Time{}
	if c.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, c.EndDate, loc)
		if err != nil {
			return fmt.Errorf("invalid SIM_END_DATE %q: %w", c.EndDate, err)
		}
		// The end date is inclusive.
		c.End = end.AddDate(0, 0, 1)
	}
	return nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch {
	case c.Site.Latitude < -90 || c.Site.Latitude > 90:
		return errors.New("OBS_LATITUDE must be within [-90, 90]")
	case c.Site.Longitude < -180 || c.Site.Longitude > 180:
		return errors.New("OBS_LONGITUDE must be within [-180, 180]")
	case c.FOV <= 0:
		return errors.New("FOV_SIZE must be positive")
	case c.FieldCenter.Dec < -90 || c.FieldCenter.Dec > 90:
		return errors.New("FOV_CENTER_DEC must be within [-90, 90]")
	case c.MaxCloudCoverage < 0 || c.MaxCloudCoverage > 100:
		return errors.New("MAX_CLOUD_COVERAGE must be within [0, 100]")
	case c.CloudSize <= 0:
		return errors.New("CLOUD_SIZE must be positive")
	case c.MinSeparation < 0:
		return errors.New("STAR_MIN_SEPARATION must not be negative")
	case c.LuminosityScale <= 0:
		return errors.New("LUMINOSITY_SCALE must be positive")
	case c.Workers <= 0:
		return errors.New("WORKERS must be positive")
	case !c.End.IsZero() && !c.End.After(c.Start):
		return errors.New("SIM_END_DATE must not precede SIM_START_DATE")
	case c.WeatherFile == "" && c.WeatherBaseURL == "":
		return errors.New("one of WEATHER_FILE or WEATHER_BASE_URL is required")
	case c.StarsDir == "":
		return errors.New("STARS_DIR is required")
	case c.KafkaEnabled && len(c.KafkaBrokers) == 0:
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	case c.KafkaEnabled && c.KafkaTopic == "":
		return errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}
	return nil
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}
