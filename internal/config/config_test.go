package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 30.6715, cfg.Site.Latitude, 1e-9)
	assert.InDelta(t, -104.0224, cfg.Site.Longitude, 1e-9)
	assert.Equal(t, "America/Chicago", cfg.Location.String())
	assert.Equal(t, time.Date(2003, 1, 16, 0, 0, 0, 0, cfg.Location), cfg.Start)
	assert.True(t, cfg.End.IsZero())
	assert.InDelta(t, 80, cfg.MaxCloudCoverage, 0)
	assert.InDelta(t, 1.85, cfg.FOV, 0)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "observations.csv", cfg.OutputCSV)
	assert.Empty(t, cfg.OutputSQLite)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.WeatherTimeout)
	assert.Positive(t, cfg.Workers)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OBS_LATITUDE", "-30.5")
	t.Setenv("OBS_LONGITUDE", "149.06")
	t.Setenv("SIM_START_DATE", "2004-03-01")
	t.Setenv("SIM_END_DATE", "2004-03-10")
	t.Setenv("SIM_TIMEZONE", "Australia/Sydney")
	t.Setenv("WIND_THRESHOLD", "25")
	t.Setenv("FOV_SIZE", "3.5")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-obs")
	t.Setenv("STAR_SEED", "42")
	t.Setenv("WORKERS", "3")
	t.Setenv("SCHEDULE_VERBOSE", "1")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, -30.5, cfg.Site.Latitude, 1e-9)
	assert.InDelta(t, 149.06, cfg.Site.Longitude, 1e-9)
	assert.Equal(t, time.Date(2004, 3, 11, 0, 0, 0, 0, cfg.Location), cfg.End)
	assert.InDelta(t, 25, cfg.WindThreshold, 0)
	assert.InDelta(t, 3.5, cfg.FOV, 0)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-obs", cfg.KafkaTopic)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.ScheduleVerbose)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
site:
  latitude: 19.82
  longitude: -155.47
start_date: "2005-07-01"
time_zone: UTC
field_center:
  ra: 10.5
  dec: -5
fov: 2
weather_file: weather.json
weather_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("FOV_SIZE", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 19.82, cfg.Site.Latitude, 1e-9)
	assert.Equal(t, time.Date(2005, 7, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.InDelta(t, 10.5, cfg.FieldCenter.RA, 0)
	assert.InDelta(t, 2.5, cfg.FOV, 0)
	assert.Equal(t, "weather.json", cfg.WeatherFile)
	assert.Equal(t, 5*time.Second, cfg.WeatherTimeout)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 80, cfg.MaxCloudCoverage, 0)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"OBS_LATITUDE", "north", "OBS_LATITUDE"},
		{"OBS_LATITUDE", "95", "OBS_LATITUDE"},
		{"OBS_LONGITUDE", "-200", "OBS_LONGITUDE"},
		{"FOV_SIZE", "0", "FOV_SIZE"},
		{"MAX_CLOUD_COVERAGE", "120", "MAX_CLOUD_COVERAGE"},
		{"CLOUD_SIZE", "-1", "CLOUD_SIZE"},
		{"SIM_START_DATE", "01/16/2003", "SIM_START_DATE"},
		{"SIM_END_DATE", "2002-12-31", "SIM_END_DATE"},
		{"SIM_TIMEZONE", "Mars/Olympus", "SIM_TIMEZONE"},
		{"WEATHER_TIMEOUT", "soon", "WEATHER_TIMEOUT"},
		{"WORKERS", "0", "WORKERS"},
		{"STAR_SEED", "abc", "STAR_SEED"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_KafkaEnabledWithoutTopic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka_enabled: true\nkafka_topic: \"\"\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_TOPIC")
}
