package openmeteo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// LoadFile reads a weather record saved by SaveFile. A raw archive API
// response is accepted too, with its hourly timestamps read in loc.
func LoadFile(path string, loc *time.Location) (*domain.WeatherRecord, error) {
	if loc == nil {
		loc = time.UTC
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weather file: %w", err)
	}

	var probe struct {
		Hourly *hourly `json:"hourly"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode weather file %s: %w", path, err)
	}
	if probe.Hourly != nil {
		return probe.Hourly.record(loc)
	}

	var rec domain.WeatherRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode weather file %s: %w", path, err)
	}
	if rec.Origin.IsZero() || len(rec.Hours) == 0 {
		return nil, fmt.Errorf("weather file %s: empty record: %w", path, domain.ErrMissingWeatherHour)
	}
	return &rec, nil
}

// SaveFile writes rec as JSON so later runs can skip the API.
func SaveFile(path string, rec *domain.WeatherRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create weather dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode weather record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write weather file: %w", err)
	}
	return nil
}
