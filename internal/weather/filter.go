// Package weather drops observations taken in wind or precipitation the
// telescope would not open in.
package weather

import (
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// Threshold removes samples whose rounded hour has a reading at or above
// Limit. The limit is inclusive: a reading equal to Limit is dropped.
type Threshold struct {
	Stage string
	Limit float64
	value func(domain.WeatherHour) float64
}

// Precipitation filters on hourly precipitation in millimetres.
func Precipitation(limit float64) Threshold {
	return Threshold{
		Stage: "precipitation",
		Limit: limit,
		value: func(h domain.WeatherHour) float64 { return h.Precipitation },
	}
}

// Wind filters on hourly 10 m wind speed in km/h.
func Wind(limit float64) Threshold {
	return Threshold{
		Stage: "wind",
		Limit: limit,
		value: func(h domain.WeatherHour) float64 { return h.WindSpeed },
	}
}

// Apply returns the samples that pass the threshold. A sample whose hour is
// outside rec aborts the star with ErrMissingWeatherHour.
func (f Threshold) Apply(series domain.Series, start time.Time, rec *domain.WeatherRecord) (domain.Series, error) {
	out := make(domain.Series, 0, len(series))
	for _, s := range series {
		at := domain.OffsetToTime(start, s.DayOffset)
		idx, hour, err := rec.At(at)
		if err != nil {
			return nil, domain.StageError(f.Stage, at, idx, err)
		}
		if f.value(hour) >= f.Limit {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
