package domain

import (
	"fmt"
	"time"
)

// ClearSkyCode is the weather code for a cloudless sky.
const ClearSkyCode = 0

// heavyCloudCodes lists the codes below 52 that always block observing.
var heavyCloudCodes = map[int]struct{}{
	4: {}, 8: {}, 9: {}, 12: {}, 16: {}, 17: {},
	25: {}, 26: {}, 27: {}, 28: {}, 29: {},
	33: {}, 34: {}, 35: {}, 37: {}, 39: {},
	43: {}, 45: {}, 47: {}, 49: {},
}

// IsHeavyCloudCode reports whether code always blocks observing.
func IsHeavyCloudCode(code int) bool {
	if code >= 52 && code != 71 {
		return true
	}
	_, ok := heavyCloudCodes[code]
	return ok
}

// WeatherHour is one row of the hourly weather record.
type WeatherHour struct {
	Precipitation float64 `json:"precipitation"` // mm
	WindSpeed     float64 `json:"windspeed"`     // km/h at 10 m
	CloudCover    float64 `json:"cloudcover"`    // percent, 0-100
	WeatherCode   int     `json:"weathercode"`
}

// WeatherRecord is the hourly weather at the site over the simulation span.
// Hours[0] is the hour starting at Origin.
type WeatherRecord struct {
	Origin time.Time     `json:"origin"`
	Hours  []WeatherHour `json:"hours"`
}

// HourIndex returns the whole hours between origin and t rounded to the
// nearest hour on origin's hour grid. Durations are taken between absolute
// instants so zone offsets and DST never shift the result.
func HourIndex(origin, t time.Time) int {
	d := t.Sub(origin) + 30*time.Minute
	h := d / time.Hour
	if d < 0 && d%time.Hour != 0 {
		h--
	}
	return int(h)
}

// HourOrigin returns 00:00 of start's calendar date in loc, the instant the
// hourly weather series begins.
func HourOrigin(start time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := start.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// IndexOf returns the hour index of t in this record.
func (w *WeatherRecord) IndexOf(t time.Time) int {
	return HourIndex(w.Origin, t)
}

// Hour returns the weather for hour index i.
func (w *WeatherRecord) Hour(i int) (WeatherHour, error) {
	if w == nil || i < 0 || i >= len(w.Hours) {
		n := 0
		if w != nil {
			n = len(w.Hours)
		}
		return WeatherHour{}, fmt.Errorf("hour %d of %d: %w", i, n, ErrMissingWeatherHour)
	}
	return w.Hours[i], nil
}

// At returns the hour index and weather for instant t.
func (w *WeatherRecord) At(t time.Time) (int, WeatherHour, error) {
	i := w.IndexOf(t)
	h, err := w.Hour(i)
	return i, h, err
}

// End returns the instant just past the last covered hour.
func (w *WeatherRecord) End() time.Time {
	return w.Origin.Add(time.Duration(len(w.Hours)) * time.Hour)
}
