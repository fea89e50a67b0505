package domain

import (
	"math"
	"time"
)

// SkyPosition is an equatorial position in degrees.
type SkyPosition struct {
	RA  float64 `json:"ra" yaml:"ra"`
	Dec float64 `json:"dec" yaml:"dec"`
}

// Site is the observing location.
type Site struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`   // degrees, north positive
	Longitude float64 `json:"longitude" yaml:"longitude"` // degrees, east positive
	Elevation float64 `json:"elevation" yaml:"elevation"` // meters
}

// Sample is one point of a light curve.
type Sample struct {
	DayOffset  float64 `json:"star_age_day"`
	Luminosity float64 `json:"luminosity"`

	// Elevation is the target elevation in degrees when a stage computed it.
	Elevation float64 `json:"elevation,omitempty"`
	HasElev   bool    `json:"-"`
}

// Series is an ordered light curve.
type Series []Sample

// Star is one simulated target. It is owned by a single pipeline stage at a
// time and is never shared between goroutines.
type Star struct {
	Name     string
	Position SkyPosition

	// Raw is the theoretical model output still being filtered.
	Raw Series
	// Scheduled is the sparse set of instants the telescope would observe.
	Scheduled Series
	// Original is the untouched model output, kept for audit.
	Original Series
}

// NewStar creates a star and snapshots its raw series as the original.
func NewStar(name string, pos SkyPosition, raw Series) *Star {
	return &Star{
		Name:     name,
		Position: pos,
		Raw:      raw,
		Original: raw.Clone(),
	}
}

// Clone returns a copy of the series that shares no backing array.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Filter returns a new series with the samples for which keep returns true.
// The receiver is not modified.
func (s Series) Filter(keep func(Sample) bool) Series {
	out := make(Series, 0, len(s))
	for _, sample := range s {
		if keep(sample) {
			out = append(out, sample)
		}
	}
	return out
}

// LastOffset returns the day offset of the final sample, or 0 for an empty series.
func (s Series) LastOffset() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].DayOffset
}

// OffsetToTime converts a day offset to an absolute instant.
func OffsetToTime(start time.Time, dayOffset float64) time.Time {
	return start.Add(time.Duration(math.Round(dayOffset * float64(24*time.Hour))))
}

// TimeToOffset converts an absolute instant to a day offset from start.
func TimeToOffset(start, t time.Time) float64 {
	return t.Sub(start).Seconds() / 86400
}

// NightWindow is the interval between one evening's sunset and the following
// sunrise at the site.
type NightWindow struct {
	Sunset  time.Time
	Sunrise time.Time
}

// LightCurve is a named raw model series before it is placed on the sky.
type LightCurve struct {
	Name    string
	Samples Series
}
