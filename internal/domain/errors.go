package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrGeometry means the visibility oracle could not resolve an elevation
	// or a sunrise/sunset for the requested instant (e.g. polar day or night).
	ErrGeometry = errors.New("geometry unresolved")

	// ErrInsufficientSamples marks a calendar day with fewer than two raw
	// samples. The scheduler skips such nights; it is never surfaced.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrMissingWeatherHour means an hour index falls outside the weather record.
	ErrMissingWeatherHour = errors.New("weather hour missing")

	// ErrInconsistentCache means an hour was looked up in a frozen adjustment
	// cache that never had it populated.
	ErrInconsistentCache = errors.New("adjustment cache missing hour")
)

// StarError reports a fatal failure while processing one star.
type StarError struct {
	Star      string
	Stage     string
	Time      time.Time
	HourIndex int // -1 when not applicable
	Err       error
}

func (e *StarError) Error() string {
	msg := fmt.Sprintf("star %s: %s", e.Star, e.Stage)
	if !e.Time.IsZero() {
		msg += " at " + e.Time.UTC().Format(time.RFC3339)
	}
	if e.HourIndex >= 0 {
		msg += fmt.Sprintf(" (hour %d)", e.HourIndex)
	}
	return msg + ": " + e.Err.Error()
}

func (e *StarError) Unwrap() error { return e.Err }

// StageError records where a stage failed. The pipeline attaches the star
// identity later through NewStarError.
func StageError(stage string, at time.Time, hourIndex int, err error) error {
	if err == nil {
		return nil
	}
	return &StarError{Stage: stage, Time: at, HourIndex: hourIndex, Err: err}
}

// NewStarError wraps err with the star's identity. A nil err yields nil. An
// err that already carries a StarError keeps its stage and instant and only
// gains the star name.
func NewStarError(star *Star, stage string, at time.Time, hourIndex int, err error) error {
	if err == nil {
		return nil
	}
	name := ""
	if star != nil {
		name = star.Name
	}
	var se *StarError
	if errors.As(err, &se) {
		if se.Star == "" {
			se.Star = name
		}
		return err
	}
	return &StarError{Star: name, Stage: stage, Time: at, HourIndex: hourIndex, Err: err}
}
