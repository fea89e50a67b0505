package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Observation is one output row: a scheduled, sky-filtered sample of a star.
type Observation struct {
	RunID       string    `json:"run_id"`
	Star        string    `json:"star"`
	RA          float64   `json:"ra"`
	Dec         float64   `json:"dec"`
	DayOffset   float64   `json:"star_age_day"`
	Time        time.Time `json:"time"`
	Luminosity  float64   `json:"luminosity"`
	Elevation   *float64  `json:"elevation,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// StarResult is the outcome of the pipeline for one star.
type StarResult struct {
	Star *Star
	Err  error
}

// Observations flattens a star's scheduled series into output rows.
func Observations(runID string, start time.Time, star *Star) []Observation {
	now := Now()
	out := make([]Observation, 0, len(star.Scheduled))
	for _, s := range star.Scheduled {
		var elev *float64
		if s.HasElev {
			e := s.Elevation
			elev = &e
		}
		out = append(out, Observation{
			RunID:       runID,
			Star:        star.Name,
			RA:          star.Position.RA,
			Dec:         star.Position.Dec,
			DayOffset:   s.DayOffset,
			Time:        OffsetToTime(start, s.DayOffset).UTC(),
			Luminosity:  s.Luminosity,
			Elevation:   elev,
			ProcessedAt: now,
		})
	}
	return out
}

// MarshalObservation serializes an observation for a message sink.
func MarshalObservation(o Observation) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("serialize observation: %w", err)
	}
	return data, nil
}
