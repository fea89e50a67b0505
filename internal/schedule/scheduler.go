package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
	"github.com/couchcryptid/rotse-sim/internal/observability"
)

const (
	// CoarseStep is the resolution of the per-night maximum elevation search.
	CoarseStep = 5 * time.Minute

	// MinCandidateElevation is the altitude in degrees a candidate must exceed.
	MinCandidateElevation = 10.0
)

// CandidateOffsets are the minute offsets from the night's peak elevation at
// which exposures are taken: four bracketing the peak and four about three
// hours later.
var CandidateOffsets = [...]int{-2, -1, 1, 2, 178, 179, 181, 182}

// Request describes one star's scheduling inputs.
type Request struct {
	Star     string
	Site     domain.Site
	Target   domain.SkyPosition
	Start    time.Time
	End      time.Time // candidates at or after End are discarded; zero disables
	Location *time.Location
	Verbose  bool
}

// Scheduler picks nightly observation instants for a target.
type Scheduler struct {
	oracle  Oracle
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewScheduler creates a Scheduler backed by oracle.
func NewScheduler(oracle Oracle, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{oracle: oracle, logger: logger, metrics: metrics}
}

// Schedule walks every calendar date in req.Location from the first raw
// sample's date to the last one's and returns the interpolated samples at
// the candidate instants that are at night with the target high enough.
// Dates with fewer than two samples produce nothing. The output is ordered
// by day offset. raw is not modified.
func (s *Scheduler) Schedule(raw domain.Series, req Request) (domain.Series, error) {
	if len(raw) == 0 {
		return domain.Series{}, nil
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	if !slices.IsSortedFunc(raw, byOffset) {
		raw = raw.Clone()
		slices.SortStableFunc(raw, byOffset)
	}

	first := localDate(domain.OffsetToTime(req.Start, raw[0].DayOffset), loc)
	last := localDate(domain.OffsetToTime(req.Start, raw.LastOffset()), loc)

	out := domain.Series{}
	i := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		j := i
		for j < len(raw) && domain.OffsetToTime(req.Start, raw[j].DayOffset).Before(next) {
			j++
		}
		daySamples := raw[i:j]
		i = j

		scheduled, err := s.scheduleNight(day, daySamples, req)
		if errors.Is(err, domain.ErrInsufficientSamples) {
			s.metrics.NightsSkipped.Inc()
			s.logger.Debug("night skipped", "star", req.Star, "date", day.Format(time.DateOnly), "samples", len(daySamples))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("schedule night %s: %w", day.Format(time.DateOnly), err)
		}
		s.metrics.NightsScheduled.Inc()
		out = append(out, scheduled...)
	}
	s.metrics.SamplesScheduled.Add(float64(len(out)))
	return out, nil
}

func (s *Scheduler) scheduleNight(day time.Time, samples domain.Series, req Request) (domain.Series, error) {
	if len(samples) < 2 {
		return nil, domain.ErrInsufficientSamples
	}

	anchor := solarMidnight(day, req.Site.Longitude)
	window, err := s.oracle.NightWindow(req.Site, anchor)
	if err != nil {
		return nil, domain.StageError("schedule", anchor, -1, err)
	}

	peak, peakElev, err := s.peakElevation(window, req)
	if err != nil {
		return nil, err
	}

	interp, err := LinearFromSeries(samples)
	if err != nil {
		return nil, err
	}

	out := make(domain.Series, 0, len(CandidateOffsets))
	for _, minutes := range CandidateOffsets {
		at := peak.Add(time.Duration(minutes) * time.Minute)
		offset := domain.TimeToOffset(req.Start, at)
		if offset < 0 || (!req.End.IsZero() && !at.Before(req.End)) {
			continue
		}

		night, err := s.oracle.IsNight(req.Site, at)
		if err != nil {
			return nil, domain.StageError("schedule", at, -1, err)
		}
		if !night {
			continue
		}
		elev, err := s.oracle.Elevation(req.Site, at, req.Target)
		if err != nil {
			return nil, domain.StageError("schedule", at, -1, err)
		}
		if elev <= MinCandidateElevation {
			continue
		}

		out = append(out, domain.Sample{
			DayOffset:  offset,
			Luminosity: interp.At(offset),
			Elevation:  elev,
			HasElev:    true,
		})
	}

	if req.Verbose {
		s.logger.Debug("night scheduled",
			"star", req.Star,
			"date", day.Format(time.DateOnly),
			"sunset", window.Sunset,
			"sunrise", window.Sunrise,
			"peak", peak,
			"peak_elevation", peakElev,
			"raw_samples", len(samples),
			"scheduled", len(out),
		)
	}
	return out, nil
}

// peakElevation steps through the window at CoarseStep and returns the
// earliest instant of greatest elevation.
func (s *Scheduler) peakElevation(w domain.NightWindow, req Request) (time.Time, float64, error) {
	var (
		best   float64
		bestAt time.Time
		found  bool
	)
	for t := w.Sunset; !t.After(w.Sunrise); t = t.Add(CoarseStep) {
		elev, err := s.oracle.Elevation(req.Site, t, req.Target)
		if err != nil {
			return time.Time{}, 0, domain.StageError("schedule", t, -1, err)
		}
		if !found || elev > best {
			best, bestAt, found = elev, t, true
		}
	}
	if !found {
		return time.Time{}, 0, domain.StageError("schedule", w.Sunset, -1,
			fmt.Errorf("empty night window ending %s: %w", w.Sunrise.UTC().Format(time.RFC3339), domain.ErrGeometry))
	}
	return bestAt, best, nil
}

// solarMidnight returns local mean solar midnight at the start of day for an
// east-positive longitude.
func solarMidnight(day time.Time, lonDeg float64) time.Time {
	utcMidnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return utcMidnight.Add(-time.Duration(lonDeg / 15 * float64(time.Hour)))
}

func localDate(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

func byOffset(a, b domain.Sample) int {
	switch {
	case a.DayOffset < b.DayOffset:
		return -1
	case a.DayOffset > b.DayOffset:
		return 1
	default:
		return 0
	}
}
