// Command validate checks the integrity of a simulation's output: the
// observation CSV against the input light curves, and optionally against the
// weather file and the SQLite store written by the same run.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -observations observations.csv \
//	  -stars-dir data/mock/stars \
//	  -weather data/mock/weather.json \
//	  -sqlite data/out/rotse.db
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/adapter/csvio"
	"github.com/couchcryptid/rotse-sim/internal/adapter/openmeteo"
	"github.com/couchcryptid/rotse-sim/internal/adapter/sqlite"
	"github.com/couchcryptid/rotse-sim/internal/domain"
	"github.com/couchcryptid/rotse-sim/internal/schedule"
)

// epochTolerance absorbs the CSV's rounding of times to whole seconds.
const epochTolerance = time.Second

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	observations string
	starsDir     string
	weather      string
	sqlite       string
	tz           string
	precip       float64
	wind         float64
	maxCloud     float64
}

func main() {
	var o options
	flag.StringVar(&o.observations, "observations", "", "path to the observation CSV")
	flag.StringVar(&o.starsDir, "stars-dir", "", "directory of input light curve CSV files")
	flag.StringVar(&o.weather, "weather", "", "optional weather JSON used by the run")
	flag.StringVar(&o.sqlite, "sqlite", "", "optional SQLite database written by the run")
	flag.StringVar(&o.tz, "tz", "UTC", "time zone the weather file was fetched in")
	flag.Float64Var(&o.precip, "precip", 0.1, "precipitation threshold used by the run (mm)")
	flag.Float64Var(&o.wind, "wind", 40, "wind threshold used by the run (km/h)")
	flag.Float64Var(&o.maxCloud, "max-cloud", 80, "maximum cloud coverage used by the run (percent)")
	flag.Parse()

	if o.observations == "" || o.starsDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(o); code != 0 {
		os.Exit(code)
	}
}

func run(o options) int {
	fmt.Println("=== Observation Integrity Validation ===")
	fmt.Println()

	obs, err := loadObservations(o.observations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load observations: %v\n", err)
		return 1
	}

	curves, err := csvio.LoadLightCurves(o.starsDir, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load light curves: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRows(obs),
		validateStars(obs, curves),
		validateOrdering(obs),
		validateEpoch(obs),
	}

	if o.weather != "" {
		loc, err := time.LoadLocation(o.tz)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load time zone: %v\n", err)
			return 1
		}
		rec, err := openmeteo.LoadFile(o.weather, loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load weather: %v\n", err)
			return 1
		}
		phases = append(phases, validateWeather(obs, rec, o))
	}

	if o.sqlite != "" {
		store, err := sqlite.NewStore(o.sqlite)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: open sqlite: %v\n", err)
			return 1
		}
		defer store.Close()
		phases = append(phases, validateSQLite(obs, store))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d observations, %d input stars\n", len(obs), len(curves))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadObservations(path string) ([]domain.Observation, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvio.ReadObservations(f)
}

// ── Validation phases ──

// validateRows checks per-row value ranges.
func validateRows(obs []domain.Observation) *phase {
	p := &phase{name: "Row values"}
	runs := map[string]int{}
	for i, o := range obs {
		runs[o.RunID]++
		if o.Luminosity < 0 || math.IsNaN(o.Luminosity) {
			p.errorf("row %d (%s): luminosity %g", i+1, o.Star, o.Luminosity)
		}
		if o.DayOffset < 0 {
			p.errorf("row %d (%s): negative day offset %g", i+1, o.Star, o.DayOffset)
		}
		if o.Elevation == nil {
			p.errorf("row %d (%s): missing elevation", i+1, o.Star)
		} else if *o.Elevation <= schedule.MinCandidateElevation {
			p.errorf("row %d (%s): elevation %.2f not above %.0f", i+1, o.Star, *o.Elevation, schedule.MinCandidateElevation)
		}
	}
	if len(runs) > 1 {
		p.errorf("file mixes %d run IDs", len(runs))
	}
	return p
}

// validateStars checks that every observed star was an input and stays
// within the span of its light curve.
func validateStars(obs []domain.Observation, curves []domain.LightCurve) *phase {
	p := &phase{name: "Known stars"}
	last := make(map[string]float64, len(curves))
	for _, c := range curves {
		last[c.Name] = c.Samples.LastOffset()
	}
	positions := map[string]domain.SkyPosition{}
	for i, o := range obs {
		end, ok := last[o.Star]
		if !ok {
			p.errorf("row %d: unknown star %q", i+1, o.Star)
			continue
		}
		// The scheduler may extrapolate up to one night past the last sample.
		if o.DayOffset > math.Ceil(end)+1 {
			p.errorf("row %d (%s): offset %.4f beyond curve end %.4f", i+1, o.Star, o.DayOffset, end)
		}
		pos, seen := positions[o.Star]
		if !seen {
			positions[o.Star] = domain.SkyPosition{RA: o.RA, Dec: o.Dec}
		} else if pos.RA != o.RA || pos.Dec != o.Dec {
			p.errorf("row %d (%s): position changed", i+1, o.Star)
		}
	}
	return p
}

// validateOrdering checks that each star's rows are chronological.
func validateOrdering(obs []domain.Observation) *phase {
	p := &phase{name: "Chronological order per star"}
	prev := map[string]float64{}
	for i, o := range obs {
		if last, ok := prev[o.Star]; ok && o.DayOffset < last {
			p.errorf("row %d (%s): offset %.6f after %.6f", i+1, o.Star, o.DayOffset, last)
		}
		prev[o.Star] = o.DayOffset
	}
	return p
}

// validateEpoch checks that time minus day offset is the same instant on
// every row: the run start.
func validateEpoch(obs []domain.Observation) *phase {
	p := &phase{name: "Consistent simulation start"}
	if len(obs) == 0 {
		return p
	}
	epoch := func(o domain.Observation) time.Time {
		return o.Time.Add(-time.Duration(o.DayOffset * float64(24*time.Hour)))
	}
	want := epoch(obs[0])
	for i, o := range obs[1:] {
		if d := epoch(o).Sub(want); d > epochTolerance || d < -epochTolerance {
			p.errorf("row %d (%s): start %s, want %s", i+2, o.Star, epoch(o).Format(time.RFC3339), want.Format(time.RFC3339))
		}
	}
	return p
}

// validateWeather checks that no row falls in an hour the run should have
// rejected outright.
func validateWeather(obs []domain.Observation, rec *domain.WeatherRecord, o options) *phase {
	p := &phase{name: "Weather thresholds"}
	for i, ob := range obs {
		idx, h, err := rec.At(ob.Time)
		if err != nil {
			p.errorf("row %d (%s): %v", i+1, ob.Star, err)
			continue
		}
		switch {
		case h.Precipitation >= o.precip:
			p.errorf("row %d (%s): hour %d precipitation %.2f", i+1, ob.Star, idx, h.Precipitation)
		case h.WindSpeed >= o.wind:
			p.errorf("row %d (%s): hour %d wind %.1f", i+1, ob.Star, idx, h.WindSpeed)
		case domain.IsHeavyCloudCode(h.WeatherCode) || h.CloudCover > o.maxCloud:
			p.errorf("row %d (%s): hour %d code %d cover %.0f", i+1, ob.Star, idx, h.WeatherCode, h.CloudCover)
		}
	}
	return p
}

// validateSQLite checks that the database holds the same rows as the CSV.
func validateSQLite(obs []domain.Observation, store *sqlite.Store) *phase {
	p := &phase{name: "SQLite parity"}
	if len(obs) == 0 {
		return p
	}
	stored, err := store.Observations(context.Background(), obs[0].RunID)
	if err != nil {
		p.errorf("query run %s: %v", obs[0].RunID, err)
		return p
	}
	if len(stored) != len(obs) {
		p.errorf("sqlite has %d rows, csv has %d", len(stored), len(obs))
		return p
	}

	key := func(o domain.Observation) string { return fmt.Sprintf("%s|%.9f", o.Star, o.DayOffset) }
	csvKeys := make([]string, len(obs))
	for i, o := range obs {
		csvKeys[i] = key(o)
	}
	slices.Sort(csvKeys)
	for _, o := range stored {
		if _, found := slices.BinarySearch(csvKeys, key(o)); !found {
			p.errorf("sqlite row %s offset %.6f missing from csv", o.Star, o.DayOffset)
		}
	}
	return p
}
