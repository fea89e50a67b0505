// Command genmock writes synthetic inputs for a demo or test run: one
// Cepheid-like light curve CSV per star and an hourly weather file in the
// format openmeteo.LoadFile reads.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -stars-dir data/mock/stars \
//	  -weather-out data/mock/weather.json \
//	  -stars 12 -days 30 -start 2003-01-16 -tz America/Chicago
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/adapter/openmeteo"
	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// sampleStep is the model output cadence in days.
const sampleStep = 0.01

type curveParams struct {
	name      string
	period    float64 // days
	amplitude float64 // fractional
	meanLum   float64 // model units, scaled by LUMINOSITY_SCALE at load
	phase     float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	starsDir := flag.String("stars-dir", "", "output directory for light curve CSV files")
	weatherOut := flag.String("weather-out", "", "output path for the weather JSON file")
	count := flag.Int("stars", 10, "number of stars")
	days := flag.Int("days", 30, "simulated span in days")
	startDate := flag.String("start", "2003-01-16", "first simulated date (YYYY-MM-DD)")
	tz := flag.String("tz", "America/Chicago", "IANA time zone of the start date")
	seed := flag.Uint64("seed", 1, "random seed")
	gaps := flag.Float64("gaps", 0.01, "fraction of model rows written with a missing luminosity")
	flag.Parse()

	if *starsDir == "" || *weatherOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -stars-dir, -weather-out")
	}
	if *count < 1 || *days < 1 {
		return fmt.Errorf("-stars and -days must be positive")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}
	start, err := time.ParseInLocation(time.DateOnly, *startDate, loc)
	if err != nil {
		return fmt.Errorf("parse start date: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed+1))

	if err := os.MkdirAll(*starsDir, 0o755); err != nil {
		return fmt.Errorf("create stars dir: %w", err)
	}
	curves := make([]curveParams, *count)
	for i := range curves {
		curves[i] = curveParams{
			name:      fmt.Sprintf("ceph-%03d", i+1),
			period:    3 + rng.Float64()*27,
			amplitude: 0.1 + rng.Float64()*0.4,
			meanLum:   math.Pow(10, 3+rng.Float64()),
			phase:     rng.Float64(),
		}
		path := filepath.Join(*starsDir, curves[i].name+".csv")
		rows, err := writeCurve(path, curves[i], *days, *gaps, rng)
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("%s: period=%.2fd amplitude=%.2f rows=%d", curves[i].name, curves[i].period, curves[i].amplitude, rows)
	}

	rec := mockWeather(start, loc, *days, rng)
	if err := openmeteo.SaveFile(*weatherOut, rec); err != nil {
		return err
	}
	log.Printf("wrote weather: %s (%d hours)", *weatherOut, len(rec.Hours))

	printStats(curves, rec)
	return nil
}

// writeCurve samples a sawtooth-like Cepheid light curve: a fast rise over
// the first 30% of the cycle followed by a slow decline.
func writeCurve(path string, p curveParams, days int, gaps float64, rng *rand.Rand) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"star_age_day", "luminosity"}); err != nil {
		return 0, err
	}

	n := int(float64(days) / sampleStep)
	for i := 0; i < n; i++ {
		t := float64(i) * sampleStep
		lum := ""
		if rng.Float64() >= gaps {
			lum = strconv.FormatFloat(luminosity(p, t), 'g', 10, 64)
		}
		if err := w.Write([]string{strconv.FormatFloat(t, 'f', 4, 64), lum}); err != nil {
			return 0, err
		}
	}
	w.Flush()
	return n, w.Error()
}

func luminosity(p curveParams, t float64) float64 {
	_, phase := math.Modf(t/p.period + p.phase)
	var shape float64
	if phase < 0.3 {
		shape = phase / 0.3
	} else {
		shape = 1 - (phase-0.3)/0.7
	}
	return p.meanLum * (1 + p.amplitude*(shape-0.5))
}

// mockWeather produces mostly clear nights with occasional fronts that bring
// cloud, wind and rain for a few hours at a time.
func mockWeather(start time.Time, loc *time.Location, days int, rng *rand.Rand) *domain.WeatherRecord {
	origin := domain.HourOrigin(start, loc)
	hours := make([]domain.WeatherHour, (days+1)*24)
	front := 0
	for i := range hours {
		if front == 0 && rng.Float64() < 0.02 {
			front = 6 + rng.IntN(18)
		}
		h := domain.WeatherHour{WindSpeed: 5 + rng.Float64()*20}
		switch {
		case front > 0:
			front--
			h.CloudCover = float64(60 + rng.IntN(41))
			h.WindSpeed += rng.Float64() * 30
			h.WeatherCode = 3
			if rng.Float64() < 0.3 {
				h.WeatherCode = 61
				h.Precipitation = 0.2 + rng.Float64()*3
			}
		case rng.Float64() < 0.25:
			h.CloudCover = float64(10 + rng.IntN(50))
			h.WeatherCode = 1 + rng.IntN(2)
		}
		hours[i] = h
	}
	return &domain.WeatherRecord{Origin: origin, Hours: hours}
}

func printStats(curves []curveParams, rec *domain.WeatherRecord) {
	var clear, heavy, rainy, windy int
	for _, h := range rec.Hours {
		switch {
		case h.WeatherCode == domain.ClearSkyCode:
			clear++
		case domain.IsHeavyCloudCode(h.WeatherCode):
			heavy++
		}
		if h.Precipitation > 0 {
			rainy++
		}
		if h.WindSpeed >= 40 {
			windy++
		}
	}

	fmt.Println("\n=== Mock data summary ===")
	fmt.Printf("Stars: %d\n", len(curves))
	minP, maxP := math.Inf(1), math.Inf(-1)
	for _, c := range curves {
		minP = min(minP, c.period)
		maxP = max(maxP, c.period)
	}
	fmt.Printf("Periods: %.2f - %.2f days\n", minP, maxP)
	fmt.Printf("Weather hours: %d (clear=%d heavy=%d rain=%d wind>=40=%d)\n",
		len(rec.Hours), clear, heavy, rainy, windy)
	fmt.Printf("Origin: %s\n", rec.Origin.Format(time.RFC3339))
}
