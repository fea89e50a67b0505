// Package csvio reads model light curves and writes observation tables as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

const (
	colOffset     = "star_age_day"
	colLuminosity = "luminosity"
)

// ReadLightCurve parses a CSV with star_age_day and luminosity columns.
// Luminosity is multiplied by scale. Rows with an empty or NaN value in
// either column are skipped.
func ReadLightCurve(r io.Reader, scale float64) (domain.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	offCol, lumCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case colOffset:
			offCol = i
		case colLuminosity:
			lumCol = i
		}
	}
	if offCol < 0 || lumCol < 0 {
		return nil, fmt.Errorf("header %v: need %s and %s columns", header, colOffset, colLuminosity)
	}

	var series domain.Series
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		off, okOff, err := parseField(rec, offCol)
		if err != nil {
			return nil, fmt.Errorf("line %d %s: %w", line, colOffset, err)
		}
		lum, okLum, err := parseField(rec, lumCol)
		if err != nil {
			return nil, fmt.Errorf("line %d %s: %w", line, colLuminosity, err)
		}
		if !okOff || !okLum {
			continue
		}
		series = append(series, domain.Sample{DayOffset: off, Luminosity: lum * scale})
	}
	return series, nil
}

// parseField reports false for a missing, empty or NaN value.
func parseField(rec []string, col int) (float64, bool, error) {
	if col >= len(rec) {
		return 0, false, nil
	}
	v := strings.TrimSpace(rec[col])
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	return f, true, nil
}

// LoadLightCurves reads every *.csv file in dir in name order. Each curve is
// named after its file without the extension.
func LoadLightCurves(dir string, scale float64) ([]domain.LightCurve, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list light curves: %w", err)
	}
	slices.Sort(paths)

	curves := make([]domain.LightCurve, 0, len(paths))
	for _, path := range paths {
		series, err := readFile(path, scale)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		curves = append(curves, domain.LightCurve{Name: name, Samples: series})
	}
	if len(curves) == 0 {
		return nil, fmt.Errorf("no light curves in %s", dir)
	}
	return curves, nil
}

func readFile(path string, scale float64) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open light curve: %w", err)
	}
	defer f.Close()

	series, err := ReadLightCurve(f, scale)
	if err != nil {
		return nil, fmt.Errorf("light curve %s: %w", filepath.Base(path), err)
	}
	return series, nil
}
