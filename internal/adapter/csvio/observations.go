package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

var observationHeader = []string{"run_id", "star", "ra", "dec", "star_age_day", "time", "luminosity", "elevation"}

// Writer appends observation rows to a CSV file. It implements
// pipeline.ObservationLoader and is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	csv     *csv.Writer
	closer  io.Closer
	started bool
}

// Create opens path for writing, truncating any existing file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create observations csv: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// NewWriter writes CSV rows to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// LoadBatch writes one row per observation, preceded by the header on the
// first call.
func (w *Writer) LoadBatch(_ context.Context, obs []domain.Observation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		if err := w.csv.Write(observationHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		w.started = true
	}
	for i := range obs {
		if err := w.csv.Write(observationRecord(obs[i])); err != nil {
			return fmt.Errorf("write observation: %w", err)
		}
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes buffered rows and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		// An empty run still produces a readable table.
		if err := w.csv.Write(observationHeader); err != nil {
			return err
		}
		w.started = true
	}
	w.csv.Flush()
	err := w.csv.Error()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}
	return err
}

func observationRecord(o domain.Observation) []string {
	elev := ""
	if o.Elevation != nil {
		elev = strconv.FormatFloat(*o.Elevation, 'f', 4, 64)
	}
	return []string{
		o.RunID,
		o.Star,
		strconv.FormatFloat(o.RA, 'f', 6, 64),
		strconv.FormatFloat(o.Dec, 'f', 6, 64),
		strconv.FormatFloat(o.DayOffset, 'f', -1, 64),
		o.Time.UTC().Format(time.RFC3339),
		strconv.FormatFloat(o.Luminosity, 'g', -1, 64),
		elev,
	}
}

// ReadObservations parses a table written by Writer.
func ReadObservations(r io.Reader) ([]domain.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(observationHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range observationHeader {
		if header[i] != name {
			return nil, fmt.Errorf("column %d is %q, want %q", i, header[i], name)
		}
	}

	var out []domain.Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		o, err := parseObservation(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func parseObservation(rec []string) (domain.Observation, error) {
	o := domain.Observation{RunID: rec[0], Star: rec[1]}
	floats := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"ra", rec[2], &o.RA},
		{"dec", rec[3], &o.Dec},
		{"star_age_day", rec[4], &o.DayOffset},
		{"luminosity", rec[6], &o.Luminosity},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	t, err := time.Parse(time.RFC3339, rec[5])
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse time: %w", err)
	}
	o.Time = t
	if rec[7] != "" {
		e, err := strconv.ParseFloat(rec[7], 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("parse elevation: %w", err)
		}
		o.Elevation = &e
	}
	return o, nil
}
