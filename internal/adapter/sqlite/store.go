// Package sqlite persists observation rows and adjustment cache snapshots in
// a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	run_id       TEXT NOT NULL,
	star         TEXT NOT NULL,
	ra           REAL NOT NULL,
	dec          REAL NOT NULL,
	star_age_day REAL NOT NULL,
	observed_at  TEXT NOT NULL,
	luminosity   REAL NOT NULL,
	elevation    REAL,
	processed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS observations_run_star ON observations (run_id, star, star_age_day);
CREATE TABLE IF NOT EXISTS adjustments (
	run_id      TEXT NOT NULL,
	hour_index  INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	cloud_cover REAL NOT NULL,
	partial     INTEGER NOT NULL,
	clouds      BLOB,
	PRIMARY KEY (run_id, hour_index)
);`

// Store writes simulation output to SQLite. It implements
// pipeline.ObservationLoader.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// LoadBatch inserts the observations in one transaction.
func (s *Store) LoadBatch(ctx context.Context, obs []domain.Observation) (retErr error) {
	if len(obs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations
		(run_id, star, ra, dec, star_age_day, observed_at, luminosity, elevation, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range obs {
		o := obs[i]
		var elev sql.NullFloat64
		if o.Elevation != nil {
			elev = sql.NullFloat64{Float64: *o.Elevation, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, o.RunID, o.Star, o.RA, o.Dec, o.DayOffset,
			o.Time.UTC().Format(time.RFC3339Nano), o.Luminosity, elev,
			o.ProcessedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveAdjustments records every entry of a frozen cache under runID.
func (s *Store) SaveAdjustments(ctx context.Context, runID string, cache domain.AdjustmentTable) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, idx := range cache.Hours() {
		adj, err := cache.Lookup(idx)
		if err != nil {
			return err
		}
		var clouds []byte
		if adj.Kind == domain.AdjustCloudSet {
			if clouds, err = json.Marshal(adj.Clouds); err != nil {
				return fmt.Errorf("encode clouds: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO adjustments
			(run_id, hour_index, kind, cloud_cover, partial, clouds) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, idx, adj.Kind.String(), adj.CloudCover, adj.Partial, clouds); err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Observations returns a run's rows ordered by star and day offset.
func (s *Store) Observations(ctx context.Context, runID string) ([]domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, star, ra, dec, star_age_day, observed_at,
		luminosity, elevation, processed_at FROM observations WHERE run_id = ? ORDER BY star, star_age_day`, runID)
	if err != nil {
		return nil, fmt.Errorf("select observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Observation
	for rows.Next() {
		var (
			o                 domain.Observation
			observed, handled string
			elev              sql.NullFloat64
		)
		if err := rows.Scan(&o.RunID, &o.Star, &o.RA, &o.Dec, &o.DayOffset, &observed,
			&o.Luminosity, &elev, &handled); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if o.Time, err = time.Parse(time.RFC3339Nano, observed); err != nil {
			return nil, fmt.Errorf("parse observed_at: %w", err)
		}
		if o.ProcessedAt, err = time.Parse(time.RFC3339Nano, handled); err != nil {
			return nil, fmt.Errorf("parse processed_at: %w", err)
		}
		if elev.Valid {
			e := elev.Float64
			o.Elevation = &e
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Adjustments returns a run's cache entries keyed by hour index.
func (s *Store) Adjustments(ctx context.Context, runID string) (map[int]domain.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hour_index, kind, cloud_cover, partial, clouds
		FROM adjustments WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("select adjustments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int]domain.Adjustment)
	for rows.Next() {
		var (
			idx    int
			kind   string
			adj    domain.Adjustment
			clouds []byte
		)
		if err := rows.Scan(&idx, &kind, &adj.CloudCover, &adj.Partial, &clouds); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		switch kind {
		case domain.AdjustDrop.String():
			adj.Kind = domain.AdjustDrop
		case domain.AdjustClear.String():
			adj.Kind = domain.AdjustClear
		case domain.AdjustCloudSet.String():
			adj.Kind = domain.AdjustCloudSet
			if err := json.Unmarshal(clouds, &adj.Clouds); err != nil {
				return nil, fmt.Errorf("decode clouds for hour %d: %w", idx, err)
			}
		default:
			return nil, fmt.Errorf("hour %d: unknown adjustment kind %q", idx, kind)
		}
		out[idx] = adj
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
