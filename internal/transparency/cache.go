package transparency

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// ErrFrozen is returned when a builder is written to after Freeze.
var ErrFrozen = errors.New("adjustment cache frozen")

// Builder accumulates adjustment entries for one field of view. It has a
// single writer and every hour is decided at most once.
type Builder struct {
	model   *Model
	weather *domain.WeatherRecord
	fov     domain.Rect
	maxCC   float64

	entries map[int]domain.Adjustment
	frozen  bool
}

// entry returns the adjustment for hour idx, deciding it on first use.
func (b *Builder) entry(idx int, hour domain.WeatherHour) (domain.Adjustment, error) {
	if adj, ok := b.entries[idx]; ok {
		return adj, nil
	}
	if b.frozen {
		return domain.Adjustment{}, fmt.Errorf("write hour %d: %w", idx, ErrFrozen)
	}
	adj := b.model.decide(hour, b.fov, b.maxCC)
	b.entries[idx] = adj
	b.model.metrics.CacheEntries.WithLabelValues(adj.Kind.String()).Inc()
	return adj, nil
}

// Prefill decides every listed hour that has no entry yet, so that stars
// processed after Freeze find all the hours they need. Hours outside the
// weather record are skipped; the star that needs them fails on its own.
func (b *Builder) Prefill(hours []int) error {
	for _, idx := range hours {
		if _, ok := b.entries[idx]; ok {
			continue
		}
		hour, err := b.weather.Hour(idx)
		if err != nil {
			continue
		}
		if _, err := b.entry(idx, hour); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of decided hours.
func (b *Builder) Len() int { return len(b.entries) }

// Freeze ends the write phase and returns a read-only snapshot. The builder
// rejects new hours afterwards.
func (b *Builder) Freeze() *Cache {
	b.frozen = true
	return &Cache{entries: maps.Clone(b.entries)}
}

// Cache is the immutable per-hour adjustment table shared by every star in
// the field. It is safe for concurrent reads.
type Cache struct {
	entries map[int]domain.Adjustment
}

// Lookup returns the adjustment for hour idx. A missing hour means the
// cache was frozen before that hour was decided.
func (c *Cache) Lookup(idx int) (domain.Adjustment, error) {
	adj, ok := c.entries[idx]
	if !ok {
		return domain.Adjustment{}, fmt.Errorf("hour %d: %w", idx, domain.ErrInconsistentCache)
	}
	return adj, nil
}

// Len returns the number of cached hours.
func (c *Cache) Len() int { return len(c.entries) }

// Hours returns the cached hour indexes in ascending order.
func (c *Cache) Hours() []int {
	return slices.Sorted(maps.Keys(c.entries))
}
