// Package transparency removes or dims observations according to the cloud
// cover over the field of view. Cloud fields are generated at most once per
// hour of simulated time and shared by every star in the field through a
// write-once adjustment cache.
package transparency

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
	"github.com/couchcryptid/rotse-sim/internal/observability"
)

// Model applies hourly transparency decisions to star series.
type Model struct {
	clouds  CloudGenerator
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewModel creates a Model drawing cloud fields from clouds.
func NewModel(clouds CloudGenerator, logger *slog.Logger, metrics *observability.Metrics) *Model {
	return &Model{clouds: clouds, logger: logger, metrics: metrics}
}

// ApplyFirst filters the star that initializes the cache. Every hour its
// samples fall in is decided from the weather record and stored in the
// returned builder, which the caller may Prefill and then Freeze.
func (m *Model) ApplyFirst(star *domain.Star, start time.Time, weather *domain.WeatherRecord,
	fov domain.Rect, maxCloudCoverage float64) (domain.Series, *Builder, error) {
	b := &Builder{
		model:   m,
		weather: weather,
		fov:     fov,
		maxCC:   maxCloudCoverage,
		entries: make(map[int]domain.Adjustment),
	}
	m.checkInField(star, fov)

	out := make(domain.Series, 0, len(star.Scheduled))
	for _, s := range star.Scheduled {
		at := domain.OffsetToTime(start, s.DayOffset)
		idx, hour, err := weather.At(at)
		if err != nil {
			return nil, nil, domain.StageError("transparency", at, idx, err)
		}
		adj, err := b.entry(idx, hour)
		if err != nil {
			return nil, nil, domain.StageError("transparency", at, idx, err)
		}
		if kept, ok := m.apply(adj, star.Position, s); ok {
			out = append(out, kept)
		}
	}

	m.logger.Debug("adjustment cache seeded", "star", star.Name, "hours", b.Len(), "kept", len(out), "scheduled", len(star.Scheduled))
	return out, b, nil
}

// ApplyCached filters a star against a frozen cache. It never generates
// clouds. An hour outside the weather record is ErrMissingWeatherHour; an
// hour inside it but absent from the cache is ErrInconsistentCache.
func (m *Model) ApplyCached(star *domain.Star, start time.Time, weather *domain.WeatherRecord,
	cache *Cache, fov domain.Rect) (domain.Series, error) {
	m.checkInField(star, fov)
	out := make(domain.Series, 0, len(star.Scheduled))
	for _, s := range star.Scheduled {
		at := domain.OffsetToTime(start, s.DayOffset)
		idx := weather.IndexOf(at)
		if _, err := weather.Hour(idx); err != nil {
			return nil, domain.StageError("transparency", at, idx, err)
		}
		adj, err := cache.Lookup(idx)
		if err != nil {
			return nil, domain.StageError("transparency", at, idx, err)
		}
		if kept, ok := m.apply(adj, star.Position, s); ok {
			out = append(out, kept)
		}
	}
	return out, nil
}

// checkInField warns about a star the clouds were not generated around.
func (m *Model) checkInField(star *domain.Star, fov domain.Rect) {
	if !fov.ContainsPoint(star.Position) {
		m.logger.Warn("star outside field of view", "star", star.Name, "ra", star.Position.RA, "dec", star.Position.Dec)
	}
}

// apply runs the shared decision and records its effect.
func (m *Model) apply(adj domain.Adjustment, pos domain.SkyPosition, s domain.Sample) (domain.Sample, bool) {
	kept, ok := adj.Apply(pos, s)
	switch {
	case !ok:
		m.metrics.SamplesDropped.WithLabelValues("cloud").Inc()
	case kept.Luminosity != s.Luminosity:
		m.metrics.SamplesAttenuated.Inc()
	}
	return kept, ok
}

// decide classifies one hour of weather for the field of view.
func (m *Model) decide(hour domain.WeatherHour, fov domain.Rect, maxCloudCoverage float64) domain.Adjustment {
	if domain.IsHeavyCloudCode(hour.WeatherCode) || hour.CloudCover > maxCloudCoverage {
		return domain.DropAdjustment()
	}
	if hour.WeatherCode == domain.ClearSkyCode {
		return domain.ClearAdjustment()
	}

	clouds := m.clouds.Generate(hour.CloudCover)
	m.metrics.CloudFieldsGenerated.Inc()
	switch domain.ClassifyCoverage(fov, clouds) {
	case domain.CoverageFull:
		return domain.DropAdjustment()
	case domain.CoveragePartial:
		return domain.CloudSetAdjustment(clouds, hour.CloudCover, true)
	default:
		return domain.CloudSetAdjustment(clouds, hour.CloudCover, false)
	}
}

// Hours returns the distinct weather hour indexes the series falls in.
func Hours(series domain.Series, start time.Time, weather *domain.WeatherRecord) []int {
	seen := make(map[int]struct{}, len(series))
	var out []int
	for _, s := range series {
		idx := weather.IndexOf(domain.OffsetToTime(start, s.DayOffset))
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}
