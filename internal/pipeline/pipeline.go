// Package pipeline runs every star of a simulation through scheduling and
// sky-condition filtering and hands the surviving observations to the sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/rotse-sim/internal/config"
	"github.com/couchcryptid/rotse-sim/internal/domain"
	"github.com/couchcryptid/rotse-sim/internal/observability"
	"github.com/couchcryptid/rotse-sim/internal/schedule"
	"github.com/couchcryptid/rotse-sim/internal/transparency"
	"github.com/couchcryptid/rotse-sim/internal/weather"
)

// ObservationLoader writes observation rows to a destination.
type ObservationLoader interface {
	LoadBatch(ctx context.Context, obs []domain.Observation) error
}

// AdjustmentRecorder persists a run's frozen adjustment cache.
type AdjustmentRecorder interface {
	SaveAdjustments(ctx context.Context, runID string, cache domain.AdjustmentTable) error
}

// Sink is a named observation destination. The name labels its metrics.
type Sink struct {
	Name   string
	Loader ObservationLoader
}

// Params are the per-run simulation settings.
type Params struct {
	Site     domain.Site
	FOV      domain.Rect
	Start    time.Time
	End      time.Time
	Location *time.Location

	ElevationThreshold float64
	PrecipThreshold    float64
	WindThreshold      float64
	MaxCloudCoverage   float64

	// FirstStar names the star that seeds the adjustment cache. Empty picks
	// the first star in input order.
	FirstStar string
	Workers   int
	Verbose   bool
}

// ParamsFromConfig extracts the run settings from cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Site:               cfg.Site,
		FOV:                domain.FieldOfView(cfg.FieldCenter, cfg.FOV),
		Start:              cfg.Start,
		End:                cfg.End,
		Location:           cfg.Location,
		ElevationThreshold: cfg.ElevationThreshold,
		PrecipThreshold:    cfg.PrecipThreshold,
		WindThreshold:      cfg.WindThreshold,
		MaxCloudCoverage:   cfg.MaxCloudCoverage,
		FirstStar:          cfg.FirstStar,
		Workers:            cfg.Workers,
		Verbose:            cfg.ScheduleVerbose,
	}
}

// Report summarizes a finished run.
type Report struct {
	RunID string
	// Results holds one entry per input star, in input order.
	Results      []domain.StarResult
	FirstStar    string
	CacheHours   int
	Observations int
}

// Failed returns the results of stars that were aborted.
func (r *Report) Failed() []domain.StarResult {
	var out []domain.StarResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Status is a point-in-time view of a run.
type Status struct {
	RunID        string `json:"run_id"`
	Phase        string `json:"phase"`
	StarsWritten int64  `json:"stars_written"`
	Observations int64  `json:"observations"`
}

// Runner orchestrates the three phases of a run: per-star preparation in
// parallel, cache seeding by a single writer, then cached transparency in
// parallel.
type Runner struct {
	params   Params
	weather  *domain.WeatherRecord
	oracle   schedule.Oracle
	sched    *schedule.Scheduler
	model    *transparency.Model
	filters  []weather.Threshold
	sinks    []Sink
	recorder AdjustmentRecorder
	logger   *slog.Logger
	metrics  *observability.Metrics
	runID    string
	ready    atomic.Bool

	phase        atomic.Value // string
	starsWritten atomic.Int64
	obsWritten   atomic.Int64
}

// New creates a Runner. recorder may be nil.
func New(params Params, rec *domain.WeatherRecord, oracle schedule.Oracle, model *transparency.Model,
	sinks []Sink, recorder AdjustmentRecorder, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if params.Workers < 1 {
		params.Workers = runtime.NumCPU()
	}
	if params.Location == nil {
		params.Location = time.UTC
	}
	r := &Runner{
		params:  params,
		weather: rec,
		oracle:  oracle,
		sched:   schedule.NewScheduler(oracle, logger, metrics),
		model:   model,
		filters: []weather.Threshold{
			weather.Precipitation(params.PrecipThreshold),
			weather.Wind(params.WindThreshold),
		},
		sinks:    sinks,
		recorder: recorder,
		logger:   logger,
		metrics:  metrics,
		runID:    uuid.NewString(),
	}
	r.phase.Store("idle")
	return r
}

// RunID identifies this run in every output row.
func (r *Runner) RunID() string { return r.runID }

// CheckReadiness returns nil once the run has written at least one star's
// observations.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no observations written yet")
	}
	return nil
}

// Status reports the current phase and how much has been written so far.
func (r *Runner) Status() Status {
	return Status{
		RunID:        r.runID,
		Phase:        r.phase.Load().(string),
		StarsWritten: r.starsWritten.Load(),
		Observations: r.obsWritten.Load(),
	}
}

// Run processes stars and writes their observations to every sink. Stars
// that fail a stage are reported in the Report and never retried. The
// returned error is reserved for cancellation and sink failures.
func (r *Runner) Run(ctx context.Context, stars []*domain.Star) (*Report, error) {
	report, err := r.run(ctx, stars)
	if err != nil {
		r.phase.Store("failed")
		return nil, err
	}
	r.phase.Store("done")
	return report, nil
}

func (r *Runner) run(ctx context.Context, stars []*domain.Star) (*Report, error) {
	r.logger.Info("run started", "run_id", r.runID, "stars", len(stars), "workers", r.params.Workers)
	r.metrics.RunInProgress.Set(1)
	defer r.metrics.RunInProgress.Set(0)

	report := &Report{RunID: r.runID, Results: make([]domain.StarResult, len(stars))}
	for i, s := range stars {
		report.Results[i].Star = s
	}

	if err := r.prepareAll(ctx, report.Results); err != nil {
		return nil, err
	}

	cache, first, err := r.seedCache(report.Results)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		report.FirstStar = report.Results[first].Star.Name
		report.CacheHours = cache.Len()

		if err := r.applyCachedAll(ctx, report.Results, cache, first); err != nil {
			return nil, err
		}
		if r.recorder != nil {
			if err := r.recorder.SaveAdjustments(ctx, r.runID, cache); err != nil {
				return nil, fmt.Errorf("save adjustments: %w", err)
			}
		}
	}

	n, err := r.write(ctx, report.Results)
	if err != nil {
		return nil, err
	}
	report.Observations = n

	r.record(report)
	return report, nil
}

// prepareAll runs the elevation filter, the scheduler and the weather
// thresholds for every star in parallel. Stars share nothing in this phase.
func (r *Runner) prepareAll(ctx context.Context, results []domain.StarResult) error {
	defer r.observe(r.enter("prepare"))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.params.Workers)
	for i := range results {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].Err = r.prepare(results[i].Star)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prepare stars: %w", err)
	}
	return nil
}

func (r *Runner) prepare(star *domain.Star) error {
	p := r.params

	raw, err := schedule.FilterByElevation(star.Raw, p.Site, star.Position, p.Start, p.ElevationThreshold, r.oracle)
	if err != nil {
		return domain.NewStarError(star, "elevation", p.Start, -1, err)
	}
	r.dropped("elevation", len(star.Raw), len(raw))
	star.Raw = raw

	scheduled, err := r.sched.Schedule(star.Raw, schedule.Request{
		Star:     star.Name,
		Site:     p.Site,
		Target:   star.Position,
		Start:    p.Start,
		End:      p.End,
		Location: p.Location,
		Verbose:  p.Verbose,
	})
	if err != nil {
		return domain.NewStarError(star, "schedule", p.Start, -1, err)
	}

	for _, f := range r.filters {
		kept, err := f.Apply(scheduled, p.Start, r.weather)
		if err != nil {
			return domain.NewStarError(star, f.Stage, p.Start, -1, err)
		}
		r.dropped(f.Stage, len(scheduled), len(kept))
		scheduled = kept
	}
	star.Scheduled = scheduled
	return nil
}

// seedCache runs ApplyFirst on the designated star, falling back to the next
// prepared star if it fails, and pre-decides every hour the remaining stars
// will look up. It returns the frozen cache and the seeding star's index, or
// a nil cache when no star could seed it.
func (r *Runner) seedCache(results []domain.StarResult) (*transparency.Cache, int, error) {
	defer r.observe(r.enter("seed"))
	p := r.params

	candidates := make([]int, 0, len(results))
	for i, res := range results {
		if res.Err == nil {
			candidates = append(candidates, i)
		}
	}
	if p.FirstStar != "" {
		pos := slices.IndexFunc(candidates, func(i int) bool { return results[i].Star.Name == p.FirstStar })
		if pos < 0 {
			r.logger.Warn("configured first star unavailable, using next star", "first_star", p.FirstStar)
		} else {
			first := candidates[pos]
			candidates = append([]int{first}, slices.Delete(candidates, pos, pos+1)...)
		}
	}

	for n, i := range candidates {
		star := results[i].Star
		out, b, err := r.model.ApplyFirst(star, p.Start, r.weather, p.FOV, p.MaxCloudCoverage)
		if err != nil {
			results[i].Err = domain.NewStarError(star, "transparency", p.Start, -1, err)
			r.logger.Warn("cache seed failed", "star", star.Name, "error", results[i].Err)
			continue
		}
		star.Scheduled = out

		var hours []int
		for _, j := range candidates[n+1:] {
			hours = append(hours, transparency.Hours(results[j].Star.Scheduled, p.Start, r.weather)...)
		}
		if err := b.Prefill(hours); err != nil {
			return nil, -1, fmt.Errorf("prefill adjustment cache: %w", err)
		}
		cache := b.Freeze()
		r.logger.Info("adjustment cache frozen", "first_star", star.Name, "hours", cache.Len())
		return cache, i, nil
	}
	r.logger.Warn("no star available to seed the adjustment cache")
	return nil, -1, nil
}

// applyCachedAll filters every remaining star against the frozen cache in
// parallel. The cache is read-only in this phase.
func (r *Runner) applyCachedAll(ctx context.Context, results []domain.StarResult, cache *transparency.Cache, first int) error {
	defer r.observe(r.enter("transparency"))
	p := r.params

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i := range results {
		if i == first || results[i].Err != nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			star := results[i].Star
			out, err := r.model.ApplyCached(star, p.Start, r.weather, cache, p.FOV)
			if err != nil {
				results[i].Err = domain.NewStarError(star, "transparency", p.Start, -1, err)
				return nil
			}
			star.Scheduled = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("apply transparency: %w", err)
	}
	return nil
}

// write hands each surviving star's rows to every sink, one batch per star.
func (r *Runner) write(ctx context.Context, results []domain.StarResult) (int, error) {
	defer r.observe(r.enter("write"))

	total := 0
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("write observations: %w", err)
		}
		obs := domain.Observations(r.runID, r.params.Start, res.Star)
		for _, s := range r.sinks {
			if err := s.Loader.LoadBatch(ctx, obs); err != nil {
				return total, fmt.Errorf("load %s batch for %s: %w", s.Name, res.Star.Name, err)
			}
			r.metrics.ObservationsWritten.WithLabelValues(s.Name).Add(float64(len(obs)))
		}
		total += len(obs)
		r.starsWritten.Add(1)
		r.obsWritten.Add(int64(len(obs)))
		r.ready.Store(true)
	}
	return total, nil
}

func (r *Runner) record(report *Report) {
	failed := 0
	for _, res := range report.Results {
		if res.Err == nil {
			r.metrics.StarsProcessed.Inc()
			continue
		}
		failed++
		stage := "unknown"
		var se *domain.StarError
		if errors.As(res.Err, &se) {
			stage = se.Stage
		}
		r.metrics.StarFailures.WithLabelValues(stage).Inc()
		r.logger.Error("star failed", "star", res.Star.Name, "stage", stage, "error", res.Err)
	}
	r.logger.Info("run complete",
		"run_id", r.runID,
		"stars", len(report.Results),
		"failed", failed,
		"first_star", report.FirstStar,
		"cache_hours", report.CacheHours,
		"observations", report.Observations,
	)
}

func (r *Runner) dropped(stage string, before, after int) {
	if n := before - after; n > 0 {
		r.metrics.SamplesDropped.WithLabelValues(stage).Add(float64(n))
	}
}

func (r *Runner) enter(stage string) (string, time.Time) {
	r.phase.Store(stage)
	return stage, time.Now()
}

func (r *Runner) observe(stage string, began time.Time) {
	r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(began).Seconds())
}

// DefaultEnd returns the exclusive end of a run with no configured end date:
// midnight in loc after the date of the latest raw sample of any star.
func DefaultEnd(start time.Time, loc *time.Location, stars []*domain.Star) time.Time {
	last := 0.0
	for _, s := range stars {
		last = max(last, s.Raw.LastOffset())
	}
	return domain.HourOrigin(domain.OffsetToTime(start, last), loc).AddDate(0, 0, 1)
}
