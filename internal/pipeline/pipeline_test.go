package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rotse-sim/internal/domain"
	"github.com/couchcryptid/rotse-sim/internal/observability"
	"github.com/couchcryptid/rotse-sim/internal/pipeline"
	"github.com/couchcryptid/rotse-sim/internal/transparency"
)

// --- fakes ---

// fakeOracle models a site at longitude 0 with night from 18:00 to 06:00 UTC
// and every target culminating at 50 degrees at 01:00 UTC.
type fakeOracle struct{}

func (fakeOracle) Elevation(_ domain.Site, t time.Time, _ domain.SkyPosition) (float64, error) {
	d := t.Sub(t.Truncate(24*time.Hour)).Hours() - 1
	if d > 12 {
		d -= 24
	}
	return 50 - 10*math.Abs(d), nil
}

func (fakeOracle) IsNight(_ domain.Site, t time.Time) (bool, error) {
	h := t.Sub(t.Truncate(24 * time.Hour)).Hours()
	return h < 6 || h >= 18, nil
}

func (fakeOracle) NightWindow(_ domain.Site, anchor time.Time) (domain.NightWindow, error) {
	return domain.NightWindow{Sunset: anchor.Add(-6 * time.Hour), Sunrise: anchor.Add(6 * time.Hour)}, nil
}

// fakeClouds covers the western half of the field whatever the cover.
type fakeClouds struct {
	calls atomic.Int32
}

func (f *fakeClouds) Generate(float64) []domain.Cloud {
	f.calls.Add(1)
	return []domain.Cloud{{RAMin: 148, DecMin: 28, RAMax: 150, DecMax: 32}}
}

type memSink struct {
	mu  sync.Mutex
	obs []domain.Observation
	err error
}

func (m *memSink) LoadBatch(_ context.Context, obs []domain.Observation) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, obs...)
	return nil
}

func (m *memSink) byStar() map[string][]domain.Observation {
	out := make(map[string][]domain.Observation)
	for _, o := range m.obs {
		out[o.Star] = append(out[o.Star], o)
	}
	return out
}

type fakeRecorder struct {
	runID string
	hours []int
	kinds map[int]domain.AdjustmentKind
}

func (f *fakeRecorder) SaveAdjustments(_ context.Context, runID string, cache domain.AdjustmentTable) error {
	f.runID = runID
	f.hours = cache.Hours()
	f.kinds = make(map[int]domain.AdjustmentKind)
	for _, h := range f.hours {
		adj, err := cache.Lookup(h)
		if err != nil {
			return err
		}
		f.kinds[h] = adj.Kind
	}
	return nil
}

// --- fixtures ---

var start = time.Date(2003, 1, 16, 0, 0, 0, 0, time.UTC)

// hourlyCurve returns hourly samples over days days with luminosity
// 100 + 10*offset.
func hourlyCurve(days int) domain.Series {
	var s domain.Series
	for h := 0; h < days*24; h++ {
		off := float64(h) / 24
		s = append(s, domain.Sample{DayOffset: off, Luminosity: 100 + 10*off})
	}
	return s
}

// weatherRecord is 72 clear hours with rain at hour 4, wind at hour 25 and
// partial cloud at hour 28.
func weatherRecord() *domain.WeatherRecord {
	hours := make([]domain.WeatherHour, 72)
	hours[4] = domain.WeatherHour{Precipitation: 1.0}
	hours[25] = domain.WeatherHour{WindSpeed: 50}
	hours[28] = domain.WeatherHour{WeatherCode: 3, CloudCover: 60}
	return &domain.WeatherRecord{Origin: start, Hours: hours}
}

// stars returns a star east of the cloud edge, one under the cloud, and one
// whose light curve runs past the weather record.
func stars() []*domain.Star {
	return []*domain.Star{
		domain.NewStar("ceph-a", domain.SkyPosition{RA: 150.5, Dec: 30}, hourlyCurve(2)),
		domain.NewStar("ceph-b", domain.SkyPosition{RA: 149.5, Dec: 30.2}, hourlyCurve(2)),
		domain.NewStar("ceph-bad", domain.SkyPosition{RA: 150.2, Dec: 29.8}, hourlyCurve(4)),
	}
}

func params() pipeline.Params {
	return pipeline.Params{
		FOV:                domain.FieldOfView(domain.SkyPosition{RA: 150, Dec: 30}, 2),
		Start:              start,
		Location:           time.UTC,
		ElevationThreshold: 20,
		PrecipThreshold:    0.1,
		WindThreshold:      40,
		MaxCloudCoverage:   80,
		Workers:            2,
	}
}

type harness struct {
	runner   *pipeline.Runner
	sink     *memSink
	recorder *fakeRecorder
	clouds   *fakeClouds
	metrics  *observability.Metrics
}

func newHarness(p pipeline.Params) *harness {
	h := &harness{
		sink:     &memSink{},
		recorder: &fakeRecorder{},
		clouds:   &fakeClouds{},
		metrics:  observability.NewMetricsForTesting(),
	}
	model := transparency.NewModel(h.clouds, slog.Default(), h.metrics)
	h.runner = pipeline.New(p, weatherRecord(), fakeOracle{}, model,
		[]pipeline.Sink{{Name: "mem", Loader: h.sink}}, h.recorder, slog.Default(), h.metrics)
	return h
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func minutesAfterStart(o domain.Observation) int {
	return int(math.Round(o.Time.Sub(start).Minutes()))
}

// --- tests ---

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(params())

	report, err := h.runner.Run(context.Background(), stars())
	require.NoError(t, err)

	assert.Equal(t, h.runner.RunID(), report.RunID)
	assert.Equal(t, "ceph-a", report.FirstStar)
	assert.Equal(t, 2, report.CacheHours)
	assert.Equal(t, 12, report.Observations)
	require.Len(t, report.Results, 3)

	got := h.sink.byStar()

	// East of the cloud edge: hour 1 untouched, hour 28 dimmed to 40%.
	a := got["ceph-a"]
	require.Len(t, a, 8)
	var minutes []int
	for i, o := range a {
		minutes = append(minutes, minutesAfterStart(o))
		want := 100 + 10*o.DayOffset
		if i >= 4 {
			want *= 0.4
		}
		assert.InDelta(t, want, o.Luminosity, 1e-9)
		require.NotNil(t, o.Elevation)
		assert.Equal(t, report.RunID, o.RunID)
	}
	assert.Equal(t, []int{58, 59, 61, 62, 24*60 + 238, 24*60 + 239, 24*60 + 241, 24*60 + 242}, minutes)

	// Under the cloud: hour 28 dropped.
	b := got["ceph-b"]
	require.Len(t, b, 4)
	for _, o := range b {
		assert.Less(t, minutesAfterStart(o), 60+5)
	}

	// Past the weather record: aborted with the star identity.
	assert.Empty(t, got["ceph-bad"])
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "ceph-bad", failed[0].Star.Name)
	require.ErrorIs(t, failed[0].Err, domain.ErrMissingWeatherHour)
	var se *domain.StarError
	require.True(t, errors.As(failed[0].Err, &se))
	assert.Equal(t, "ceph-bad", se.Star)
	assert.Equal(t, "precipitation", se.Stage)
	assert.Equal(t, 73, se.HourIndex)
}

func TestRun_CacheDecidedOncePerHour(t *testing.T) {
	h := newHarness(params())

	_, err := h.runner.Run(context.Background(), stars())
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.clouds.calls.Load(), "only the cloudy hour generates a field, once")
	assert.Equal(t, h.runner.RunID(), h.recorder.runID)
	assert.Equal(t, []int{1, 28}, h.recorder.hours)
	assert.Equal(t, domain.AdjustClear, h.recorder.kinds[1])
	assert.Equal(t, domain.AdjustCloudSet, h.recorder.kinds[28])
}

func TestRun_FirstStarDoesNotChangeOutput(t *testing.T) {
	base := newHarness(params())
	_, err := base.runner.Run(context.Background(), stars())
	require.NoError(t, err)

	p := params()
	p.FirstStar = "ceph-b"
	alt := newHarness(p)
	report, err := alt.runner.Run(context.Background(), stars())
	require.NoError(t, err)
	assert.Equal(t, "ceph-b", report.FirstStar)

	ignore := cmpopts.IgnoreFields(domain.Observation{}, "RunID", "ProcessedAt")
	if diff := cmp.Diff(base.sink.byStar(), alt.sink.byStar(), ignore); diff != "" {
		t.Errorf("output depends on the seeding star (-default +ceph-b):\n%s", diff)
	}
}

func TestRun_UnknownFirstStarFallsBack(t *testing.T) {
	p := params()
	p.FirstStar = "ceph-bad"
	h := newHarness(p)

	report, err := h.runner.Run(context.Background(), stars())
	require.NoError(t, err)
	assert.Equal(t, "ceph-a", report.FirstStar)
}

func TestRun_Metrics(t *testing.T) {
	h := newHarness(params())

	_, err := h.runner.Run(context.Background(), stars())
	require.NoError(t, err)

	m := h.metrics
	assert.InDelta(t, 2, counterValue(t, m.StarsProcessed), 0)
	assert.InDelta(t, 1, counterValue(t, m.StarFailures.WithLabelValues("precipitation")), 0)
	assert.InDelta(t, 152, counterValue(t, m.SamplesDropped.WithLabelValues("elevation")), 0)
	assert.InDelta(t, 8, counterValue(t, m.SamplesDropped.WithLabelValues("precipitation")), 0)
	assert.InDelta(t, 8, counterValue(t, m.SamplesDropped.WithLabelValues("wind")), 0)
	assert.InDelta(t, 4, counterValue(t, m.SamplesDropped.WithLabelValues("cloud")), 0)
	assert.InDelta(t, 4, counterValue(t, m.SamplesAttenuated), 0)
	assert.InDelta(t, 12, counterValue(t, m.ObservationsWritten.WithLabelValues("mem")), 0)
}

func TestRun_OriginalSeriesKept(t *testing.T) {
	h := newHarness(params())
	input := stars()

	_, err := h.runner.Run(context.Background(), input)
	require.NoError(t, err)

	for _, s := range input {
		if diff := cmp.Diff(hourlyCurve(len(s.Original)/24), s.Original); diff != "" {
			t.Errorf("%s original modified (-want +got):\n%s", s.Name, diff)
		}
	}
}

func TestRun_NoStars(t *testing.T) {
	h := newHarness(params())

	report, err := h.runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.FirstStar)
	assert.Zero(t, report.Observations)
	assert.Nil(t, h.recorder.hours)
}

func TestRun_AllStarsFail(t *testing.T) {
	h := newHarness(params())
	bad := []*domain.Star{domain.NewStar("ceph-bad", domain.SkyPosition{RA: 150, Dec: 30}, hourlyCurve(4))}

	report, err := h.runner.Run(context.Background(), bad)
	require.NoError(t, err)
	assert.Len(t, report.Failed(), 1)
	assert.Empty(t, report.FirstStar)
	assert.Empty(t, h.sink.obs)
}

func TestRun_SinkErrorIsFatal(t *testing.T) {
	h := newHarness(params())
	h.sink.err = errors.New("disk full")

	_, err := h.runner.Run(context.Background(), stars())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Error(t, h.runner.CheckReadiness(context.Background()))
	assert.Equal(t, "failed", h.runner.Status().Phase)
}

func TestRun_Canceled(t *testing.T) {
	h := newHarness(params())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runner.Run(ctx, stars())
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheckReadiness(t *testing.T) {
	h := newHarness(params())
	require.Error(t, h.runner.CheckReadiness(context.Background()))

	_, err := h.runner.Run(context.Background(), stars())
	require.NoError(t, err)
	assert.NoError(t, h.runner.CheckReadiness(context.Background()))
}

func TestStatus(t *testing.T) {
	h := newHarness(params())
	before := h.runner.Status()
	assert.Equal(t, pipeline.Status{RunID: h.runner.RunID(), Phase: "idle"}, before)

	_, err := h.runner.Run(context.Background(), stars())
	require.NoError(t, err)

	assert.Equal(t, pipeline.Status{
		RunID:        h.runner.RunID(),
		Phase:        "done",
		StarsWritten: 2,
		Observations: 12,
	}, h.runner.Status())
}

func TestDefaultEnd(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	localStart := time.Date(2003, 1, 16, 0, 0, 0, 0, chicago)

	got := pipeline.DefaultEnd(localStart, chicago, []*domain.Star{
		domain.NewStar("short", domain.SkyPosition{}, hourlyCurve(1)),
		domain.NewStar("long", domain.SkyPosition{}, domain.Series{{DayOffset: 0}, {DayOffset: 2.5}}),
	})
	assert.True(t, got.Equal(time.Date(2003, 1, 19, 0, 0, 0, 0, chicago)), got)

	assert.True(t, pipeline.DefaultEnd(start, time.UTC, nil).Equal(start.AddDate(0, 0, 1)))
}
