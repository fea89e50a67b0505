// Package openmeteo fetches the hourly weather record for a site from the
// Open-Meteo historical archive, or loads one saved to disk.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
	"github.com/couchcryptid/rotse-sim/internal/observability"
)

// DefaultHourly is the set of hourly variables the simulation consumes.
const DefaultHourly = "precipitation,windspeed_10m,cloudcover,weathercode"

// hourLayout is the timestamp format of the hourly.time array.
const hourLayout = "2006-01-02T15:04"

// Client fetches hourly weather from the Open-Meteo archive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	hourly     string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive API client.
func NewClient(baseURL, hourly string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if hourly == "" {
		hourly = DefaultHourly
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		hourly:     hourly,
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch returns the hourly weather at site for every hour of the local dates
// from start through end inclusive. Hours[0] is 00:00 of start's date in loc.
func (c *Client) Fetch(ctx context.Context, site domain.Site, start, end time.Time, loc *time.Location) (*domain.WeatherRecord, error) {
	if loc == nil {
		loc = time.UTC
	}
	params := url.Values{
		"latitude":   {strconv.FormatFloat(site.Latitude, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(site.Longitude, 'f', -1, 64)},
		"start_date": {start.In(loc).Format(time.DateOnly)},
		"end_date":   {end.In(loc).Format(time.DateOnly)},
		"hourly":     {c.hourly},
		"timezone":   {loc.String()},
	}

	begin := time.Now()
	rec, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode(), loc)
	c.metrics.WeatherAPIDuration.Observe(time.Since(begin).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()

	want := domain.HourOrigin(start, loc)
	if !rec.Origin.Equal(want) {
		return nil, fmt.Errorf("weather series starts at %s, want %s", rec.Origin.Format(time.RFC3339), want.Format(time.RFC3339))
	}
	c.logger.Info("weather fetched",
		"latitude", site.Latitude,
		"longitude", site.Longitude,
		"start_date", params.Get("start_date"),
		"end_date", params.Get("end_date"),
		"hours", len(rec.Hours),
	)
	return rec, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string, loc *time.Location) (*domain.WeatherRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Hourly.record(loc)
}

// Open-Meteo API response types. Values are null for hours the archive has
// no data for.

type response struct {
	Hourly hourly `json:"hourly"`
}

type hourly struct {
	Time          []string   `json:"time"`
	Precipitation []*float64 `json:"precipitation"`
	WindSpeed     []*float64 `json:"windspeed_10m"`
	CloudCover    []*float64 `json:"cloudcover"`
	WeatherCode   []*float64 `json:"weathercode"`
}

func (h hourly) record(loc *time.Location) (*domain.WeatherRecord, error) {
	n := len(h.Time)
	if n == 0 {
		return nil, fmt.Errorf("decode response: empty hourly series: %w", domain.ErrMissingWeatherHour)
	}
	for name, col := range map[string][]*float64{
		"precipitation": h.Precipitation,
		"windspeed_10m": h.WindSpeed,
		"cloudcover":    h.CloudCover,
		"weathercode":   h.WeatherCode,
	} {
		if len(col) != n {
			return nil, fmt.Errorf("decode response: %s has %d values for %d hours", name, len(col), n)
		}
	}

	origin, err := time.ParseInLocation(hourLayout, h.Time[0], loc)
	if err != nil {
		return nil, fmt.Errorf("parse hour %q: %w", h.Time[0], err)
	}

	rec := &domain.WeatherRecord{Origin: origin, Hours: make([]domain.WeatherHour, n)}
	for i := range n {
		rec.Hours[i] = domain.WeatherHour{
			Precipitation: value(h.Precipitation[i]),
			WindSpeed:     value(h.WindSpeed[i]),
			CloudCover:    value(h.CloudCover[i]),
			WeatherCode:   int(value(h.WeatherCode[i])),
		}
	}
	return rec, nil
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
