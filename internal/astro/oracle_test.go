package astro

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

var mcdonald = domain.Site{Latitude: 30.6715, Longitude: -104.0224, Elevation: 2075}

func TestJulianDate_J2000(t *testing.T) {
	jd := JulianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.InDelta(t, 2451545.0, jd, 1e-9)
}

func TestGMST_J2000(t *testing.T) {
	gmst := GMST(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)) * rad2deg
	assert.InDelta(t, 280.46, gmst, 0.01)
}

func TestElevation_PolarisTracksLatitude(t *testing.T) {
	o := NewOracle()
	polaris := domain.SkyPosition{RA: 37.95, Dec: 89.264}
	start := time.Date(2003, 1, 16, 0, 0, 0, 0, time.UTC)

	for h := 0; h < 24; h += 3 {
		alt, err := o.Elevation(mcdonald, start.Add(time.Duration(h)*time.Hour), polaris)
		require.NoError(t, err)
		assert.InDelta(t, mcdonald.Latitude, alt, 0.75)
	}
}

func TestElevation_InvalidSite(t *testing.T) {
	o := NewOracle()
	_, err := o.Elevation(domain.Site{Latitude: math.NaN()}, time.Now(), domain.SkyPosition{})
	require.ErrorIs(t, err, domain.ErrGeometry)

	_, err = o.Elevation(domain.Site{Latitude: 91}, time.Now(), domain.SkyPosition{})
	require.ErrorIs(t, err, domain.ErrGeometry)
}

func TestNightWindow_McDonaldJanuary(t *testing.T) {
	o := NewOracle()
	anchor := time.Date(2003, 1, 16, 6, 56, 0, 0, time.UTC) // local mean midnight

	w, err := o.NightWindow(mcdonald, anchor)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Date(2003, 1, 16, 0, 17, 0, 0, time.UTC), w.Sunset, 10*time.Minute)
	assert.WithinDuration(t, time.Date(2003, 1, 16, 13, 54, 0, 0, time.UTC), w.Sunrise, 10*time.Minute)
	assert.True(t, w.Sunset.Before(anchor))
	assert.True(t, w.Sunrise.After(anchor))

	assert.InDelta(t, 0, o.sunMargin(mcdonald, w.Sunset), 0.01)
	assert.InDelta(t, 0, o.sunMargin(mcdonald, w.Sunrise), 0.01)
}

func TestIsNight(t *testing.T) {
	o := NewOracle()

	night, err := o.IsNight(mcdonald, time.Date(2003, 1, 16, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, night)

	night, err = o.IsNight(mcdonald, time.Date(2003, 1, 16, 19, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, night)
}

func TestNightWindow_PolarSummerUnresolved(t *testing.T) {
	o := NewOracle()
	solstice := time.Date(2003, 6, 21, 0, 0, 0, 0, time.UTC)

	_, err := o.NightWindow(domain.Site{Latitude: 80, Longitude: 0}, solstice)
	require.ErrorIs(t, err, domain.ErrGeometry)

	_, err = o.NightWindow(domain.Site{Latitude: -80, Longitude: 0}, solstice)
	require.ErrorIs(t, err, domain.ErrGeometry)
}
