package astro

import (
	"math"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// AltitudeDeg returns the geometric altitude in degrees of an equatorial
// position seen from latDeg/lonDeg at t. Refraction is not applied.
func AltitudeDeg(t time.Time, latDeg, lonDeg float64, pos domain.SkyPosition) float64 {
	lat := latDeg * deg2rad
	dec := pos.Dec * deg2rad
	ha := LocalSiderealTime(t, lonDeg) - pos.RA*deg2rad

	sinAlt := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(ha)
	sinAlt = math.Max(-1, math.Min(1, sinAlt))
	return math.Asin(sinAlt) * rad2deg
}

// SunPosition returns the apparent equatorial position of the Sun at t using
// the low-precision Astronomical Almanac series (about 0.01 degree accuracy
// between 1950 and 2050).
func SunPosition(t time.Time) domain.SkyPosition {
	n := JulianDate(t) - j2000

	meanLon := math.Mod(280.460+0.9856474*n, 360)
	meanAnomaly := math.Mod(357.528+0.9856003*n, 360) * deg2rad

	eclLon := (meanLon + 1.915*math.Sin(meanAnomaly) + 0.020*math.Sin(2*meanAnomaly)) * deg2rad
	obliquity := (23.439 - 0.0000004*n) * deg2rad

	ra := math.Atan2(math.Cos(obliquity)*math.Sin(eclLon), math.Cos(eclLon)) * rad2deg
	if ra < 0 {
		ra += 360
	}
	dec := math.Asin(math.Sin(obliquity)*math.Sin(eclLon)) * rad2deg
	return domain.SkyPosition{RA: ra, Dec: dec}
}
