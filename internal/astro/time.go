package astro

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (2000-01-01 12:00 TT).
const j2000 = 2451545.0

// JulianDate converts an instant to a Julian Date. Valid for Gregorian dates.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	mins := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
	jd += (h + mins/60.0 + s/3600.0) / 24.0
	return jd
}

// GMST returns Greenwich Mean Sidereal Time in radians, IAU-82 model
// (Vallado eq. 3-47).
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// LocalSiderealTime returns the local mean sidereal time in radians for an
// east-positive longitude in degrees.
func LocalSiderealTime(t time.Time, lonDeg float64) float64 {
	lst := math.Mod(GMST(t)+lonDeg*deg2rad, 2*math.Pi)
	if lst < 0 {
		lst += 2 * math.Pi
	}
	return lst
}
