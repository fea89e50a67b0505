// Package astro answers the visibility questions the scheduler asks about a
// site: how high a target stands at an instant, whether the Sun is down, and
// when the surrounding night begins and ends.
package astro

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

const (
	// DefaultSunHorizonDeg is the solar altitude at rise and set: the upper
	// limb on the horizon with standard refraction.
	DefaultSunHorizonDeg = -0.833

	crossingStep   = 10 * time.Minute
	crossingSearch = 48 * time.Hour
	crossingTol    = time.Second
)

// Oracle computes target elevation and day/night state for a site.
// It holds no mutable state and is safe for concurrent use.
type Oracle struct {
	sunHorizon float64
}

// NewOracle creates an Oracle using the standard rise/set altitude.
func NewOracle() *Oracle {
	return &Oracle{sunHorizon: DefaultSunHorizonDeg}
}

// Elevation returns the target's altitude above the horizon in degrees.
func (o *Oracle) Elevation(site domain.Site, t time.Time, target domain.SkyPosition) (float64, error) {
	if err := validate(site, t); err != nil {
		return 0, err
	}
	if math.IsNaN(target.RA) || math.IsNaN(target.Dec) || math.Abs(target.Dec) > 90 {
		return 0, fmt.Errorf("target ra=%g dec=%g: %w", target.RA, target.Dec, domain.ErrGeometry)
	}
	return AltitudeDeg(t, site.Latitude, site.Longitude, target), nil
}

// IsNight reports whether the Sun is below the rise/set altitude at t, i.e.
// the most recent solar event was a setting rather than a rising.
func (o *Oracle) IsNight(site domain.Site, t time.Time) (bool, error) {
	if err := validate(site, t); err != nil {
		return false, err
	}
	return o.sunMargin(site, t) < 0, nil
}

// NightWindow returns the sunset preceding anchor and the sunrise following it.
// If the Sun neither sets nor rises within two days of anchor the window is
// undefined and ErrGeometry is returned.
func (o *Oracle) NightWindow(site domain.Site, anchor time.Time) (domain.NightWindow, error) {
	if err := validate(site, anchor); err != nil {
		return domain.NightWindow{}, err
	}
	sunset, ok := o.previousSetting(site, anchor)
	if !ok {
		return domain.NightWindow{}, fmt.Errorf("no sunset within %s before %s: %w",
			crossingSearch, anchor.UTC().Format(time.RFC3339), domain.ErrGeometry)
	}
	sunrise, ok := o.nextRising(site, anchor)
	if !ok {
		return domain.NightWindow{}, fmt.Errorf("no sunrise within %s after %s: %w",
			crossingSearch, anchor.UTC().Format(time.RFC3339), domain.ErrGeometry)
	}
	return domain.NightWindow{Sunset: sunset, Sunrise: sunrise}, nil
}

// sunMargin is the Sun's altitude above the rise/set altitude in degrees.
func (o *Oracle) sunMargin(site domain.Site, t time.Time) float64 {
	return AltitudeDeg(t, site.Latitude, site.Longitude, SunPosition(t)) - o.sunHorizon
}

// previousSetting walks backwards from anchor for the latest above-to-below crossing.
func (o *Oracle) previousSetting(site domain.Site, anchor time.Time) (time.Time, bool) {
	later := anchor
	laterMargin := o.sunMargin(site, later)
	for elapsed := time.Duration(0); elapsed < crossingSearch; elapsed += crossingStep {
		earlier := later.Add(-crossingStep)
		earlierMargin := o.sunMargin(site, earlier)
		if earlierMargin >= 0 && laterMargin < 0 {
			return o.bisect(site, earlier, later, true), true
		}
		later, laterMargin = earlier, earlierMargin
	}
	return time.Time{}, false
}

// nextRising walks forwards from anchor for the first below-to-above crossing.
func (o *Oracle) nextRising(site domain.Site, anchor time.Time) (time.Time, bool) {
	earlier := anchor
	earlierMargin := o.sunMargin(site, earlier)
	for elapsed := time.Duration(0); elapsed < crossingSearch; elapsed += crossingStep {
		later := earlier.Add(crossingStep)
		laterMargin := o.sunMargin(site, later)
		if earlierMargin < 0 && laterMargin >= 0 {
			return o.bisect(site, earlier, later, false), true
		}
		earlier, earlierMargin = later, laterMargin
	}
	return time.Time{}, false
}

// bisect narrows a bracketed crossing to crossingTol. For a setting the Sun
// is up at lo and down at hi; for a rising it is the other way round.
func (o *Oracle) bisect(site domain.Site, lo, hi time.Time, setting bool) time.Time {
	for hi.Sub(lo) > crossingTol {
		mid := lo.Add(hi.Sub(lo) / 2)
		up := o.sunMargin(site, mid) >= 0
		if up == setting {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
}

func validate(site domain.Site, t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("zero time: %w", domain.ErrGeometry)
	}
	if math.IsNaN(site.Latitude) || math.IsNaN(site.Longitude) || math.Abs(site.Latitude) > 90 {
		return fmt.Errorf("site lat=%g lon=%g: %w", site.Latitude, site.Longitude, domain.ErrGeometry)
	}
	return nil
}
