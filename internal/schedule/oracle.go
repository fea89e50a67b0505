// Package schedule restricts a dense theoretical light curve to the instants
// a ROTSE-III style telescope would actually observe.
package schedule

import (
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// Oracle answers visibility questions for a site. *astro.Oracle implements it.
type Oracle interface {
	Elevation(site domain.Site, t time.Time, target domain.SkyPosition) (float64, error)
	IsNight(site domain.Site, t time.Time) (bool, error)
	NightWindow(site domain.Site, anchor time.Time) (domain.NightWindow, error)
}
