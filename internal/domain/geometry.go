package domain

// Rect is an axis-aligned rectangle in the (ra, dec) plane, in degrees.
type Rect struct {
	RAMin  float64 `json:"ra_min"`
	DecMin float64 `json:"dec_min"`
	RAMax  float64 `json:"ra_max"`
	DecMax float64 `json:"dec_max"`
}

// Cloud is the footprint of one generated cloud.
type Cloud = Rect

// FieldOfView builds the square field centered on center with the given full
// width in degrees.
func FieldOfView(center SkyPosition, width float64) Rect {
	half := width / 2
	return Rect{
		RAMin:  center.RA - half,
		DecMin: center.Dec - half,
		RAMax:  center.RA + half,
		DecMax: center.Dec + half,
	}
}

// ContainsPoint reports whether p lies inside r, edges included.
func (r Rect) ContainsPoint(p SkyPosition) bool {
	return p.RA >= r.RAMin && p.RA <= r.RAMax && p.Dec >= r.DecMin && p.Dec <= r.DecMax
}

// ContainsRect reports whether inner lies entirely inside r, edges included.
func (r Rect) ContainsRect(inner Rect) bool {
	return inner.RAMin >= r.RAMin && inner.DecMin >= r.DecMin &&
		inner.RAMax <= r.RAMax && inner.DecMax <= r.DecMax
}

// Overlaps reports whether r and o share interior area. Touching edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	return !(o.RAMin >= r.RAMax || o.RAMax <= r.RAMin || o.DecMax <= r.DecMin || o.DecMin >= r.DecMax)
}

// Coverage classifies how a set of clouds covers a field of view.
type Coverage int

const (
	// CoverageNone means no cloud overlaps the field.
	CoverageNone Coverage = iota
	// CoveragePartial means at least one cloud overlaps but none contains the field.
	CoveragePartial
	// CoverageFull means one cloud contains the whole field.
	CoverageFull
)

func (c Coverage) String() string {
	switch c {
	case CoveragePartial:
		return "partial"
	case CoverageFull:
		return "full"
	default:
		return "none"
	}
}

// ClassifyCoverage tests fov against every cloud.
func ClassifyCoverage(fov Rect, clouds []Cloud) Coverage {
	result := CoverageNone
	for _, c := range clouds {
		if !fov.Overlaps(c) {
			continue
		}
		if c.ContainsRect(fov) {
			return CoverageFull
		}
		result = CoveragePartial
	}
	return result
}

// CoveredBy reports whether p lies inside any of the clouds.
func CoveredBy(p SkyPosition, clouds []Cloud) bool {
	for _, c := range clouds {
		if c.ContainsPoint(p) {
			return true
		}
	}
	return false
}
