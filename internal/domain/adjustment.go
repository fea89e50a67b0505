package domain

// AdjustmentKind tags an Adjustment.
type AdjustmentKind int

const (
	// AdjustDrop removes every sample in the hour.
	AdjustDrop AdjustmentKind = iota + 1
	// AdjustClear keeps every sample unchanged.
	AdjustClear
	// AdjustCloudSet tests each star's position against the hour's clouds.
	AdjustCloudSet
)

func (k AdjustmentKind) String() string {
	switch k {
	case AdjustDrop:
		return "drop"
	case AdjustClear:
		return "clear"
	case AdjustCloudSet:
		return "cloudset"
	default:
		return "unknown"
	}
}

// Adjustment is the transparency decision for one hour of sky. It is the same
// for every star in the field.
type Adjustment struct {
	Kind AdjustmentKind

	// The fields below are set for AdjustCloudSet only.
	Clouds []Cloud
	// CloudCover is the hour's cloud cover percentage used for attenuation.
	CloudCover float64
	// Partial is true when at least one cloud overlaps the field of view.
	// A cloud set that misses the field entirely never attenuates.
	Partial bool
}

// DropAdjustment returns the Drop variant.
func DropAdjustment() Adjustment { return Adjustment{Kind: AdjustDrop} }

// ClearAdjustment returns the Clear variant.
func ClearAdjustment() Adjustment { return Adjustment{Kind: AdjustClear} }

// CloudSetAdjustment returns the CloudSet variant. The clouds slice is copied.
func CloudSetAdjustment(clouds []Cloud, cloudCover float64, partial bool) Adjustment {
	cp := make([]Cloud, len(clouds))
	copy(cp, clouds)
	return Adjustment{Kind: AdjustCloudSet, Clouds: cp, CloudCover: cloudCover, Partial: partial}
}

// Transmission returns the fraction of light passing through haze at the
// given cloud cover, clamped to [0, 1].
func Transmission(cloudCover float64) float64 {
	f := 1 - cloudCover/100
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// Apply decides the fate of one sample of a star at pos. It returns the
// possibly attenuated sample and whether it is kept.
func (a Adjustment) Apply(pos SkyPosition, s Sample) (Sample, bool) {
	switch a.Kind {
	case AdjustDrop:
		return s, false
	case AdjustCloudSet:
		if CoveredBy(pos, a.Clouds) {
			return s, false
		}
		if a.Partial {
			s.Luminosity *= Transmission(a.CloudCover)
		}
		return s, true
	default:
		return s, true
	}
}

// AdjustmentTable is the read side of a frozen adjustment cache.
type AdjustmentTable interface {
	Hours() []int
	Lookup(hourIndex int) (Adjustment, error)
}
