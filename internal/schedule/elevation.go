package schedule

import (
	"time"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// FilterByElevation keeps the samples at which target stands strictly above
// threshold degrees and annotates them with that elevation. The input is not
// modified. An oracle failure is returned as a StageError for the sample's
// instant.
func FilterByElevation(series domain.Series, site domain.Site, target domain.SkyPosition,
	start time.Time, threshold float64, oracle Oracle) (domain.Series, error) {
	out := make(domain.Series, 0, len(series))
	for _, s := range series {
		at := domain.OffsetToTime(start, s.DayOffset)
		elev, err := oracle.Elevation(site, at, target)
		if err != nil {
			return nil, domain.StageError("elevation", at, -1, err)
		}
		if elev > threshold {
			s.Elevation = elev
			s.HasElev = true
			out = append(out, s)
		}
	}
	return out, nil
}
