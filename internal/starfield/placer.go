// Package starfield scatters simulated stars over the telescope's field of view.
package starfield

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// DefaultMaxAttempts bounds the rejection sampling for one star.
const DefaultMaxAttempts = 10000

// Placer draws star positions uniformly over the disc inscribed in the field
// of view, rejecting positions closer than the minimum separation to a star
// already placed.
type Placer struct {
	center      domain.SkyPosition
	radius      float64
	minSep      float64
	maxAttempts int
	rng         *rand.Rand
}

// NewPlacer creates a Placer for a field of full width fov degrees.
func NewPlacer(center domain.SkyPosition, fov, minSeparation float64, seed int64) *Placer {
	return &Placer{
		center:      center,
		radius:      fov / 2,
		minSep:      minSeparation,
		maxAttempts: DefaultMaxAttempts,
		rng:         rand.New(rand.NewPCG(uint64(seed), 0x5eed)),
	}
}

// Place assigns a position to every curve, in order, and returns the stars.
func (p *Placer) Place(curves []domain.LightCurve) ([]*domain.Star, error) {
	stars := make([]*domain.Star, 0, len(curves))
	for _, c := range curves {
		pos, err := p.next(stars)
		if err != nil {
			return nil, fmt.Errorf("place star %s: %w", c.Name, err)
		}
		stars = append(stars, domain.NewStar(c.Name, pos, c.Samples))
	}
	return stars, nil
}

func (p *Placer) next(placed []*domain.Star) (domain.SkyPosition, error) {
	for range p.maxAttempts {
		r := math.Sqrt(p.rng.Float64() * p.radius * p.radius)
		az := p.rng.Float64() * 2 * math.Pi
		pos := domain.SkyPosition{
			RA:  p.center.RA + r*math.Cos(az),
			Dec: p.center.Dec + r*math.Sin(az),
		}
		if p.clear(pos, placed) {
			return pos, nil
		}
	}
	return domain.SkyPosition{}, fmt.Errorf("no position %g deg from %d stars after %d attempts",
		p.minSep, len(placed), p.maxAttempts)
}

func (p *Placer) clear(pos domain.SkyPosition, placed []*domain.Star) bool {
	for _, s := range placed {
		if math.Hypot(s.Position.RA-pos.RA, s.Position.Dec-pos.Dec) < p.minSep {
			return false
		}
	}
	return true
}
