package transparency

import (
	"math/rand/v2"
	"sync"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

const (
	coverageGrid = 64
	maxClouds    = 512
)

// CloudGenerator produces a cloud field for one hour of sky.
type CloudGenerator interface {
	Generate(coveragePercent float64) []domain.Cloud
}

// RandomCloudGenerator scatters rectangular clouds over a region of sky
// until their union covers the requested share of it. Output is fully
// determined by the seed and the sequence of calls.
type RandomCloudGenerator struct {
	region    domain.Rect
	cloudSize float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomCloudGenerator creates a generator over region whose clouds have
// a typical side of cloudSize degrees.
func NewRandomCloudGenerator(region domain.Rect, cloudSize float64, seed int64) *RandomCloudGenerator {
	return &RandomCloudGenerator{
		region:    region,
		cloudSize: cloudSize,
		rng:       rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Region returns the sky area the generator covers.
func (g *RandomCloudGenerator) Region() domain.Rect { return g.region }

// Generate returns clouds whose union covers at least coveragePercent of
// the region, measured on a coverageGrid x coverageGrid lattice, or
// maxClouds clouds if that comes first.
func (g *RandomCloudGenerator) Generate(coveragePercent float64) []domain.Cloud {
	target := coveragePercent / 100
	if target <= 0 {
		return nil
	}
	if target >= 1 {
		return []domain.Cloud{g.region}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.region.RAMax - g.region.RAMin
	h := g.region.DecMax - g.region.DecMin
	cellW := w / coverageGrid
	cellH := h / coverageGrid

	var covered [coverageGrid][coverageGrid]bool
	count := 0
	need := int(target*coverageGrid*coverageGrid + 0.5)

	var clouds []domain.Cloud
	for count < need && len(clouds) < maxClouds {
		cw := g.cloudSize * (0.5 + g.rng.Float64())
		ch := g.cloudSize * (0.5 + g.rng.Float64())
		cx := g.region.RAMin + g.rng.Float64()*w
		cy := g.region.DecMin + g.rng.Float64()*h
		c := domain.Cloud{RAMin: cx - cw/2, DecMin: cy - ch/2, RAMax: cx + cw/2, DecMax: cy + ch/2}
		clouds = append(clouds, c)

		for i := 0; i < coverageGrid; i++ {
			ra := g.region.RAMin + (float64(i)+0.5)*cellW
			if ra < c.RAMin || ra > c.RAMax {
				continue
			}
			for j := 0; j < coverageGrid; j++ {
				dec := g.region.DecMin + (float64(j)+0.5)*cellH
				if covered[i][j] || dec < c.DecMin || dec > c.DecMax {
					continue
				}
				covered[i][j] = true
				count++
			}
		}
	}
	return clouds
}

// CoveredFraction measures the share of region inside at least one cloud on
// the generator's lattice.
func CoveredFraction(region domain.Rect, clouds []domain.Cloud) float64 {
	cellW := (region.RAMax - region.RAMin) / coverageGrid
	cellH := (region.DecMax - region.DecMin) / coverageGrid
	count := 0
	for i := 0; i < coverageGrid; i++ {
		for j := 0; j < coverageGrid; j++ {
			p := domain.SkyPosition{
				RA:  region.RAMin + (float64(i)+0.5)*cellW,
				Dec: region.DecMin + (float64(j)+0.5)*cellH,
			}
			if domain.CoveredBy(p, clouds) {
				count++
			}
		}
	}
	return float64(count) / (coverageGrid * coverageGrid)
}
