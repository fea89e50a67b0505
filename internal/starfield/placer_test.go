package starfield

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

func curves(n int) []domain.LightCurve {
	out := make([]domain.LightCurve, n)
	for i := range out {
		out[i] = domain.LightCurve{
			Name:    string(rune('a' + i)),
			Samples: domain.Series{{DayOffset: 0, Luminosity: float64(i)}},
		}
	}
	return out
}

func TestPlacer_InsideFieldAndSeparated(t *testing.T) {
	center := domain.SkyPosition{RA: 150, Dec: 30}
	p := NewPlacer(center, 1.85, 0.05, 3)

	stars, err := p.Place(curves(20))
	require.NoError(t, err)
	require.Len(t, stars, 20)

	fov := domain.FieldOfView(center, 1.85)
	for i, s := range stars {
		assert.True(t, fov.ContainsPoint(s.Position), "star %s outside field", s.Name)
		assert.LessOrEqual(t, math.Hypot(s.Position.RA-150, s.Position.Dec-30), 1.85/2+1e-12)
		assert.Equal(t, s.Raw, s.Original)
		for _, o := range stars[:i] {
			assert.GreaterOrEqual(t, math.Hypot(s.Position.RA-o.Position.RA, s.Position.Dec-o.Position.Dec), 0.05)
		}
	}
}

func TestPlacer_Deterministic(t *testing.T) {
	center := domain.SkyPosition{RA: 10, Dec: -5}
	a, err := NewPlacer(center, 2, 0.01, 99).Place(curves(5))
	require.NoError(t, err)
	b, err := NewPlacer(center, 2, 0.01, 99).Place(curves(5))
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].Position, b[i].Position)
		assert.Equal(t, a[i].Name, b[i].Name)
	}
}

func TestPlacer_GivesUp(t *testing.T) {
	p := NewPlacer(domain.SkyPosition{}, 0.1, 1, 1)
	p.maxAttempts = 50

	_, err := p.Place(curves(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "place star b")
}
