package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustment_Apply(t *testing.T) {
	sample := Sample{DayOffset: 1.5, Luminosity: 1000}
	pos := SkyPosition{RA: 10, Dec: 10}
	cloudOverStar := Cloud{RAMin: 9, DecMin: 9, RAMax: 11, DecMax: 11}
	cloudElsewhere := Cloud{RAMin: 20, DecMin: 20, RAMax: 21, DecMax: 21}

	t.Run("drop", func(t *testing.T) {
		_, kept := DropAdjustment().Apply(pos, sample)
		assert.False(t, kept)
	})

	t.Run("clear", func(t *testing.T) {
		out, kept := ClearAdjustment().Apply(pos, sample)
		assert.True(t, kept)
		assert.Equal(t, sample, out)
	})

	t.Run("cloud over star", func(t *testing.T) {
		_, kept := CloudSetAdjustment([]Cloud{cloudOverStar}, 40, true).Apply(pos, sample)
		assert.False(t, kept)
	})

	t.Run("partial field attenuates", func(t *testing.T) {
		out, kept := CloudSetAdjustment([]Cloud{cloudElsewhere}, 40, true).Apply(pos, sample)
		assert.True(t, kept)
		assert.InDelta(t, 600.0, out.Luminosity, 1e-9)
	})

	t.Run("clouds missing field keep sample unchanged", func(t *testing.T) {
		out, kept := CloudSetAdjustment([]Cloud{cloudElsewhere}, 40, false).Apply(pos, sample)
		assert.True(t, kept)
		assert.Equal(t, sample, out)
	})
}

func TestTransmission_Bounds(t *testing.T) {
	for _, cc := range []float64{-10, 0, 12.5, 50, 80, 100, 130} {
		f := Transmission(cc)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
	assert.InDelta(t, 0.2, Transmission(80), 1e-12)
}

func TestCloudSetAdjustment_CopiesClouds(t *testing.T) {
	clouds := []Cloud{{RAMin: 1, DecMin: 1, RAMax: 2, DecMax: 2}}
	adj := CloudSetAdjustment(clouds, 10, true)
	clouds[0].RAMin = 100
	assert.Equal(t, 1.0, adj.Clouds[0].RAMin)
}
