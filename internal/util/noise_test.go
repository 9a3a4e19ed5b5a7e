package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoiseDeterministicAndBounded(t *testing.T) {
	a, b := NewNoise(7), NewNoise(7)
	assert.Equal(t, int64(7), a.Seed())
	for i := 0; i < 50; i++ {
		x, y := float64(i)*0.13, float64(i)*0.07
		v := a.Noise2D(x, y)
		assert.Equal(t, v, b.Noise2D(x, y))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
