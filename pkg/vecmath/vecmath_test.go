package vecmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid(nil))
	assert.False(t, IsValid([]float64{}))
	assert.False(t, IsValid([]float64{1, math.NaN()}))
	assert.False(t, IsValid([]float64{1, math.Inf(1)}))
	assert.True(t, IsValid([]float64{1, 2, 3}))
}

func TestCosineIdentity(t *testing.T) {
	u := []float64{1, 2, 3}
	sim, err := Cosine(u, u)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineRange(t *testing.T) {
	u := []float64{1, 0}
	v := []float64{-1, 0}
	sim, err := Cosine(u, v)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestCosineZeroMagnitude(t *testing.T) {
	sim, err := Cosine([]float64{0, 0}, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNormaliseUnitLength(t *testing.T) {
	n := Normalise([]float64{3, 4})
	assert.InDelta(t, 1.0, Magnitude(n), 1e-9)
}

func TestNormaliseZeroVector(t *testing.T) {
	n := Normalise([]float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, n)
}
