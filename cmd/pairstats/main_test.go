package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLengthStats(t *testing.T) {
	mean, std, lo, hi := lengthStats([]float64{12})
	assert.Equal(t, 12.0, mean)
	// a single sample must not report NaN
	assert.Zero(t, std)
	assert.Equal(t, 12.0, lo)
	assert.Equal(t, 12.0, hi)

	mean, std, lo, hi = lengthStats([]float64{10, 20, 30})
	assert.InDelta(t, 20.0, mean, 1e-12)
	assert.InDelta(t, 10.0, std, 1e-12)
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 30.0, hi)
}
