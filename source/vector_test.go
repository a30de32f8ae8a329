package source

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{"unit already", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"three four", []float32{3, 4}, []float32{0.6, 0.8}},
		{"negative", []float32{0, -2}, []float32{0, -1}},
		{"zero stays zero", []float32{0, 0, 0}, []float32{0, 0, 0}},
		{"empty", []float32{}, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NormalizeVector(tt.in)
			assert.InDeltaSlice(t, tt.want, tt.in, 1e-6)
		})
	}
}

func TestNormalizeVector_BelowFloor(t *testing.T) {
	// Norms under the floor are divided by the floor, not brought to unit length.
	v := []float32{1e-9, 0}
	NormalizeVector(v)
	assert.InDelta(t, 0.1, v[0], 1e-6)
}

func TestNormalizeSet(t *testing.T) {
	vectors := [][]float32{{2, 0}, {1, 1}}
	NormalizeSet(vectors)
	for _, v := range vectors {
		norm := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1]))
		assert.InDelta(t, 1.0, norm, 1e-6)
	}
}
