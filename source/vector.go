package source

import (
	"math"

	"github.com/hupe1980/vecgo/distance"
)

// normFloor keeps dead features from dividing by zero.
const normFloor = 1e-8

// NormalizeVector scales v to unit length in place.
// Norms below 1e-8 are clamped to 1e-8, so a zero vector stays zero.
func NormalizeVector(v []float32) {
	if len(v) == 0 {
		return
	}
	norm := math.Sqrt(float64(distance.Dot(v, v)))
	inv := float32(1 / max(norm, normFloor))
	for i := range v {
		v[i] *= inv
	}
}

// NormalizeSet normalizes every vector of a set in place.
func NormalizeSet(vectors [][]float32) {
	for _, v := range vectors {
		NormalizeVector(v)
	}
}
