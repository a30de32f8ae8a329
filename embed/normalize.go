package embed

import (
	"math"

	"github.com/poiesic/horus/core"
)

// PositionExtent is the half-width of the cube normalized positions fit in.
const PositionExtent = 50

// NormalizePositions centers positions on their mean and scales them so the
// largest absolute coordinate is PositionExtent. Degenerate layouts where
// every position coincides are left at the origin.
func NormalizePositions(positions core.PositionSet) {
	if len(positions) == 0 {
		return
	}

	var mean [3]float64
	for _, p := range positions {
		for axis := range 3 {
			mean[axis] += float64(p[axis])
		}
	}
	for axis := range 3 {
		mean[axis] /= float64(len(positions))
	}

	var maxAbs float64
	for i := range positions {
		for axis := range 3 {
			v := float64(positions[i][axis]) - mean[axis]
			positions[i][axis] = float32(v)
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}

	if maxAbs == 0 {
		return
	}
	scale := PositionExtent / maxAbs
	for i := range positions {
		for axis := range 3 {
			positions[i][axis] = float32(float64(positions[i][axis]) * scale)
		}
	}
}
