package main

import (
	"math"

	"stickspin/internal/spin"
)

// Slice boundaries drawn as spokes, in degrees counter-clockwise from +x.
var spokeAngles = []float64{
	spin.BoundaryTop,
	spin.BoundaryTopRight,
	spin.BoundaryBottomRight,
	spin.BoundaryBottom,
	spin.BoundaryBottomLeft,
	spin.BoundaryTopLeft,
	spin.BoundaryLeft,
}

// sliceMid is the angle in the middle of each slice.
var sliceMid = map[spin.Slice]float64{
	spin.Slice1: 60,
	spin.Slice2: 0,
	spin.Slice3: -60,
	spin.Slice4: -120,
	spin.Slice5: -165,
	spin.Slice6: 120,
}

// polar returns the screen point at radius r and angle deg around (cx, cy).
// Screen y grows downward, so positive angles move up.
func polar(cx, cy, r, deg float64) (float64, float64) {
	rad := deg * math.Pi / 180
	return cx + r*math.Cos(rad), cy - r*math.Sin(rad)
}

// stickPoint maps a sample onto the wheel of radius r.
func stickPoint(cx, cy, r float64, s spin.Sample) (float64, float64) {
	x, y := s.X, s.Y
	if m := s.Magnitude(); m > 1 {
		x, y = x/m, y/m
	}
	return cx + r*x, cy - r*y
}
