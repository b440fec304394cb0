// Package spin recognises a full rotation of an analog stick.
//
// The stick circle is cut into six fixed slices. An attempt starts when the
// stick enters slice 1 and completes once slices 1 through 6 have been visited
// in ascending order before the timeout expires.
package spin

import (
	"math"
	"strconv"
)

// Slice identifies one of the six angular sectors of the stick circle.
// The zero value is SliceNone (unclassifiable angle).
type Slice int

const (
	SliceNone Slice = iota
	Slice1          // top right
	Slice2          // mid right
	Slice3          // bottom right
	Slice4          // bottom left
	Slice5          // mid left
	Slice6          // top left
)

// SliceCount is the number of slices that make up one full rotation.
const SliceCount = 6

// Slice boundaries in degrees, counter-clockwise from +x.
//
// These are the literal comparison points used by Classify. The table leaves
// (150, 180] uncovered; angles there classify as SliceNone.
const (
	BoundaryTop         = 90.0
	BoundaryTopRight    = 30.0
	BoundaryBottomRight = -30.0
	BoundaryBottom      = -90.0
	BoundaryBottomLeft  = -150.0
	BoundaryTopLeft     = 150.0
	BoundaryLeft        = -180.0
)

// Classify maps an angle in degrees to its slice. First match wins:
//
//	[30, 90]     -> 1
//	[-30, 30)    -> 2
//	[-90, -30)   -> 3
//	[-150, -90)  -> 4
//	[-180, -150) -> 5
//	(90, 150]    -> 6
//
// Anything else, NaN included, is SliceNone.
func Classify(deg float64) Slice {
	switch {
	case deg >= BoundaryTopRight && deg <= BoundaryTop:
		return Slice1
	case deg >= BoundaryBottomRight && deg < BoundaryTopRight:
		return Slice2
	case deg >= BoundaryBottom && deg < BoundaryBottomRight:
		return Slice3
	case deg >= BoundaryBottomLeft && deg < BoundaryBottom:
		return Slice4
	case deg >= BoundaryLeft && deg < BoundaryBottomLeft:
		return Slice5
	case deg > BoundaryTop && deg <= BoundaryTopLeft:
		return Slice6
	default:
		return SliceNone
	}
}

// Valid reports whether s is one of the six real slices.
func (s Slice) Valid() bool {
	return s >= Slice1 && s <= Slice6
}

func (s Slice) String() string {
	if !s.Valid() {
		return "none"
	}
	return strconv.Itoa(int(s))
}

// Sample is an instantaneous stick displacement. Both axes are expected in
// [-1, 1] with +y pointing up.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Magnitude returns the length of the displacement vector.
func (s Sample) Magnitude() float64 {
	return math.Hypot(s.X, s.Y)
}

// Angle returns atan2(y, x) in degrees, range [-180, 180].
func (s Sample) Angle() float64 {
	return math.Atan2(s.Y, s.X) * 180 / math.Pi
}

// Slice classifies the sample's angle. Magnitude is not considered.
func (s Sample) Slice() Slice {
	return Classify(s.Angle())
}

// SampleAt builds a sample of the given magnitude pointing at deg degrees.
func SampleAt(deg, magnitude float64) Sample {
	rad := deg * math.Pi / 180
	return Sample{X: magnitude * math.Cos(rad), Y: magnitude * math.Sin(rad)}
}
