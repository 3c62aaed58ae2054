package models

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
)

// Point is a 3D coordinate, either in world space (mm) or in voxel index space
type Point = r3.Vector

// RGB is a colour with every component in [0, 1]
type RGB [3]float64

// Streamline is an ordered sequence of points along one traced fiber.
// Streamlines are treated as immutable: every helper returns a new slice.
type Streamline []Point

// CorrespondenceSet holds the control points matched between a model
// centroid and one subject centroid. A set built for N segments has N+1 points.
type CorrespondenceSet = Streamline

// Length returns the arc length of the polyline
func (s Streamline) Length() float64 {
	var total float64
	for i := 1; i < len(s); i++ {
		total += s[i].Distance(s[i-1])
	}
	return total
}

// Reversed returns a copy of the streamline with the point order reversed
func (s Streamline) Reversed() Streamline {
	out := make(Streamline, len(s))
	for i, p := range s {
		out[len(s)-1-i] = p
	}
	return out
}

// Clone returns a copy of the streamline
func (s Streamline) Clone() Streamline {
	out := make(Streamline, len(s))
	copy(out, s)
	return out
}

// Resample returns n points spaced uniformly along the arc length of s.
// The first and last points are preserved. A streamline of zero length
// resamples to n copies of its first point.
func (s Streamline) Resample(n int) Streamline {
	if n <= 0 || len(s) == 0 {
		return nil
	}
	out := make(Streamline, n)
	if n == 1 {
		out[0] = s[0]
		return out
	}

	// Cumulative arc length at every input point
	cumulative := make([]float64, len(s))
	for i := 1; i < len(s); i++ {
		cumulative[i] = cumulative[i-1] + s[i].Distance(s[i-1])
	}
	total := cumulative[len(cumulative)-1]
	if total == 0 {
		for i := range out {
			out[i] = s[0]
		}
		return out
	}

	targets := floats.Span(make([]float64, n), 0, total)
	seg := 1
	for i, t := range targets {
		for seg < len(s)-1 && cumulative[seg] < t {
			seg++
		}
		span := cumulative[seg] - cumulative[seg-1]
		if span == 0 {
			out[i] = s[seg]
			continue
		}
		frac := (t - cumulative[seg-1]) / span
		out[i] = Lerp(s[seg-1], s[seg], frac)
	}
	out[0] = s[0]
	out[n-1] = s[len(s)-1]
	return out
}

// Subsegment inserts points so that no step along the streamline is longer
// than maxStep. Original points are kept.
func (s Streamline) Subsegment(maxStep float64) Streamline {
	if len(s) < 2 || maxStep <= 0 {
		return s.Clone()
	}
	out := Streamline{s[0]}
	for i := 1; i < len(s); i++ {
		d := s[i].Distance(s[i-1])
		steps := int(d/maxStep) + 1
		for k := 1; k <= steps; k++ {
			out = append(out, Lerp(s[i-1], s[i], float64(k)/float64(steps)))
		}
	}
	return out
}

// Linspace returns n points evenly spaced on the segment from a to b,
// both endpoints included.
func Linspace(a, b Point, n int) []Point {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []Point{a}
	}
	ts := floats.Span(make([]float64, n), 0, 1)
	out := make([]Point, n)
	for i, t := range ts {
		out[i] = Lerp(a, b, t)
	}
	out[n-1] = b
	return out
}

// Lerp interpolates linearly between a and b
func Lerp(a, b Point, t float64) Point {
	return a.Add(b.Sub(a).Mul(t))
}

// Bundle is an ordered collection of streamlines sharing one coordinate frame
type Bundle struct {
	// Streamlines in index order
	Streamlines []Streamline

	// Affine maps voxel indices of the bundle's reference image to world coordinates
	Affine Affine

	// Group and Subgroup are optional labels used when bundles come from a grouped study
	Group    string
	Subgroup string
}

// NewBundle creates a bundle from streamlines and an affine
func NewBundle(streamlines []Streamline, affine Affine) *Bundle {
	return &Bundle{Streamlines: streamlines, Affine: affine}
}

// Len returns the number of streamlines
func (b *Bundle) Len() int { return len(b.Streamlines) }

// NumPoints returns the total number of points across all streamlines
func (b *Bundle) NumPoints() int {
	n := 0
	for _, s := range b.Streamlines {
		n += len(s)
	}
	return n
}

// Points returns every point of the bundle, streamline by streamline
func (b *Bundle) Points() []Point {
	pts := make([]Point, 0, b.NumPoints())
	for _, s := range b.Streamlines {
		pts = append(pts, s...)
	}
	return pts
}

// Transform returns a new bundle whose points are mapped through aff.
// The returned bundle keeps the receiver's affine and group labels.
func (b *Bundle) Transform(aff Affine) *Bundle {
	out := &Bundle{
		Streamlines: make([]Streamline, len(b.Streamlines)),
		Affine:      b.Affine,
		Group:       b.Group,
		Subgroup:    b.Subgroup,
	}
	for i, s := range b.Streamlines {
		mapped := make(Streamline, len(s))
		for j, p := range s {
			mapped[j] = aff.Apply(p)
		}
		out.Streamlines[i] = mapped
	}
	return out
}
