package models

import (
	"fmt"
	"math"
)

// Grid describes the voxel lattice shared by volumes of the same reference image.
// Voxel data is stored row-major as a 1D array: idx = z*Width*Height + y*Width + x.
type Grid struct {
	// Width, Height and Depth are the dimensions in voxels along x, y and z
	Width  int
	Height int
	Depth  int

	// Affine maps voxel indices to world coordinates
	Affine Affine
}

// Len returns the number of voxels in the grid
func (g Grid) Len() int { return g.Width * g.Height * g.Depth }

// Contains reports whether the voxel lies inside the grid
func (g Grid) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.Width && y < g.Height && z < g.Depth
}

// Index returns the linear index of a voxel. The voxel must be inside the grid.
func (g Grid) Index(x, y, z int) int {
	return z*g.Width*g.Height + y*g.Width + x
}

// Coords returns the voxel coordinates of a linear index
func (g Grid) Coords(idx int) (x, y, z int) {
	plane := g.Width * g.Height
	z = idx / plane
	rem := idx % plane
	return rem % g.Width, rem / g.Width, z
}

// Center returns the voxel coordinates of a linear index as a point
func (g Grid) Center(idx int) Point {
	x, y, z := g.Coords(idx)
	return Point{X: float64(x), Y: float64(y), Z: float64(z)}
}

// SameShape reports whether two grids have identical dimensions
func (g Grid) SameShape(o Grid) bool {
	return g.Width == o.Width && g.Height == o.Height && g.Depth == o.Depth
}

// Validate checks that the grid has positive dimensions
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.Depth <= 0 {
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%dx%d",
			ErrInput, g.Width, g.Height, g.Depth)
	}
	return nil
}

// Voxel rounds a voxel-space point to the nearest voxel and checks it against the grid.
// A point outside the grid yields a *LookupMissError.
func (g Grid) Voxel(p Point) (x, y, z int, err error) {
	x = int(math.Round(p.X))
	y = int(math.Round(p.Y))
	z = int(math.Round(p.Z))
	if !g.Contains(x, y, z) {
		return x, y, z, &LookupMissError{
			Point:  p,
			Voxel:  [3]int{x, y, z},
			Width:  g.Width,
			Height: g.Height,
			Depth:  g.Depth,
		}
	}
	return x, y, z, nil
}

// Volume is a scalar image on a grid, typically a bundle mask
type Volume struct {
	Grid

	// Data holds one value per voxel; nonzero means on-bundle for masks
	Data []float64
}

// NewVolume allocates a zero-filled volume on the grid
func NewVolume(g Grid) *Volume {
	return &Volume{Grid: g, Data: make([]float64, g.Len())}
}

// At returns the value of a voxel and whether the voxel is inside the volume
func (v *Volume) At(x, y, z int) (float64, bool) {
	if !v.Contains(x, y, z) {
		return 0, false
	}
	return v.Data[v.Index(x, y, z)], true
}

// Set writes a voxel value, ignoring voxels outside the volume
func (v *Volume) Set(x, y, z int, value float64) bool {
	if !v.Contains(x, y, z) {
		return false
	}
	v.Data[v.Index(x, y, z)] = value
	return true
}

// Count returns the number of nonzero voxels
func (v *Volume) Count() int {
	n := 0
	for _, val := range v.Data {
		if val != 0 {
			n++
		}
	}
	return n
}

// LabelVolume holds one segment label per voxel: 0 is background,
// 1..N+1 identifies a segment.
type LabelVolume struct {
	Grid

	// Labels holds one label per voxel
	Labels []int
}

// NewLabelVolume allocates an all-background label volume on the grid
func NewLabelVolume(g Grid) *LabelVolume {
	return &LabelVolume{Grid: g, Labels: make([]int, g.Len())}
}

// Label returns the label of a voxel and whether the voxel is inside the volume
func (l *LabelVolume) Label(x, y, z int) (int, bool) {
	if !l.Contains(x, y, z) {
		return 0, false
	}
	return l.Labels[l.Index(x, y, z)], true
}

// Histogram counts voxels per label; index 0 is background
func (l *LabelVolume) Histogram(maxLabel int) []int {
	counts := make([]int, maxLabel+1)
	for _, lbl := range l.Labels {
		if lbl >= 0 && lbl <= maxLabel {
			counts[lbl]++
		}
	}
	return counts
}
