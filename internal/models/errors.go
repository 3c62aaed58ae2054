package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks malformed input: empty bundles, degenerate centroids,
	// bad or singular affines, mismatched grids.
	ErrInput = errors.New("invalid input")

	// ErrNumericDegeneracy marks a computation that cannot proceed numerically,
	// such as a zero-length plane normal or an empty set after filtering.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")

	// ErrLookupMiss marks a point that maps outside the reference volume
	ErrLookupMiss = errors.New("voxel lookup miss")
)

// LookupMissError reports a point whose rounded voxel lies outside the grid
type LookupMissError struct {
	Point  Point
	Voxel  [3]int
	Width  int
	Height int
	Depth  int
}

func (e *LookupMissError) Error() string {
	return fmt.Sprintf("voxel lookup miss: point (%.3f, %.3f, %.3f) maps to voxel %v outside %dx%dx%d",
		e.Point.X, e.Point.Y, e.Point.Z, e.Voxel, e.Width, e.Height, e.Depth)
}

// Unwrap lets errors.Is match ErrLookupMiss
func (e *LookupMissError) Unwrap() error { return ErrLookupMiss }
