package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine is a 4x4 homogeneous transform. By convention it maps voxel index
// coordinates to world coordinates; its inverse maps world to voxel space.
type Affine [4][4]float64

// Identity returns the identity transform
func Identity() Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		a[i][i] = 1
	}
	return a
}

// NewAffine builds an affine from 16 row-major values
func NewAffine(values []float64) (Affine, error) {
	var a Affine
	if len(values) != 16 {
		return a, fmt.Errorf("%w: affine needs 16 values, got %d", ErrInput, len(values))
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = values[i*4+j]
		}
	}
	return a, nil
}

// Scaling returns a diagonal affine with voxel sizes sx, sy, sz and the given origin
func Scaling(sx, sy, sz float64, origin Point) Affine {
	a := Identity()
	a[0][0], a[1][1], a[2][2] = sx, sy, sz
	a[0][3], a[1][3], a[2][3] = origin.X, origin.Y, origin.Z
	return a
}

// Values returns the 16 row-major entries of the affine
func (a Affine) Values() []float64 {
	out := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		out = append(out, a[i][:]...)
	}
	return out
}

// Apply maps a point through the affine
func (a Affine) Apply(p Point) Point {
	return Point{
		X: a[0][0]*p.X + a[0][1]*p.Y + a[0][2]*p.Z + a[0][3],
		Y: a[1][0]*p.X + a[1][1]*p.Y + a[1][2]*p.Z + a[1][3],
		Z: a[2][0]*p.X + a[2][1]*p.Y + a[2][2]*p.Z + a[2][3],
	}
}

// Inverse returns the inverse transform. A singular matrix is an input error.
func (a Affine) Inverse() (Affine, error) {
	var out Affine
	m := mat.NewDense(4, 4, a.Values())
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return out, fmt.Errorf("%w: affine is not invertible: %v", ErrInput, err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = inv.At(i, j)
		}
	}
	return out, nil
}

// Equal reports whether every entry of a and b differs by at most tol
func (a Affine) Equal(b Affine, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(a[i][j]-b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}
