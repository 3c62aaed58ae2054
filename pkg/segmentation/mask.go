package segmentation

import (
	"fmt"
	"math"

	"tractseg/internal/models"
)

// RasterizeMask marks every voxel of grid that contains a streamline point.
// Points are mapped to voxel space through the inverse of the grid affine
// and rounded; points outside the grid are ignored.
func RasterizeMask(bundle *models.Bundle, grid models.Grid) (*models.Volume, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	inv, err := grid.Affine.Inverse()
	if err != nil {
		return nil, err
	}
	mask := models.NewVolume(grid)
	for _, s := range bundle.Streamlines {
		for _, p := range s {
			x, y, z, err := grid.Voxel(inv.Apply(p))
			if err != nil {
				continue
			}
			mask.Data[grid.Index(x, y, z)] = 1
		}
	}
	return mask, nil
}

// DensityMask is the binary density map of the bundle. Streamlines are
// subsegmented to steps of at most a quarter voxel along x, then rasterized.
func DensityMask(bundle *models.Bundle, grid models.Grid) (*models.Volume, error) {
	maxStep := math.Abs(grid.Affine[0][0]) / 4
	dense := &models.Bundle{
		Streamlines: make([]models.Streamline, len(bundle.Streamlines)),
		Affine:      bundle.Affine,
	}
	for i, s := range bundle.Streamlines {
		dense.Streamlines[i] = s.Subsegment(maxStep)
	}
	return RasterizeMask(dense, grid)
}

// BuildMask picks the raster mask when the bundle shares the grid's affine
// and the density mask otherwise
func BuildMask(bundle *models.Bundle, grid models.Grid) (*models.Volume, error) {
	if bundle.Affine.Equal(grid.Affine, 1e-9) {
		return RasterizeMask(bundle, grid)
	}
	return DensityMask(bundle, grid)
}

// BoundingGrid returns a grid in the bundle's voxel frame that covers every
// point with padding voxels on each side. The grid affine is the bundle
// affine shifted to the lower corner.
func BoundingGrid(bundle *models.Bundle, padding int) (models.Grid, error) {
	if bundle.NumPoints() == 0 {
		return models.Grid{}, fmt.Errorf("%w: no points to bound", models.ErrInput)
	}
	inv, err := bundle.Affine.Inverse()
	if err != nil {
		return models.Grid{}, err
	}
	lo := models.Point{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := models.Point{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, s := range bundle.Streamlines {
		for _, p := range s {
			v := inv.Apply(p)
			lo = models.Point{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
			hi = models.Point{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
		}
	}
	pad := float64(padding)
	corner := models.Point{
		X: math.Floor(lo.X) - pad,
		Y: math.Floor(lo.Y) - pad,
		Z: math.Floor(lo.Z) - pad,
	}
	aff := bundle.Affine
	origin := bundle.Affine.Apply(corner)
	aff[0][3], aff[1][3], aff[2][3] = origin.X, origin.Y, origin.Z
	return models.Grid{
		Width:  int(math.Ceil(hi.X)+pad-corner.X) + 1,
		Height: int(math.Ceil(hi.Y)+pad-corner.Y) + 1,
		Depth:  int(math.Ceil(hi.Z)+pad-corner.Z) + 1,
		Affine: aff,
	}, nil
}
