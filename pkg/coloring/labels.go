package coloring

import (
	"fmt"

	"tractseg/internal/models"
)

// Background is the colour of points that fall on unlabelled voxels
var Background = models.RGB{0, 0, 0}

// LabelPoints returns the segment label under every point of the bundle, in
// streamline order. World coordinates are mapped to voxel space with the
// inverse of the label volume's affine.
func LabelPoints(bundle *models.Bundle, labels *models.LabelVolume) ([]int, error) {
	inv, err := labels.Affine.Inverse()
	if err != nil {
		return nil, err
	}
	return LabelVoxelPoints(bundle.Transform(inv).Points(), labels)
}

// LabelVoxelPoints returns the label under every point already expressed in
// voxel coordinates. A point that rounds to a voxel outside the volume fails
// with a *models.LookupMissError.
func LabelVoxelPoints(points []models.Point, labels *models.LabelVolume) ([]int, error) {
	out := make([]int, len(points))
	for i, p := range points {
		x, y, z, err := labels.Voxel(p)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out[i] = labels.Labels[labels.Index(x, y, z)]
	}
	return out, nil
}

// ColorPoints turns point labels into colours. Label 0 is always Background;
// label l uses table.Color(l-1).
func ColorPoints(labels []int, table ColorTable) ([]models.RGB, error) {
	out := make([]models.RGB, len(labels))
	for i, lbl := range labels {
		if lbl == 0 {
			out[i] = Background
			continue
		}
		if table == nil {
			return nil, fmt.Errorf("%w: label %d at point %d but no colour table", models.ErrInput, lbl, i)
		}
		c, ok := table.Color(lbl - 1)
		if !ok {
			return nil, fmt.Errorf("%w: label %d at point %d has no colour (table holds %d)",
				models.ErrInput, lbl, i, table.Len())
		}
		out[i] = c
	}
	return out, nil
}

// ColorIndices colours zero-based indices, such as nearest-centroid assignments
func ColorIndices(indices []int, table ColorTable) ([]models.RGB, error) {
	out := make([]models.RGB, len(indices))
	for i, idx := range indices {
		c, ok := table.Color(idx)
		if !ok {
			return nil, fmt.Errorf("%w: index %d at point %d has no colour (table holds %d)",
				models.ErrInput, idx, i, table.Len())
		}
		out[i] = c
	}
	return out, nil
}

// DirectionColors colours every point by the absolute components of the
// unit tangent at that point. The first point of a streamline reuses the
// tangent of its first step. Zero-length steps and single-point streamlines
// are black.
func DirectionColors(bundle *models.Bundle) []models.RGB {
	out := make([]models.RGB, 0, bundle.NumPoints())
	for _, s := range bundle.Streamlines {
		for i := range s {
			j := i
			if j == 0 {
				j = 1
			}
			if j >= len(s) {
				out = append(out, Background)
				continue
			}
			d := s[j].Sub(s[j-1])
			if d.Norm2() == 0 {
				out = append(out, Background)
				continue
			}
			d = d.Normalize().Abs()
			out = append(out, models.RGB{d.X, d.Y, d.Z})
		}
	}
	return out
}

// SingleColor paints every point of the bundle with c
func SingleColor(bundle *models.Bundle, c models.RGB) []models.RGB {
	out := make([]models.RGB, bundle.NumPoints())
	for i := range out {
		out[i] = c
	}
	return out
}
