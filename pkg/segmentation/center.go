package segmentation

import (
	"fmt"
	"math"

	"tractseg/internal/models"
	"tractseg/pkg/centroid"
)

// AssignToCentroid labels every point of the bundle with the index of the
// nearest point on the bundle centroid resampled to numDisks points. It is
// the cheap alternative to full segmentation: no mask, no alignment.
// The result has one entry per bundle point, in streamline order.
func AssignToCentroid(bundle *models.Bundle, numDisks int) ([]int, error) {
	if numDisks < 2 {
		return nil, fmt.Errorf("%w: need at least 2 disks, got %d", models.ErrInput, numDisks)
	}
	centroids, err := centroid.Extract(bundle, numDisks, math.Inf(1), 0)
	if err != nil {
		return nil, err
	}

	index := newPointIndex(centroids)
	points := bundle.Points()
	assignment := make([]int, len(points))
	for i, p := range points {
		nearest, ok := index.nearest(p)
		if !ok {
			return nil, fmt.Errorf("%w: empty centroid index", models.ErrNumericDegeneracy)
		}
		assignment[i] = nearest.index
	}
	return assignment, nil
}
