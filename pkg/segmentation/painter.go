package segmentation

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"tractseg/internal/models"
)

// Segments holds one voxel set per along-length segment of a bundle mask.
// Voxels are stored as linear indices of Grid.
type Segments struct {
	// Grid is the voxel lattice the indices refer to
	Grid models.Grid

	// Bitmaps[s] holds the voxels of segment s; after Paint they are pairwise disjoint
	Bitmaps []*roaring.Bitmap

	// Votes is the union of every voxel that received at least one vote
	Votes *roaring.Bitmap

	// Conflicts counts voxels claimed by more than one segment and reassigned
	Conflicts int
}

// Paint splits the on-bundle voxels of mask into numSegments+1 segments
// using the control points of every correspondence set.
//
// With control points P0..PN and normals n_i = P_{i+1} - P_i, segment 0 lies
// behind the plane through P0, segment s (1 <= s < N) lies between the planes
// through P_{s-1} and P_s, and segment N lies beyond the plane through
// P_{N-1}. Segment N-1 is therefore bounded by two planes like every inner
// segment, unlike the single half-space rule that would let it reach past
// P_{N-1}; the voxels it would have shared with segment N are settled by the
// nearest-point pass below.
//
// Votes from all sets are merged. A voxel claimed by more than one segment is
// given to the segment of the nearest control point over all sets; control
// point j belongs to segment j.
func Paint(mask *models.Volume, sets []models.CorrespondenceSet, numSegments int) (*Segments, error) {
	if mask == nil {
		return nil, fmt.Errorf("%w: no bundle mask", models.ErrInput)
	}
	if numSegments < 1 {
		return nil, fmt.Errorf("%w: number of segments must be positive, got %d", models.ErrInput, numSegments)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: no correspondence sets to paint", models.ErrNumericDegeneracy)
	}
	for i, set := range sets {
		if len(set) != numSegments+1 {
			return nil, fmt.Errorf("%w: correspondence set %d has %d points, expected %d",
				models.ErrInput, i, len(set), numSegments+1)
		}
	}
	if len(mask.Data) != mask.Len() {
		return nil, fmt.Errorf("%w: mask holds %d values for a %dx%dx%d grid",
			models.ErrInput, len(mask.Data), mask.Width, mask.Height, mask.Depth)
	}

	segs := &Segments{
		Grid:    mask.Grid,
		Bitmaps: make([]*roaring.Bitmap, numSegments+1),
		Votes:   roaring.New(),
	}
	for i := range segs.Bitmaps {
		segs.Bitmaps[i] = roaring.New()
	}

	voxels := make([]uint32, 0, len(mask.Data)/8)
	for idx, v := range mask.Data {
		if v != 0 {
			voxels = append(voxels, uint32(idx))
		}
	}

	side := make([]float64, numSegments)
	for k, set := range sets {
		normals, err := planeNormals(set)
		if err != nil {
			return nil, fmt.Errorf("correspondence set %d: %w", k, err)
		}
		for _, idx := range voxels {
			v := mask.Center(int(idx))
			for i, n := range normals {
				side[i] = v.Sub(set[i]).Dot(n)
			}
			if side[0] <= 0 {
				segs.Bitmaps[0].Add(idx)
			}
			for s := 1; s < numSegments; s++ {
				if side[s-1] >= 0 && side[s] <= 0 {
					segs.Bitmaps[s].Add(idx)
				}
			}
			if side[numSegments-1] >= 0 {
				segs.Bitmaps[numSegments].Add(idx)
			}
		}
	}

	segs.resolveConflicts(sets)
	return segs, nil
}

// planeNormals returns P_{i+1} - P_i for every consecutive pair of control points
func planeNormals(set models.CorrespondenceSet) ([]models.Point, error) {
	normals := make([]models.Point, len(set)-1)
	for i := range normals {
		n := set[i+1].Sub(set[i])
		if n.Norm2() == 0 {
			return nil, fmt.Errorf("%w: control points %d and %d coincide, plane normal has zero length",
				models.ErrNumericDegeneracy, i, i+1)
		}
		normals[i] = n
	}
	return normals, nil
}

// resolveConflicts clears voxels claimed by two or more segments and gives
// each to the segment of its nearest control point
func (s *Segments) resolveConflicts(sets []models.CorrespondenceSet) {
	conflicts := roaring.New()
	for _, b := range s.Bitmaps {
		conflicts.Or(roaring.And(s.Votes, b))
		s.Votes.Or(b)
	}
	s.Conflicts = int(conflicts.GetCardinality())
	if s.Conflicts == 0 {
		return
	}

	for _, b := range s.Bitmaps {
		b.AndNot(conflicts)
	}

	index := newPointIndex(sets)

	it := conflicts.Iterator()
	for it.HasNext() {
		idx := it.Next()
		nearest, ok := index.nearest(s.Grid.Center(int(idx)))
		if !ok {
			continue
		}
		s.Bitmaps[nearest.index].Add(idx)
	}
}

// Count returns the number of voxels in segment s
func (s *Segments) Count(seg int) int {
	if seg < 0 || seg >= len(s.Bitmaps) {
		return 0
	}
	return int(s.Bitmaps[seg].GetCardinality())
}

// Volume returns segment seg as a binary volume
func (s *Segments) Volume(seg int) *models.Volume {
	vol := models.NewVolume(s.Grid)
	if seg < 0 || seg >= len(s.Bitmaps) {
		return vol
	}
	it := s.Bitmaps[seg].Iterator()
	for it.HasNext() {
		vol.Data[it.Next()] = 1
	}
	return vol
}

// LabelVolume merges the segments into one label volume where segment s
// becomes label s+1 and unclaimed voxels stay 0
func (s *Segments) LabelVolume() *models.LabelVolume {
	labels := models.NewLabelVolume(s.Grid)
	for seg, b := range s.Bitmaps {
		it := b.Iterator()
		for it.HasNext() {
			labels.Labels[it.Next()] = seg + 1
		}
	}
	return labels
}
