package segmentation

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"tractseg/internal/models"
)

// labeledPoint is a point tagged with the set it came from and its position
// in that set. It satisfies kdtree.Comparable.
type labeledPoint struct {
	pos     models.Point
	set     int
	index   int
	ordinal int
}

// Compare implements the kdtree.Comparable interface
func (p labeledPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(labeledPoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	case 2:
		return p.pos.Z - q.pos.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p labeledPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p labeledPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(labeledPoint)
	return p.pos.Sub(q.pos).Norm2()
}

// labeledPoints satisfies kdtree.Interface
type labeledPoints []labeledPoint

func (p labeledPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p labeledPoints) Len() int                              { return len(p) }
func (p labeledPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p labeledPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{labeledPoints: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{labeledPoints: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for labeledPoints
type pointPlane struct {
	labeledPoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.labeledPoints[i].Compare(p.labeledPoints[j], p.Dim) < 0
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{labeledPoints: p.labeledPoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.labeledPoints[i], p.labeledPoints[j] = p.labeledPoints[j], p.labeledPoints[i]
}

// pointIndex answers nearest-point queries over labelled point sets
type pointIndex struct {
	tree *kdtree.Tree
}

// newPointIndex indexes every point of every set. Ordinals follow set order,
// then point order, and break ties between equidistant points.
func newPointIndex(sets []models.Streamline) *pointIndex {
	var pts labeledPoints
	for s, set := range sets {
		for i, p := range set {
			pts = append(pts, labeledPoint{pos: p, set: s, index: i, ordinal: len(pts)})
		}
	}
	if len(pts) == 0 {
		return &pointIndex{}
	}
	return &pointIndex{tree: kdtree.New(pts, false)}
}

// nearest returns the closest indexed point to q. Among equidistant points
// the one with the lowest ordinal wins. ok is false for an empty index.
func (ix *pointIndex) nearest(q models.Point) (labeledPoint, bool) {
	if ix.tree == nil {
		return labeledPoint{}, false
	}
	query := labeledPoint{pos: q}
	got, dist := ix.tree.Nearest(query)
	if got == nil {
		return labeledPoint{}, false
	}
	best := got.(labeledPoint)

	keeper := kdtree.NewDistKeeper(dist)
	ix.tree.NearestSet(keeper, query)
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		if p := item.Comparable.(labeledPoint); p.ordinal < best.ordinal {
			best = p
		}
	}
	return best, true
}
