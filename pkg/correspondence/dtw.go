// Package correspondence aligns centroid streamlines with dynamic time warping
// and filters the resulting control-point sets.
package correspondence

import (
	"fmt"
	"math"

	"tractseg/internal/models"
)

// DTW computes the dynamic time warping alignment between two point sequences
// under the Euclidean point distance.
//
// The cost table is (n+1)x(m+1) with an infinite border and a zero origin,
// so cell (i, j) holds the cheapest alignment of a[:i] with b[:j]. The path is
// recovered by walking back from (n, m); on equal costs the diagonal
// predecessor wins, then (i-1, j), then (i, j-1).
//
// The returned path starts at (0, 0), ends at (n-1, m-1) and never decreases
// in either index. Sequences with fewer than two points cannot be aligned.
func DTW(a, b []models.Point) (cost float64, path [][2]int, err error) {
	n, m := len(a), len(b)
	if n < 2 || m < 2 {
		return 0, nil, fmt.Errorf("%w: insufficient points for alignment (%d and %d)", models.ErrInput, n, m)
	}

	cols := m + 1
	table := make([]float64, (n+1)*cols)
	inf := math.Inf(1)
	for i := 1; i <= n; i++ {
		table[i*cols] = inf
	}
	for j := 1; j <= m; j++ {
		table[j] = inf
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			d := a[i-1].Distance(b[j-1])
			best := table[(i-1)*cols+j-1]
			if up := table[(i-1)*cols+j]; up < best {
				best = up
			}
			if left := table[i*cols+j-1]; left < best {
				best = left
			}
			table[i*cols+j] = d + best
		}
	}
	cost = table[n*cols+m]

	i, j := n, m
	path = append(path, [2]int{i - 1, j - 1})
	for i > 1 || j > 1 {
		diag := table[(i-1)*cols+j-1]
		up := table[(i-1)*cols+j]
		left := table[i*cols+j-1]
		switch {
		case diag <= up && diag <= left:
			i--
			j--
		case up <= left:
			i--
		default:
			j--
		}
		path = append(path, [2]int{i - 1, j - 1})
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return cost, path, nil
}

// Correspond aligns model against subject and returns, for every model
// point, the subject point in the middle of the run of subject points the
// warping path matched to it. The result has len(model) points.
func Correspond(model, subject []models.Point) (models.CorrespondenceSet, error) {
	_, path, err := DTW(model, subject)
	if err != nil {
		return nil, err
	}

	matches := make([][]int, len(model))
	for _, step := range path {
		matches[step[0]] = append(matches[step[0]], step[1])
	}

	out := make(models.CorrespondenceSet, len(model))
	for i, js := range matches {
		out[i] = subject[js[len(js)/2]]
	}
	return out, nil
}

// Build produces the combined correspondence table for one bundle:
// the model centroid aligned to the reference subject centroid, followed by
// that alignment matched against every subject cluster centroid.
// Every returned set has len(model) points.
func Build(model, reference models.Streamline, clusters []models.Streamline) ([]models.CorrespondenceSet, error) {
	base, err := Correspond(model, reference)
	if err != nil {
		return nil, fmt.Errorf("model to reference alignment: %w", err)
	}

	sets := make([]models.CorrespondenceSet, 0, len(clusters)+1)
	sets = append(sets, base)
	for k, c := range clusters {
		set, err := Correspond(base, c)
		if err != nil {
			return nil, fmt.Errorf("reference to cluster %d alignment: %w", k, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}
