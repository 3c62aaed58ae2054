package correspondence

import (
	"errors"
	"math"
	"testing"

	"tractseg/internal/models"
)

// straight returns n points along x starting at x0, offset by (y, z)
func straight(x0, y, z float64, n int, step float64) models.Streamline {
	s := make(models.Streamline, n)
	for i := range s {
		s[i] = models.Point{X: x0 + float64(i)*step, Y: y, Z: z}
	}
	return s
}

// TestDTWPathMonotonic verifies the path endpoints and monotonicity for several shapes
func TestDTWPathMonotonic(t *testing.T) {
	cases := []struct {
		name string
		a, b models.Streamline
	}{
		{"equal", straight(0, 0, 0, 10, 1), straight(0, 0, 0, 10, 1)},
		{"longer subject", straight(0, 0, 0, 5, 2), straight(0, 1, 0, 23, 0.4)},
		{"shorter subject", straight(0, 0, 0, 30, 0.5), straight(3, 0, 2, 4, 3)},
		{"curved", models.Streamline{{X: 0}, {X: 1, Y: 1}, {X: 2, Y: 4}, {X: 3, Y: 9}},
			models.Streamline{{X: 0}, {X: 3, Y: 9}, {X: 1}, {X: 2, Y: 2}, {X: 5}}},
	}

	for _, tc := range cases {
		_, path, err := DTW(tc.a, tc.b)
		if err != nil {
			t.Fatalf("%s: DTW failed: %v", tc.name, err)
		}
		if path[0] != [2]int{0, 0} {
			t.Errorf("%s: path starts at %v, expected (0,0)", tc.name, path[0])
		}
		end := [2]int{len(tc.a) - 1, len(tc.b) - 1}
		if path[len(path)-1] != end {
			t.Errorf("%s: path ends at %v, expected %v", tc.name, path[len(path)-1], end)
		}
		for k := 1; k < len(path); k++ {
			di := path[k][0] - path[k-1][0]
			dj := path[k][1] - path[k-1][1]
			if di < 0 || dj < 0 || di > 1 || dj > 1 || (di == 0 && dj == 0) {
				t.Errorf("%s: invalid step %v -> %v", tc.name, path[k-1], path[k])
			}
		}
	}
}

// TestDTWIdenticalSequences verifies the diagonal path and zero cost for identical input
func TestDTWIdenticalSequences(t *testing.T) {
	a := straight(0, 0, 0, 8, 1)
	cost, path, err := DTW(a, a)
	if err != nil {
		t.Fatalf("DTW failed: %v", err)
	}
	if cost != 0 {
		t.Errorf("Expected zero cost, got %f", cost)
	}
	if len(path) != len(a) {
		t.Fatalf("Expected diagonal path of %d steps, got %d", len(a), len(path))
	}
	for k, step := range path {
		if step != [2]int{k, k} {
			t.Errorf("Step %d: expected (%d,%d), got %v", k, k, k, step)
		}
	}
}

// TestDTWDegenerate verifies that one-point sequences cannot be aligned
func TestDTWDegenerate(t *testing.T) {
	_, _, err := DTW(straight(0, 0, 0, 1, 1), straight(0, 0, 0, 5, 1))
	if !errors.Is(err, models.ErrInput) {
		t.Errorf("Expected ErrInput, got %v", err)
	}
	_, _, err = DTW(nil, straight(0, 0, 0, 5, 1))
	if !errors.Is(err, models.ErrInput) {
		t.Errorf("Expected ErrInput for empty input, got %v", err)
	}
}

// TestCorrespondMedian verifies that each model point picks the middle of its matched run
func TestCorrespondMedian(t *testing.T) {
	model := straight(0, 0, 0, 5, 10)
	subject := straight(0, 0, 0, 41, 1)

	corr, err := Correspond(model, subject)
	if err != nil {
		t.Fatalf("Correspond failed: %v", err)
	}
	if len(corr) != len(model) {
		t.Fatalf("Expected %d points, got %d", len(model), len(corr))
	}
	for i, p := range corr {
		if math.Abs(p.X-model[i].X) > 5 {
			t.Errorf("Point %d: expected x near %f, got %f", i, model[i].X, p.X)
		}
	}
	if corr[4].X < 35 {
		t.Errorf("Last point should map near subject end, got %f", corr[4].X)
	}
}

// TestBuildCombinesSets verifies that Build returns the base set plus one per cluster
func TestBuildCombinesSets(t *testing.T) {
	model := straight(0, 0, 0, 5, 5)
	reference := straight(0, 0.5, 0, 50, 0.4)
	clusters := []models.Streamline{straight(0, 1, 0, 50, 0.4), straight(0, -1, 0, 50, 0.4)}

	sets, err := Build(model, reference, clusters)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(sets) != 3 {
		t.Fatalf("Expected 3 sets, got %d", len(sets))
	}
	for k, s := range sets {
		if len(s) != len(model) {
			t.Errorf("Set %d: expected %d points, got %d", k, len(model), len(s))
		}
	}
	if sets[1][0].Y != 1 || sets[2][0].Y != -1 {
		t.Errorf("Cluster sets should lie on their cluster centroids, got y=%f and y=%f", sets[1][0].Y, sets[2][0].Y)
	}
}

// TestFilterDropsShortSets verifies the length outlier rejection
func TestFilterDropsShortSets(t *testing.T) {
	sets := []models.CorrespondenceSet{
		straight(0, 0, 0, 5, 5),
		straight(0, 1, 0, 5, 5),
		straight(0, 2, 0, 5, 5),
		straight(0, 3, 0, 5, 1),
	}

	out, report, err := Filter(sets, DefaultFilterOptions())
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Expected 3 retained sets, got %d", len(out))
	}
	if len(report.Dropped) != 1 || report.Dropped[0] != 3 {
		t.Errorf("Expected set 3 to be dropped, got %v", report.Dropped)
	}
}

// TestFilterLengthPreservation verifies that every output set keeps N+1 points
// whether or not its ends were rebuilt
func TestFilterLengthPreservation(t *testing.T) {
	const size = 9
	var sets []models.CorrespondenceSet
	for k := 0; k < 6; k++ {
		s := straight(0, float64(k)*0.2, 0, size, 2)
		// Scatter the first two and the last positions so they become unstable
		s[0].Z = float64(k*k) * 2
		s[1].Z = float64(k*k) * 1.5
		s[size-1].Y = float64(k*k) * -2
		sets = append(sets, s)
	}

	// Keep every set; only the boundary rebuild is under test here
	opts := DefaultFilterOptions()
	opts.OutlierSigma = 10

	out, report, err := Filter(sets, opts)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if report.AllUnstable {
		t.Fatal("Middle positions should be stable")
	}
	if report.First != 2 || report.Last != size-2 {
		t.Errorf("Expected stable span [2,%d], got [%d,%d]", size-2, report.First, report.Last)
	}
	for k, s := range out {
		if len(s) != size {
			t.Errorf("Set %d: expected %d points, got %d", k, size, len(s))
		}
	}

	// The head is rebuilt on the line from the original start to the first stable point
	for _, s := range out {
		mid := models.Lerp(s[0], s[2], 0.5)
		if s[1].Distance(mid) > 1e-9 {
			t.Errorf("Head point not interpolated: got %v, expected %v", s[1], mid)
		}
	}
}

// TestFilterAllUnstable verifies the arc-length fallback when no position is stable
func TestFilterAllUnstable(t *testing.T) {
	var sets []models.CorrespondenceSet
	for k := 0; k < 5; k++ {
		s := straight(0, float64(k*k*k), 0, 6, 1)
		sets = append(sets, s)
	}
	opts := DefaultFilterOptions()
	opts.Instability = 0.01

	out, report, err := Filter(sets, opts)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !report.AllUnstable {
		t.Fatal("Expected AllUnstable to be set")
	}
	for k, s := range out {
		if len(s) != 6 {
			t.Errorf("Set %d: expected 6 points, got %d", k, len(s))
		}
	}
}

// TestFilterSingleSet verifies that a lone set passes through unchanged
func TestFilterSingleSet(t *testing.T) {
	set := straight(0, 0, 0, 5, 3)
	out, report, err := Filter([]models.CorrespondenceSet{set}, DefaultFilterOptions())
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if report.First != 0 || report.Last != 4 {
		t.Errorf("Expected full stable span, got [%d,%d]", report.First, report.Last)
	}
	for i := range set {
		if out[0][i] != set[i] {
			t.Errorf("Point %d changed: %v -> %v", i, set[i], out[0][i])
		}
	}
}

// TestFilterEmpty verifies the degenerate empty input
func TestFilterEmpty(t *testing.T) {
	_, _, err := Filter(nil, DefaultFilterOptions())
	if !errors.Is(err, models.ErrNumericDegeneracy) {
		t.Errorf("Expected ErrNumericDegeneracy, got %v", err)
	}
}
