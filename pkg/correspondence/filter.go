package correspondence

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"tractseg/internal/models"
)

const (
	// DefaultOutlierSigma is how many standard deviations below the mean
	// length a set may fall before it is dropped
	DefaultOutlierSigma = 1.0

	// DefaultInstability is the largest per-position spread (standard
	// deviation of pairwise distances) still considered stable
	DefaultInstability = 3.5
)

// FilterOptions controls outlier rejection and boundary smoothing
type FilterOptions struct {
	OutlierSigma float64
	Instability  float64
}

// DefaultFilterOptions returns the standard thresholds
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		OutlierSigma: DefaultOutlierSigma,
		Instability:  DefaultInstability,
	}
}

// FilterReport describes what Filter did, for logging and inspection
type FilterReport struct {
	// Lengths holds the arc length of every input set
	Lengths []float64

	// MeanLength and StdLength are the population statistics of Lengths
	MeanLength float64
	StdLength  float64

	// Dropped lists the input indices rejected as too short
	Dropped []int

	// SpreadMean and SpreadStd hold, per position, the mean and standard
	// deviation of the nonzero pairwise distances between retained sets
	SpreadMean []float64
	SpreadStd  []float64

	// First and Last are the first and last stable positions; -1 when none
	First int
	Last  int

	// AllUnstable is set when no position was stable and every retained
	// set was resampled along its arc length instead
	AllUnstable bool
}

// Filter rejects correspondence sets that are much shorter than the rest,
// then replaces the unstable ends of each retained set with straight
// interpolation towards its own endpoints. Every returned set keeps the
// input length.
func Filter(sets []models.CorrespondenceSet, opts FilterOptions) ([]models.CorrespondenceSet, *FilterReport, error) {
	if len(sets) == 0 {
		return nil, nil, fmt.Errorf("%w: no correspondence sets to filter", models.ErrNumericDegeneracy)
	}
	size := len(sets[0])
	if size < 2 {
		return nil, nil, fmt.Errorf("%w: correspondence sets need at least 2 points, got %d", models.ErrInput, size)
	}
	for i, s := range sets {
		if len(s) != size {
			return nil, nil, fmt.Errorf("%w: correspondence set %d has %d points, expected %d",
				models.ErrInput, i, len(s), size)
		}
	}

	report := &FilterReport{First: -1, Last: -1}
	retained := rejectShort(sets, opts.OutlierSigma, report)
	if len(retained) == 0 {
		return nil, report, fmt.Errorf("%w: no correspondence sets left after length filtering", models.ErrNumericDegeneracy)
	}

	report.SpreadMean, report.SpreadStd = spread(retained)
	for pos, std := range report.SpreadStd {
		if std <= opts.Instability {
			if report.First < 0 {
				report.First = pos
			}
			report.Last = pos
		}
	}

	out := make([]models.CorrespondenceSet, len(retained))
	if report.First < 0 {
		report.AllUnstable = true
		for i, s := range retained {
			out[i] = s.Resample(size)
		}
		return out, report, nil
	}
	for i, s := range retained {
		out[i] = splice(s, report.First, report.Last)
	}
	return out, report, nil
}

// rejectShort drops sets whose length is below mean - sigma*std
func rejectShort(sets []models.CorrespondenceSet, sigma float64, report *FilterReport) []models.CorrespondenceSet {
	report.Lengths = make([]float64, len(sets))
	for i, s := range sets {
		report.Lengths[i] = s.Length()
	}
	report.MeanLength, report.StdLength = stat.PopMeanStdDev(report.Lengths, nil)

	threshold := report.MeanLength - sigma*report.StdLength
	// Absorb rounding so sets of equal length are never rejected
	tol := 1e-9 * math.Max(1, math.Abs(report.MeanLength))

	retained := make([]models.CorrespondenceSet, 0, len(sets))
	for i, s := range sets {
		if report.Lengths[i] < threshold-tol {
			report.Dropped = append(report.Dropped, i)
			continue
		}
		retained = append(retained, s)
	}
	return retained
}

// spread computes, per position, the mean and population standard deviation
// of the distances between every pair of sets. Zero distances are left out;
// a position with no nonzero distance has zero spread.
func spread(sets []models.CorrespondenceSet) (means, stds []float64) {
	size := len(sets[0])
	means = make([]float64, size)
	stds = make([]float64, size)

	dists := make([]float64, 0, len(sets)*(len(sets)-1)/2)
	for pos := 0; pos < size; pos++ {
		dists = dists[:0]
		for i := 0; i < len(sets); i++ {
			for j := i + 1; j < len(sets); j++ {
				if d := sets[i][pos].Distance(sets[j][pos]); d > 0 {
					dists = append(dists, d)
				}
			}
		}
		if len(dists) == 0 {
			continue
		}
		means[pos], stds[pos] = stat.PopMeanStdDev(dists, nil)
	}
	return means, stds
}

// splice keeps set[first..last] and rebuilds the head and tail as evenly
// spaced points between the set's endpoints and the stable span.
func splice(set models.CorrespondenceSet, first, last int) models.CorrespondenceSet {
	size := len(set)
	out := make(models.CorrespondenceSet, 0, size)

	head := models.Linspace(set[0], set[first], first+1)
	out = append(out, head[:first]...)
	out = append(out, set[first:last+1]...)
	tail := models.Linspace(set[last], set[size-1], size-last)
	out = append(out, tail[1:]...)
	return out
}
