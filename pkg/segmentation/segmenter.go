// Package segmentation divides a white-matter bundle into consistent
// along-length segments and colours every streamline point by segment.
//
// The pipeline runs strictly in order:
//  1. Extract the model centroid and the subject centroids
//  2. Orient the subject centroids like the model centroid
//  3. Align them with dynamic time warping
//  4. Filter the resulting correspondence sets
//  5. Paint the bundle mask into segments
//  6. Label and colour every streamline point
//
// Any stage failure aborts the run for that bundle.
package segmentation

import (
	"fmt"
	"math"

	"tractseg/internal/models"
	"tractseg/pkg/centroid"
	"tractseg/pkg/coloring"
	"tractseg/pkg/correspondence"
)

// Params holds the segmentation parameters
type Params struct {
	// NumSegments is N: correspondence sets carry N+1 control points and
	// the bundle is split into N+1 labelled segments.
	NumSegments int

	// SubjectPoints is the number of points subject centroids are resampled to
	SubjectPoints int

	// ClusterThreshold and MaxClusters control the subject sub-clusters
	ClusterThreshold float64
	MaxClusters      int

	// OutlierSigma and InstabilityThreshold control correspondence filtering
	OutlierSigma         float64
	InstabilityThreshold float64

	// Colors provides the segment colours. When nil a distinct palette is used.
	Colors coloring.ColorTable

	// Verbose prints a line per pipeline step
	Verbose bool
}

// DefaultParams returns the standard parameters for numSegments segments
func DefaultParams(numSegments int) *Params {
	return &Params{
		NumSegments:          numSegments,
		SubjectPoints:        500,
		ClusterThreshold:     2.0,
		MaxClusters:          centroid.DefaultMaxClusters,
		OutlierSigma:         correspondence.DefaultOutlierSigma,
		InstabilityThreshold: correspondence.DefaultInstability,
	}
}

// Validate checks the parameters
func (p *Params) Validate() error {
	if p.NumSegments < 1 {
		return fmt.Errorf("%w: number of segments must be positive, got %d", models.ErrInput, p.NumSegments)
	}
	if p.SubjectPoints < 2 {
		return fmt.Errorf("%w: subject centroids need at least 2 points, got %d", models.ErrInput, p.SubjectPoints)
	}
	if p.ClusterThreshold <= 0 {
		return fmt.Errorf("%w: cluster threshold must be positive, got %v", models.ErrInput, p.ClusterThreshold)
	}
	if p.InstabilityThreshold < 0 || p.OutlierSigma < 0 {
		return fmt.Errorf("%w: filter thresholds must not be negative", models.ErrInput)
	}
	return nil
}

// ProgressCallback receives a message for every pipeline step
type ProgressCallback func(message string)

// Result holds everything a segmentation run produced
type Result struct {
	// Centroids in voxel space
	ModelCentroid    models.Streamline
	SubjectCentroid  models.Streamline
	ClusterCentroids []models.Streamline

	// Correspondences before and after filtering, in voxel space
	Correspondences []models.CorrespondenceSet
	Filtered        []models.CorrespondenceSet
	Report          *correspondence.FilterReport

	// Mask is the bundle mask that was painted
	Mask *models.Volume

	// Segments and Labels describe the painted segments
	Segments *Segments
	Labels   *models.LabelVolume

	// PointLabels and PointColors hold one entry per subject point, in streamline order
	PointLabels []int
	PointColors []models.RGB
}

// Segmenter runs the segmentation pipeline
type Segmenter struct {
	params           *Params
	progressCallback ProgressCallback
}

// NewSegmenter creates a segmenter with the provided parameters
func NewSegmenter(params *Params) *Segmenter {
	return &Segmenter{params: params}
}

// SetProgressCallback routes step messages to callback instead of stdout
func (s *Segmenter) SetProgressCallback(callback ProgressCallback) {
	s.progressCallback = callback
}

func (s *Segmenter) report(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if s.progressCallback != nil {
		s.progressCallback(msg)
		return
	}
	if s.params.Verbose {
		fmt.Println(msg)
	}
}

// SegmentBundle segments a bundle against itself, building its mask on grid
func (s *Segmenter) SegmentBundle(bundle *models.Bundle, grid models.Grid) (*Result, error) {
	if bundle == nil || bundle.Len() == 0 {
		return nil, fmt.Errorf("%w: no streamlines to segment", models.ErrInput)
	}
	mask, err := BuildMask(bundle, grid)
	if err != nil {
		return nil, fmt.Errorf("failed to build bundle mask: %w", err)
	}
	return s.Segment(bundle, bundle, mask)
}

// Segment splits the subject bundle into segments that correspond to
// positions along the model bundle. The mask is the subject's bundle mask;
// its affine maps voxel indices to the world space both bundles live in.
func (s *Segmenter) Segment(model, subject *models.Bundle, mask *models.Volume) (*Result, error) {
	p := s.params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if model == nil || subject == nil || model.Len() == 0 || subject.Len() == 0 {
		return nil, fmt.Errorf("%w: no streamlines to cluster", models.ErrInput)
	}
	if mask == nil {
		return nil, fmt.Errorf("%w: no bundle mask", models.ErrInput)
	}
	if err := mask.Validate(); err != nil {
		return nil, err
	}

	inv, err := mask.Affine.Inverse()
	if err != nil {
		return nil, err
	}
	modelVox := model.Transform(inv)
	subjectVox := subject.Transform(inv)
	result := &Result{Mask: mask}

	// Step 1: centroids
	s.report("Step 1: Extracting centroids...")
	modelCentroids, err := centroid.Extract(modelVox, p.NumSegments+1, math.Inf(1), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to extract model centroid: %w", err)
	}
	subjectCentroids, err := centroid.Extract(subjectVox, p.SubjectPoints, math.Inf(1), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to extract subject centroid: %w", err)
	}
	clusters, err := centroid.Extract(subjectVox, p.SubjectPoints, p.ClusterThreshold, p.MaxClusters)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster subject bundle: %w", err)
	}
	result.ModelCentroid = modelCentroids[0]
	s.report("Model centroid length: %.3f", result.ModelCentroid.Length())
	s.report("Subject centroid length: %.3f (%d clusters)", subjectCentroids[0].Length(), len(clusters))

	// Step 2: orientation
	s.report("Step 2: Orienting subject centroids...")
	result.SubjectCentroid = centroid.Reorient(result.ModelCentroid, subjectCentroids)[0]
	result.ClusterCentroids = centroid.Reorient(result.ModelCentroid, clusters)

	// Step 3: alignment
	s.report("Step 3: Aligning centroids with DTW...")
	result.Correspondences, err = correspondence.Build(result.ModelCentroid, result.SubjectCentroid, result.ClusterCentroids)
	if err != nil {
		return nil, fmt.Errorf("failed to build correspondences: %w", err)
	}

	// Step 4: filtering
	s.report("Step 4: Filtering correspondences...")
	result.Filtered, result.Report, err = correspondence.Filter(result.Correspondences, correspondence.FilterOptions{
		OutlierSigma: p.OutlierSigma,
		Instability:  p.InstabilityThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter correspondences: %w", err)
	}
	s.report("Average correspondence length: %.3f", result.Report.MeanLength)
	s.report("Standard deviation: %.3f", result.Report.StdLength)
	if result.Report.AllUnstable {
		s.report("Warning: no stable positions, correspondences were resampled")
	}
	s.report("Total number of filtered centroids: %d", len(result.Filtered))

	// Step 5: painting
	s.report("Step 5: Painting %d segments...", p.NumSegments+1)
	result.Segments, err = Paint(mask, result.Filtered, p.NumSegments)
	if err != nil {
		return nil, fmt.Errorf("failed to paint segments: %w", err)
	}
	result.Labels = result.Segments.LabelVolume()
	s.report("Resolved %d overlapping voxels", result.Segments.Conflicts)

	// Step 6: per-point labels and colours
	s.report("Step 6: Colouring streamline points...")
	result.PointLabels, err = coloring.LabelVoxelPoints(subjectVox.Points(), result.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to label streamline points: %w", err)
	}
	table := p.Colors
	if table == nil {
		table = coloring.DistinctPalette(p.NumSegments + 1)
	}
	result.PointColors, err = coloring.ColorPoints(result.PointLabels, table)
	if err != nil {
		return nil, fmt.Errorf("failed to colour streamline points: %w", err)
	}

	return result, nil
}
