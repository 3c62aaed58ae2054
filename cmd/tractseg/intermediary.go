package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tractseg/internal/models"
	"tractseg/pkg/segmentation"
	"tractseg/pkg/tractio"
)

// saveIntermediaryResults writes the centroids and correspondence sets of
// every pipeline stage as bundle files in world coordinates, plus a text
// summary of the filtering step.
func saveIntermediaryResults(result *segmentation.Result, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create intermediary directory: %w", err)
	}

	aff := result.Mask.Affine
	world := func(streamlines []models.Streamline) *models.Bundle {
		return models.NewBundle(streamlines, aff).Transform(aff)
	}

	stages := []struct {
		name        string
		streamlines []models.Streamline
	}{
		{"01_model_centroid", []models.Streamline{result.ModelCentroid}},
		{"02_subject_centroid", []models.Streamline{result.SubjectCentroid}},
		{"03_cluster_centroids", result.ClusterCentroids},
		{"04_correspondences", result.Correspondences},
		{"05_filtered_correspondences", result.Filtered},
	}
	for _, stage := range stages {
		path := filepath.Join(dir, stage.name+".txt")
		if err := tractio.WriteBundleFile(path, world(stage.streamlines)); err != nil {
			return fmt.Errorf("failed to save %s: %w", stage.name, err)
		}
	}

	path := filepath.Join(dir, "06_filter_report.txt")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create filter report: %w", err)
	}
	if err := writeFilterReport(f, result); err != nil {
		f.Close()
		return fmt.Errorf("failed to write filter report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close filter report: %w", err)
	}
	return nil
}

// writeFilterReport writes the filtering summary and conflict count as text
func writeFilterReport(w io.Writer, result *segmentation.Result) error {
	bw := bufio.NewWriter(w)

	rep := result.Report
	fmt.Fprintf(bw, "Correspondence lengths: %v\n", rep.Lengths)
	fmt.Fprintf(bw, "Mean length: %.3f\n", rep.MeanLength)
	fmt.Fprintf(bw, "Standard deviation: %.3f\n", rep.StdLength)
	fmt.Fprintf(bw, "Dropped sets: %v\n", rep.Dropped)
	fmt.Fprintf(bw, "Spread mean per position: %v\n", rep.SpreadMean)
	fmt.Fprintf(bw, "Spread std per position: %v\n", rep.SpreadStd)
	fmt.Fprintf(bw, "Stable span: %d..%d\n", rep.First, rep.Last)
	fmt.Fprintf(bw, "All positions unstable: %v\n", rep.AllUnstable)
	conflicts := 0
	if result.Segments != nil {
		conflicts = result.Segments.Conflicts
	}
	fmt.Fprintf(bw, "Conflicting voxels: %d\n", conflicts)

	return bw.Flush()
}
