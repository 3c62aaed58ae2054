package main

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"tractseg/internal/models"
	"tractseg/pkg/config"
	"tractseg/pkg/correspondence"
	"tractseg/pkg/segmentation"
	"tractseg/pkg/tractio"
)

// writeStraightBundle writes five parallel streamlines along x and returns the file path
func writeStraightBundle(t *testing.T, dir string) string {
	offsets := [][2]float64{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	var streamlines []models.Streamline
	for _, o := range offsets {
		s := make(models.Streamline, 20)
		for i := range s {
			s[i] = models.Point{X: float64(i + 2), Y: 5 + o[0], Z: 5 + o[1]}
		}
		streamlines = append(streamlines, s)
	}
	path := filepath.Join(dir, "straight.txt")
	if err := tractio.WriteBundleFile(path, models.NewBundle(streamlines, models.Identity())); err != nil {
		t.Fatalf("Failed to write bundle: %v", err)
	}
	return path
}

func readPoints(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open points file: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse points file: %v", err)
	}
	return records[1:]
}

func testRunner(t *testing.T, method string) *runner {
	cfg := config.DefaultConfig()
	cfg.Processing.Verbose = false
	cfg.Segmentation.NumSegments = 4
	return &runner{cfg: cfg, method: method, outputDir: t.TempDir()}
}

// TestProcessSegments verifies the full pipeline run on a straight bundle
func TestProcessSegments(t *testing.T) {
	path := writeStraightBundle(t, t.TempDir())
	r := testRunner(t, methodSegments)
	r.cfg.Output.SaveIntermediaryResults = true

	report, err := r.process(path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.fallback != nil {
		t.Fatalf("Unexpected fallback: %v", report.fallback)
	}
	if len(report.segments) != 5 {
		t.Errorf("Expected 5 segment counts, got %v", report.segments)
	}

	rows := readPoints(t, filepath.Join(r.outputDir, "straight", "points.csv"))
	if len(rows) != 100 {
		t.Fatalf("Expected 100 point rows, got %d", len(rows))
	}
	for _, row := range rows {
		label, err := strconv.Atoi(row[5])
		if err != nil || label < 1 || label > 5 {
			t.Errorf("Expected a label in 1..5, got %q", row[5])
		}
	}

	interDir := filepath.Join(r.outputDir, "straight", "intermediary_results")
	for _, name := range []string{"01_model_centroid.txt", "05_filtered_correspondences.txt", "06_filter_report.txt"} {
		if _, err := os.Stat(filepath.Join(interDir, name)); err != nil {
			t.Errorf("Expected intermediary file %s: %v", name, err)
		}
	}
	reportText, err := os.ReadFile(filepath.Join(interDir, "06_filter_report.txt"))
	if err != nil {
		t.Fatalf("Failed to read filter report: %v", err)
	}
	for _, line := range []string{"Mean length:", "Stable span:", "Conflicting voxels:"} {
		if !strings.Contains(string(reportText), line) {
			t.Errorf("Expected filter report to contain %q, got:\n%s", line, reportText)
		}
	}

	centroids, err := tractio.ReadBundleFile(filepath.Join(interDir, "01_model_centroid.txt"))
	if err != nil {
		t.Fatalf("Failed to read model centroid: %v", err)
	}
	if n := len(centroids.Streamlines[0]); n != 5 {
		t.Errorf("Expected a 5-point model centroid, got %d", n)
	}
}

// TestProcessCenter verifies nearest-centroid colouring
func TestProcessCenter(t *testing.T) {
	path := writeStraightBundle(t, t.TempDir())
	r := testRunner(t, methodCenter)

	report, err := r.process(path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.fallback != nil || report.method != methodCenter {
		t.Fatalf("Expected the center method without fallback, got %s (%v)", report.method, report.fallback)
	}

	rows := readPoints(t, filepath.Join(r.outputDir, "straight", "points.csv"))
	if rows[0][5] != "1" || rows[19][5] != "5" {
		t.Errorf("Expected disks 1 and 5 at the streamline ends, got %s and %s", rows[0][5], rows[19][5])
	}
}

// TestProcessFallback verifies that a degenerate bundle falls back to direction colours
func TestProcessFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dot.txt")
	if err := os.WriteFile(path, []byte("1 1 1\n"), 0644); err != nil {
		t.Fatalf("Failed to write bundle: %v", err)
	}
	r := testRunner(t, methodSegments)

	report, err := r.process(path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.fallback == nil || report.method != methodDirection {
		t.Fatalf("Expected a direction fallback, got %s (%v)", report.method, report.fallback)
	}

	rows := readPoints(t, filepath.Join(r.outputDir, "dot", "points.csv"))
	if len(rows) != 1 || rows[0][5] != "" {
		t.Errorf("Expected one unlabelled row, got %v", rows)
	}
}

// TestProcessPaletteSetsSegments verifies that a palette without an explicit
// segment count colours every label instead of falling back
func TestProcessPaletteSetsSegments(t *testing.T) {
	path := writeStraightBundle(t, t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Processing.Verbose = false
	cfg.Colors.Palette = []string{"#ff0000", "#00ff00", "#0000ff", "#ffff00"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	table, err := cfg.ResolveColorTable()
	if err != nil {
		t.Fatalf("ResolveColorTable failed: %v", err)
	}
	r := &runner{cfg: cfg, table: table, method: methodSegments, outputDir: t.TempDir()}

	report, err := r.process(path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.fallback != nil {
		t.Fatalf("Expected the palette to cover every label, got fallback: %v", report.fallback)
	}
	if len(report.segments) != 4 {
		t.Errorf("Expected 4 segment counts, got %v", report.segments)
	}

	rows := readPoints(t, filepath.Join(r.outputDir, "straight", "points.csv"))
	for _, row := range rows {
		label, err := strconv.Atoi(row[5])
		if err != nil || label < 1 || label > 4 {
			t.Errorf("Expected a label in 1..4, got %q", row[5])
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// TestWriteFilterReportError verifies that a failed write surfaces as an error
func TestWriteFilterReportError(t *testing.T) {
	result := &segmentation.Result{
		Report:   &correspondence.FilterReport{First: 0, Last: 4},
		Segments: &segmentation.Segments{Conflicts: 3},
	}

	var sb strings.Builder
	if err := writeFilterReport(&sb, result); err != nil {
		t.Fatalf("writeFilterReport failed: %v", err)
	}
	if !strings.Contains(sb.String(), "Conflicting voxels: 3") {
		t.Errorf("Expected the conflict count in the report, got:\n%s", sb.String())
	}

	if err := writeFilterReport(failingWriter{}, result); err == nil {
		t.Error("Expected an error from a failing writer")
	}
}
