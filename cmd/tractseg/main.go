package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tractseg/internal/models"
	"tractseg/pkg/coloring"
	"tractseg/pkg/config"
	"tractseg/pkg/segmentation"
	"tractseg/pkg/tractio"
	"tractseg/pkg/visualization"
)

// Colouring methods selectable from the command line
const (
	methodSegments  = "segments"
	methodCenter    = "center"
	methodDirection = "direction"
)

// gridPadding is the margin in voxels around a bundle when no reference grid is configured
const gridPadding = 2

// bundleReport summarises the run for one bundle
type bundleReport struct {
	path     string
	method   string
	points   int
	segments []int
	fallback error
	elapsed  time.Duration
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	createConfig := flag.Bool("create-config", false, "Write a default configuration file to -config and exit")
	modelPath := flag.String("model", "", "Model bundle file; when empty every bundle is its own model")
	method := flag.String("method", methodSegments, "Colouring method: segments, center or direction")
	numSegments := flag.Int("segments", 0, "Number of segments (overrides the configuration when positive)")
	numCores := flag.Int("cores", 0, "Number of bundles processed concurrently (overrides the configuration when positive)")
	outputDir := flag.String("output", "tractseg_output", "Directory for per-bundle results")
	extractSlices := flag.Bool("extract-slices", false, "Save label volume slices along all axes")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save centroids and correspondence sets of every stage")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] bundle.txt [bundle.txt ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	switch *method {
	case methodSegments, methodCenter, methodDirection:
	default:
		log.Fatalf("Unknown method %q (must be segments, center or direction)", *method)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *numSegments > 0 {
		cfg.Segmentation.NumSegments = *numSegments
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *extractSlices {
		cfg.Output.SaveSlices = true
	}
	if *saveIntermediary {
		cfg.Output.SaveIntermediaryResults = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	table, err := cfg.ResolveColorTable()
	if err != nil {
		log.Fatalf("Failed to build colour table: %v", err)
	}

	var model *models.Bundle
	if *modelPath != "" {
		model, err = tractio.ReadBundleFile(*modelPath)
		if err != nil {
			log.Fatalf("Failed to read model bundle: %v", err)
		}
	}

	fmt.Println("================================")
	fmt.Println("STREAMLINE SEGMENTATION WITH DYNAMIC TIME WARPING CORRESPONDENCE")
	fmt.Println("================================")
	fmt.Printf("Bundles: %d, method: %s, segments: %d, workers: %d\n",
		flag.NArg(), *method, cfg.Segmentation.NumSegments, cfg.Processing.NumCores)

	r := &runner{
		cfg:       cfg,
		table:     table,
		model:     model,
		method:    *method,
		outputDir: *outputDir,
	}

	startTime := time.Now()
	reports := make([]*bundleReport, flag.NArg())
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(cfg.Processing.NumCores)
	for i, path := range flag.Args() {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := r.process(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Processing failed: %v", err)
	}

	fmt.Printf("\nProcessed %d bundles in %.2f seconds\n", len(reports), time.Since(startTime).Seconds())
	for _, rep := range reports {
		fmt.Printf("- %s: %d points, method %s, %.2f s\n", rep.path, rep.points, rep.method, rep.elapsed.Seconds())
		if rep.fallback != nil {
			fmt.Printf("  fell back to direction colours: %v\n", rep.fallback)
		}
		if len(rep.segments) > 0 {
			fmt.Printf("  voxels per segment: %v\n", rep.segments)
		}
	}
	fmt.Printf("Results saved to: %s\n", *outputDir)
}

// runner holds what every bundle job shares
type runner struct {
	cfg       *config.Config
	table     coloring.ColorTable
	model     *models.Bundle
	method    string
	outputDir string
}

// process colours one bundle and writes its outputs. Segmentation failures
// fall back to direction colours; only I/O errors are returned.
func (r *runner) process(path string) (*bundleReport, error) {
	start := time.Now()
	report := &bundleReport{path: path, method: r.method}

	bundle, err := tractio.ReadBundleFile(path)
	if err != nil {
		return nil, err
	}
	report.points = bundle.NumPoints()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	bundleDir := filepath.Join(r.outputDir, name)
	logf := func(format string, args ...interface{}) {
		log.Printf("[%s] %s", name, fmt.Sprintf(format, args...))
	}

	var labels []int
	var colors []models.RGB
	var result *segmentation.Result

	switch r.method {
	case methodSegments:
		result, err = r.segment(bundle, logf)
		if err == nil {
			labels, colors = result.PointLabels, result.PointColors
			report.segments = result.Labels.Histogram(r.cfg.Segmentation.NumSegments + 1)[1:]
		}
	case methodCenter:
		labels, colors, err = r.center(bundle)
	}
	if err != nil {
		logf("Warning: %v", err)
		report.fallback = err
		report.method = methodDirection
		labels = nil
	}
	if colors == nil {
		colors = coloring.DirectionColors(bundle)
	}

	csvPath := filepath.Join(bundleDir, r.cfg.Output.PointsCSV)
	if err := tractio.WritePointsFile(csvPath, bundle, labels, colors); err != nil {
		return nil, err
	}
	logf("Points saved to: %s", csvPath)

	if r.cfg.Output.SaveSlices && result != nil {
		if err := r.saveSlices(result, filepath.Join(bundleDir, r.cfg.Output.SlicesDir), logf); err != nil {
			return nil, err
		}
	}

	if r.cfg.Output.SaveIntermediaryResults && result != nil {
		dir := filepath.Join(bundleDir, r.cfg.Output.IntermediaryDir)
		if err := saveIntermediaryResults(result, dir); err != nil {
			return nil, err
		}
		logf("Intermediary results saved to: %s", dir)
	}

	report.elapsed = time.Since(start)
	return report, nil
}

// segment runs the full pipeline on one bundle
func (r *runner) segment(bundle *models.Bundle, logf func(string, ...interface{})) (*segmentation.Result, error) {
	params := r.cfg.SegmentationParams()
	params.Colors = r.table

	var grid models.Grid
	var err error
	if r.cfg.HasReference() {
		grid, err = r.cfg.ReferenceGrid()
	} else {
		grid, err = segmentation.BoundingGrid(bundle, gridPadding)
	}
	if err != nil {
		return nil, err
	}

	segmenter := segmentation.NewSegmenter(params)
	if params.Verbose {
		segmenter.SetProgressCallback(func(message string) { logf("%s", message) })
	}

	if r.model == nil {
		return segmenter.SegmentBundle(bundle, grid)
	}
	mask, err := segmentation.BuildMask(bundle, grid)
	if err != nil {
		return nil, fmt.Errorf("failed to build bundle mask: %w", err)
	}
	return segmenter.Segment(r.model, bundle, mask)
}

// center colours points by their nearest centroid disk
func (r *runner) center(bundle *models.Bundle) ([]int, []models.RGB, error) {
	numDisks := r.cfg.Segmentation.NumSegments + 1
	assignment, err := segmentation.AssignToCentroid(bundle, numDisks)
	if err != nil {
		return nil, nil, err
	}
	table := r.table
	if table == nil {
		table = coloring.DistinctPalette(numDisks)
	}
	colors, err := coloring.ColorIndices(assignment, table)
	if err != nil {
		return nil, nil, err
	}
	labels := make([]int, len(assignment))
	for i, a := range assignment {
		labels[i] = a + 1
	}
	return labels, colors, nil
}

func (r *runner) saveSlices(result *segmentation.Result, slicesDir string, logf func(string, ...interface{})) error {
	table := r.table
	if table == nil {
		table = coloring.DistinctPalette(r.cfg.Segmentation.NumSegments + 1)
	}
	viewer, err := visualization.NewViewer(result.Labels, table)
	if err != nil {
		return err
	}
	for _, axis := range []string{"x", "y", "z"} {
		axisDir := filepath.Join(slicesDir, axis)
		if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
			return fmt.Errorf("failed to save %s-axis slices: %w", axis, err)
		}
	}
	logf("Slices saved to: %s", slicesDir)
	return nil
}
