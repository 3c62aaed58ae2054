package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"tractseg/internal/models"
	"tractseg/pkg/coloring"
)

var testPalette = coloring.Palette{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// stripedLabels creates a label volume whose label is x/4 along x, so a
// 12-wide volume holds background plus labels 1 and 2
func stripedLabels(width, height, depth int) *models.LabelVolume {
	lv := models.NewLabelVolume(models.Grid{Width: width, Height: height, Depth: depth, Affine: models.Identity()})
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				lv.Labels[lv.Index(x, y, z)] = x / 4
			}
		}
	}
	return lv
}

// TestNewViewer verifies palette construction and missing colours
func TestNewViewer(t *testing.T) {
	labels := stripedLabels(12, 4, 3)

	viewer, err := NewViewer(labels, testPalette)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}
	if len(viewer.palette) != 3 {
		t.Errorf("Expected 3 palette entries, got %d", len(viewer.palette))
	}

	_, err = NewViewer(labels, testPalette[:1])
	if !errors.Is(err, models.ErrInput) {
		t.Errorf("Expected ErrInput for a short colour table, got %v", err)
	}
}

// TestExtractSlice verifies that slices carry the segment colours
func TestExtractSlice(t *testing.T) {
	width, height, depth := 12, 4, 3
	viewer, err := NewViewer(stripedLabels(width, height, depth), testPalette)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}

	// Test extracting Z slices
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		// Verify dimensions
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		rgba, ok := img.(*image.RGBA)
		if !ok {
			t.Fatalf("Expected *image.RGBA, got %T", img)
		}
		expected := map[int]color.RGBA{
			0:  {A: 255},
			5:  {R: 255, A: 255},
			11: {G: 255, A: 255},
		}
		for x, want := range expected {
			if got := rgba.RGBAAt(x, 1); got != want {
				t.Errorf("Expected %v at x=%d, got %v", want, x, got)
			}
		}
	}

	// Test extracting X slice
	imgX, err := viewer.ExtractSlice("x", 6)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	boundsX := imgX.Bounds()
	if boundsX.Dx() != depth || boundsX.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d",
			depth, height, boundsX.Dx(), boundsX.Dy())
	}
	if got := imgX.(*image.RGBA).RGBAAt(1, 1); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected segment 1 colour in X slice, got %v", got)
	}

	// Test extracting Y slice
	imgY, err := viewer.ExtractSlice("y", 2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	boundsY := imgY.Bounds()
	if boundsY.Dx() != width || boundsY.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d",
			width, depth, boundsY.Dx(), boundsY.Dy())
	}

	// Test invalid axis
	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	// Test out of bounds position
	if _, err := viewer.ExtractSlice("z", depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
}

// TestExtractRegion verifies that label subregions are correctly extracted
func TestExtractRegion(t *testing.T) {
	width, height, depth := 12, 4, 3
	labels := stripedLabels(width, height, depth)
	labels.Affine = models.Scaling(2, 2, 2, models.Point{X: -10})
	viewer, err := NewViewer(labels, testPalette)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}

	startX, startY, startZ := 2, 1, 1
	sizeX, sizeY, sizeZ := 4, 3, 2

	region, err := viewer.ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}

	if len(region.Labels) != sizeX*sizeY*sizeZ {
		t.Errorf("Expected region size %d, got %d", sizeX*sizeY*sizeZ, len(region.Labels))
	}
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				got, _ := region.Label(x, y, z)
				want, _ := labels.Label(startX+x, startY+y, startZ+z)
				if got != want {
					t.Errorf("Region label mismatch at (%d,%d,%d): expected %d, got %d", x, y, z, want, got)
				}
			}
		}
	}

	// Voxel (0,0,0) of the region sits where voxel (2,1,1) of the volume was
	world := region.Affine.Apply(models.Point{})
	if world != (models.Point{X: -6, Y: 2, Z: 2}) {
		t.Errorf("Expected region origin (-6, 2, 2), got %v", world)
	}

	// Test invalid parameters
	if _, err := viewer.ExtractRegion(-1, 0, 0, 1, 1, 1); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion(0, 0, 0, 0, 1, 1); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := viewer.ExtractRegion(width-1, 0, 0, 2, 1, 1); err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	depth := 3
	viewer, err := NewViewer(stripedLabels(8, 4, depth), testPalette)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	// Verify files exist
	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	// Test invalid axis
	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
