// Package visualization renders segment label volumes as colour image slices.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"tractseg/internal/models"
	"tractseg/pkg/coloring"
)

// Viewer renders slices of a label volume, colouring each voxel by its segment
type Viewer struct {
	// labels holds the segment label of every voxel
	labels *models.LabelVolume

	// palette holds one colour per label; index 0 is the background
	palette []color.RGBA
}

// NewViewer creates a viewer for a label volume. Label l > 0 is drawn with
// table colour l-1; the table must cover every label present in the volume.
func NewViewer(labels *models.LabelVolume, table coloring.ColorTable) (*Viewer, error) {
	maxLabel := 0
	for _, l := range labels.Labels {
		if l > maxLabel {
			maxLabel = l
		}
	}

	palette := make([]color.RGBA, maxLabel+1)
	palette[0] = color.RGBA{A: 255}
	for l := 1; l <= maxLabel; l++ {
		c, ok := table.Color(l - 1)
		if !ok {
			return nil, fmt.Errorf("%w: no colour for label %d (table has %d)", models.ErrInput, l, table.Len())
		}
		palette[l] = toRGBA(c)
	}

	return &Viewer{labels: labels, palette: palette}, nil
}

// ExtractSlice extracts a 2D colour slice from the label volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	g := v.labels.Grid
	var img *image.RGBA

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= g.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, g.Width)
		}

		img = image.NewRGBA(image.Rect(0, 0, g.Depth, g.Height))
		for y := 0; y < g.Height; y++ {
			for z := 0; z < g.Depth; z++ {
				img.SetRGBA(z, y, v.colorAt(position, y, z))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= g.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, g.Height)
		}

		img = image.NewRGBA(image.Rect(0, 0, g.Width, g.Depth))
		for z := 0; z < g.Depth; z++ {
			for x := 0; x < g.Width; x++ {
				img.SetRGBA(x, z, v.colorAt(x, position, z))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= g.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, g.Depth)
		}

		img = image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.SetRGBA(x, y, v.colorAt(x, y, position))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func (v *Viewer) colorAt(x, y, z int) color.RGBA {
	l, ok := v.labels.Label(x, y, z)
	if !ok || l < 0 || l >= len(v.palette) {
		return v.palette[0]
	}
	return v.palette[l]
}

// ExtractRegion extracts a 3D subregion of the label volume. The region's
// affine is shifted so its voxels keep their world positions.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.LabelVolume, error) {
	g := v.labels.Grid

	// Validate parameters
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	if startX+sizeX > g.Width || startY+sizeY > g.Height || startZ+sizeZ > g.Depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	sub := models.Grid{Width: sizeX, Height: sizeY, Depth: sizeZ, Affine: g.Affine}
	origin := g.Affine.Apply(models.Point{X: float64(startX), Y: float64(startY), Z: float64(startZ)})
	sub.Affine[0][3], sub.Affine[1][3], sub.Affine[2][3] = origin.X, origin.Y, origin.Z
	region := models.NewLabelVolume(sub)

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				srcIdx := g.Index(startX+x, startY+y, startZ+z)
				region.Labels[sub.Index(x, y, z)] = v.labels.Labels[srcIdx]
			}
		}
	}

	return region, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves a sequence of slices along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	g := v.labels.Grid
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = g.Width
	case "y", "Y":
		maxPos = g.Height
	case "z", "Z":
		maxPos = g.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

func toRGBA(c models.RGB) color.RGBA {
	channel := func(f float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
	}
	return color.RGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: 255}
}
