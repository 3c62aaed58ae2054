package tractio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"tractseg/internal/models"
)

// pointsHeader is the column layout of the per-point CSV
var pointsHeader = []string{"streamline", "point", "x", "y", "z", "label", "r", "g", "b"}

// WritePointsFile writes per-point labels and colours to a CSV file
func WritePointsFile(path string, b *models.Bundle, labels []int, colors []models.RGB) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating points file: %w", err)
	}
	if err := WritePoints(f, b, labels, colors); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePoints writes one CSV row per bundle point. labels may be nil, in
// which case the label column is left empty; colors must cover every point.
func WritePoints(w io.Writer, b *models.Bundle, labels []int, colors []models.RGB) error {
	n := b.NumPoints()
	if labels != nil && len(labels) != n {
		return fmt.Errorf("%w: %d labels for %d points", models.ErrInput, len(labels), n)
	}
	if len(colors) != n {
		return fmt.Errorf("%w: %d colours for %d points", models.ErrInput, len(colors), n)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(pointsHeader); err != nil {
		return fmt.Errorf("error writing points header: %w", err)
	}

	idx := 0
	for si, s := range b.Streamlines {
		for pi, p := range s {
			label := ""
			if labels != nil {
				label = strconv.Itoa(labels[idx])
			}
			c := colors[idx]
			record := []string{
				strconv.Itoa(si),
				strconv.Itoa(pi),
				formatFloat(p.X),
				formatFloat(p.Y),
				formatFloat(p.Z),
				label,
				formatFloat(c[0]),
				formatFloat(c[1]),
				formatFloat(c[2]),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("error writing point %d: %w", idx, err)
			}
			idx++
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("error flushing points: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
