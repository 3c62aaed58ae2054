// Package tractio reads and writes streamline bundles as plain text and
// writes per-point segmentation results as CSV.
//
// The text format has one "x y z" point per line and a blank line between
// streamlines. Lines starting with '#' are comments, except for two
// directives:
//
//	# affine a00 a01 ... a33   16 row-major values, voxel to world
//	# group name [subgroup]
package tractio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tractseg/internal/models"
)

// ReadBundleFile reads a bundle from a text file
func ReadBundleFile(path string) (*models.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening bundle file: %w", err)
	}
	defer f.Close()

	b, err := ReadBundle(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// ReadBundle parses a bundle from r. Without an affine directive the
// bundle affine is the identity.
func ReadBundle(r io.Reader) (*models.Bundle, error) {
	b := models.NewBundle(nil, models.Identity())
	var current models.Streamline

	flush := func() {
		if len(current) > 0 {
			b.Streamlines = append(b.Streamlines, current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			if err := parseDirective(b, strings.Fields(strings.TrimPrefix(line, "#"))); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected 3 coordinates, got %d", models.ErrInput, lineNo, len(fields))
		}
		var xyz [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad coordinate %q", models.ErrInput, lineNo, f)
			}
			xyz[i] = v
		}
		current = append(current, models.Point{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading bundle: %w", err)
	}
	flush()

	return b, nil
}

func parseDirective(b *models.Bundle, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "affine":
		values := make([]float64, 0, 16)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return fmt.Errorf("%w: bad affine value %q", models.ErrInput, f)
			}
			values = append(values, v)
		}
		aff, err := models.NewAffine(values)
		if err != nil {
			return err
		}
		b.Affine = aff
	case "group":
		if len(fields) > 1 {
			b.Group = fields[1]
		}
		if len(fields) > 2 {
			b.Subgroup = fields[2]
		}
	}
	return nil
}

// WriteBundleFile writes a bundle to a text file, creating parent directories
func WriteBundleFile(path string, b *models.Bundle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating bundle file: %w", err)
	}
	if err := WriteBundle(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteBundle writes a bundle in the text format, directives first
func WriteBundle(w io.Writer, b *models.Bundle) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "# affine")
	for _, v := range b.Affine.Values() {
		fmt.Fprintf(bw, " %s", strconv.FormatFloat(v, 'g', -1, 64))
	}
	fmt.Fprintln(bw)
	if b.Group != "" {
		fmt.Fprintf(bw, "# group %s %s\n", b.Group, b.Subgroup)
	}

	for i, s := range b.Streamlines {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		for _, p := range s {
			fmt.Fprintf(bw, "%s %s %s\n",
				strconv.FormatFloat(p.X, 'g', -1, 64),
				strconv.FormatFloat(p.Y, 'g', -1, 64),
				strconv.FormatFloat(p.Z, 'g', -1, 64))
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("error writing bundle: %w", err)
	}
	return nil
}
