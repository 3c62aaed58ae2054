// Package coloring maps segment labels and bundle statistics to per-point colours.
package coloring

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"tractseg/internal/models"
)

// ColorTable provides the colour of segment i, counted from 0.
// Label l in a label volume uses Color(l-1).
type ColorTable interface {
	Len() int
	Color(i int) (models.RGB, bool)
}

// Palette is an explicit list of colours
type Palette []models.RGB

// Len returns the number of colours
func (p Palette) Len() int { return len(p) }

// Color returns colour i
func (p Palette) Color(i int) (models.RGB, bool) {
	if i < 0 || i >= len(p) {
		return models.RGB{}, false
	}
	return p[i], true
}

// ParsePalette builds a palette from hex strings such as "#ff8800" or "#f80"
// and SVG colour names such as "steelblue"
func ParsePalette(values []string) (Palette, error) {
	p := make(Palette, 0, len(values))
	for _, v := range values {
		c, err := parseColor(v)
		if err != nil {
			return nil, err
		}
		p = append(p, toRGB(c))
	}
	return p, nil
}

func parseColor(v string) (colorful.Color, error) {
	s := strings.TrimSpace(v)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("%w: bad colour %q: %v", models.ErrInput, v, err)
		}
		return c, nil
	}
	named, ok := colornames.Map[strings.ToLower(s)]
	if !ok {
		return colorful.Color{}, fmt.Errorf("%w: unknown colour name %q", models.ErrInput, v)
	}
	c, _ := colorful.MakeColor(named)
	return c, nil
}

// DistinctPalette returns n visually distinct colours. Hues advance by the
// golden ratio and value alternates between neighbours.
func DistinctPalette(n int) Palette {
	const golden = 0.618033988749895
	p := make(Palette, n)
	h := 0.0
	for i := range p {
		v := 0.95
		if i%2 == 1 {
			v = 0.75
		}
		p[i] = toRGB(colorful.Hsv(h*360, 0.7, v))
		h = math.Mod(h+golden, 1)
	}
	return p
}

func toRGB(c colorful.Color) models.RGB {
	c = c.Clamped()
	return models.RGB{c.R, c.G, c.B}
}
