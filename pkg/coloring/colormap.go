package coloring

import (
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"tractseg/internal/models"
)

// Colormap maps values in [0, 1] to colours by blending evenly spaced stops in Lab space
type Colormap struct {
	Name  string
	stops []colorful.Color
}

var colormapStops = map[string][]string{
	"viridis":  {"#440154", "#482878", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#fde725"},
	"plasma":   {"#0d0887", "#46039f", "#7201a8", "#9c179e", "#bd3786", "#d8576b", "#ed7953", "#fb9f3a", "#fdca26", "#f0f921"},
	"coolwarm": {"#3b4cc0", "#688aef", "#99baff", "#c9d7f0", "#edd1c2", "#f7a889", "#e36a53", "#b40426"},
	"hot":      {"#0b0000", "#ff0000", "#ffff00", "#ffffff"},
	"gray":     {"#000000", "#ffffff"},
	"RdBu":     {"#67001f", "#b2182b", "#d6604d", "#f4a582", "#fddbc7", "#f7f7f7", "#d1e5f0", "#92c5de", "#4393c3", "#2166ac", "#053061"},
}

// Colormaps lists the available colormap names
func Colormaps() []string {
	names := make([]string, 0, len(colormapStops))
	for name := range colormapStops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupColormap returns the named colormap
func LookupColormap(name string) (*Colormap, error) {
	hexes, ok := colormapStops[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown colormap %q (available: %v)", models.ErrInput, name, Colormaps())
	}
	cm := &Colormap{Name: name, stops: make([]colorful.Color, len(hexes))}
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("colormap %s stop %d: %w", name, i, err)
		}
		cm.stops[i] = c
	}
	return cm, nil
}

// At returns the colour for t; values outside [0, 1] are clamped and NaN maps to the low end
func (cm *Colormap) At(t float64) models.RGB {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	last := len(cm.stops) - 1
	pos := t * float64(last)
	i := int(pos)
	if i >= last {
		return toRGB(cm.stops[last])
	}
	frac := pos - float64(i)
	if frac == 0 {
		return toRGB(cm.stops[i])
	}
	return toRGB(cm.stops[i].BlendLab(cm.stops[i+1], frac))
}
