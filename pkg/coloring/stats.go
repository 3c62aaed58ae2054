package coloring

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"tractseg/internal/models"
)

// StatsOptions controls how a per-segment statistics table becomes colours
type StatsOptions struct {
	// Colormap is the colormap name, see Colormaps
	Colormap string

	// LogP colours by -log10(P_value) instead of Value
	LogP bool

	// Range fixes the normalisation range. When set, rows whose P_value
	// exceeds PThreshold are painted grey.
	Range      *[2]float64
	PThreshold float64

	// Group keeps only rows whose Name column matches; empty keeps all rows
	Group string
}

// insignificant is the colour of rows above the p-value threshold
var insignificant = models.RGB{0.5, 0.5, 0.5}

// StatsTable is a colour table built from per-segment statistics.
// Colours are ordered by segment label.
type StatsTable struct {
	Palette

	// Labels holds the segment label of every colour
	Labels []float64

	// Min and Max are the normalisation bounds that were applied
	Min, Max float64
}

type statsRow struct {
	label, value, p float64
}

// LoadStatsTable reads a statistics CSV from disk
func LoadStatsTable(path string, opts StatsOptions) (*StatsTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening stats file: %w", err)
	}
	defer f.Close()
	return ReadStatsTable(f, opts)
}

// ReadStatsTable reads a CSV with the columns Labels, Value and P_value, plus
// an optional Name column, and colours each row through the colormap.
func ReadStatsTable(r io.Reader, opts StatsOptions) (*StatsTable, error) {
	name := opts.Colormap
	if name == "" {
		name = "viridis"
	}
	cmap, err := LookupColormap(name)
	if err != nil {
		return nil, err
	}

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error parsing stats file: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: stats file has no rows", models.ErrInput)
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		cols[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Labels", "Value", "P_value"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: stats file is missing column %q", models.ErrInput, required)
		}
	}
	nameCol, hasName := cols["Name"]

	var rows []statsRow
	for line, rec := range records[1:] {
		if opts.Group != "" && (!hasName || strings.TrimSpace(rec[nameCol]) != opts.Group) {
			continue
		}
		row, err := parseStatsRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("stats line %d: %w", line+2, err)
		}
		if math.IsNaN(row.label) {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no usable rows in stats file", models.ErrInput)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].label < rows[j].label })

	metric := func(r statsRow) float64 {
		if opts.LogP {
			return -math.Log10(r.p)
		}
		return r.value
	}

	t := &StatsTable{Min: math.Inf(1), Max: math.Inf(-1)}
	if opts.Range != nil {
		t.Min, t.Max = opts.Range[0], opts.Range[1]
	} else {
		for _, r := range rows {
			v := metric(r)
			t.Min = math.Min(t.Min, v)
			t.Max = math.Max(t.Max, v)
		}
	}

	for _, r := range rows {
		t.Labels = append(t.Labels, r.label)
		if opts.Range != nil && r.p > opts.PThreshold {
			t.Palette = append(t.Palette, insignificant)
			continue
		}
		t.Palette = append(t.Palette, cmap.At(normalize(metric(r), t.Min, t.Max)))
	}
	return t, nil
}

func parseStatsRow(rec []string, cols map[string]int) (statsRow, error) {
	var row statsRow
	fields := []struct {
		name string
		dst  *float64
	}{
		{"Labels", &row.label},
		{"Value", &row.value},
		{"P_value", &row.p},
	}
	for _, f := range fields {
		idx := cols[f.name]
		if idx >= len(rec) {
			return row, fmt.Errorf("%w: missing %s", models.ErrInput, f.name)
		}
		s := strings.TrimSpace(rec[idx])
		if s == "" {
			*f.dst = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return row, fmt.Errorf("%w: bad %s %q", models.ErrInput, f.name, s)
		}
		*f.dst = v
	}
	return row, nil
}

// normalize maps v from [lo, hi] to [0, 1]; a zero-width range maps to 0
func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
