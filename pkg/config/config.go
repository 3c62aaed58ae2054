// Package config provides configuration loading and management for tractseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"tractseg/internal/models"
	"tractseg/pkg/centroid"
	"tractseg/pkg/coloring"
	"tractseg/pkg/correspondence"
	"tractseg/pkg/segmentation"
)

// DefaultNumSegments is used when neither the configuration nor a colour table sets the count
const DefaultNumSegments = 10

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many bundles are segmented concurrently
		NumCores int `yaml:"numCores"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"processing"`

	// Segmentation parameters
	Segmentation struct {
		// NumSegments is the number of segment boundaries along the bundle.
		// Zero takes it from the colour table (one colour per label) or,
		// without a table, uses DefaultNumSegments.
		NumSegments int `yaml:"numSegments"`

		// SubjectPoints is the resampling size of subject centroids
		SubjectPoints int `yaml:"subjectPoints"`

		// ClusterThreshold is the QuickBundles distance threshold in mm
		ClusterThreshold float64 `yaml:"clusterThreshold"`

		// MaxClusters caps the number of subject sub-clusters
		MaxClusters int `yaml:"maxClusters"`

		// OutlierSigma drops correspondence sets shorter than mean - sigma*std
		OutlierSigma float64 `yaml:"outlierSigma"`

		// InstabilityThreshold is the largest spread a stable position may have
		InstabilityThreshold float64 `yaml:"instabilityThreshold"`
	} `yaml:"segmentation"`

	// Reference volume the bundle mask is painted on.
	// A zero width means the grid is derived from the bundle extent.
	Reference struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
		Depth  int `yaml:"depth"`

		// Affine holds 16 row-major values mapping voxels to world coordinates
		Affine []float64 `yaml:"affine"`
	} `yaml:"reference"`

	// Segment colouring
	Colors struct {
		// Palette is an explicit list of hex colours, one per segment
		Palette []string `yaml:"palette"`

		// Stats is a CSV of per-segment statistics; it takes precedence over Palette
		Stats string `yaml:"stats"`

		// Colormap names the map used for statistics
		Colormap string `yaml:"colormap"`

		// Range clamps statistic values before normalisation; empty means data range
		Range []float64 `yaml:"range"`

		// PThreshold greys out rows with larger p-values when Range is set
		PThreshold float64 `yaml:"pThreshold"`

		// LogP colours by -log10(p) instead of Value
		LogP bool `yaml:"logP"`

		// Group restricts statistics rows to one Name
		Group string `yaml:"group"`
	} `yaml:"colors"`

	// Output parameters
	Output struct {
		// PointsCSV is the per-point label and colour table, relative to the output directory
		PointsCSV string `yaml:"pointsCSV"`

		// SlicesDir is where label slices are written when SaveSlices is set
		SlicesDir string `yaml:"slicesDir"`

		// SaveSlices writes PNG slices of the label volume
		SaveSlices bool `yaml:"saveSlices"`

		// SaveIntermediaryResults writes centroids and correspondence sets of every stage
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary results are saved, relative to the bundle's output directory
		IntermediaryDir string `yaml:"intermediaryDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Verbose = true

	// Set default segmentation parameters
	cfg.Segmentation.NumSegments = 0
	cfg.Segmentation.SubjectPoints = 500
	cfg.Segmentation.ClusterThreshold = 2.0
	cfg.Segmentation.MaxClusters = centroid.DefaultMaxClusters
	cfg.Segmentation.OutlierSigma = correspondence.DefaultOutlierSigma
	cfg.Segmentation.InstabilityThreshold = correspondence.DefaultInstability

	// Identity reference; the grid is sized from the bundle
	cfg.Reference.Affine = models.Identity().Values()

	// Set default colour parameters
	cfg.Colors.Colormap = "viridis"
	cfg.Colors.PThreshold = 0.05

	// Set default output parameters
	cfg.Output.PointsCSV = "points.csv"
	cfg.Output.SlicesDir = "slices"
	cfg.Output.SaveSlices = false
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("%w: numCores must be at least 1, got %d", models.ErrInput, c.Processing.NumCores)
	}
	if c.Segmentation.NumSegments < 0 {
		return fmt.Errorf("%w: numSegments must not be negative, got %d", models.ErrInput, c.Segmentation.NumSegments)
	}
	params := c.SegmentationParams()
	if params.NumSegments == 0 {
		params.NumSegments = DefaultNumSegments
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if c.Colors.Stats == "" && c.Segmentation.NumSegments > 0 && len(c.Colors.Palette) > 0 {
		if err := checkTableSize(len(c.Colors.Palette), c.Segmentation.NumSegments); err != nil {
			return err
		}
	}
	if _, err := models.NewAffine(c.Reference.Affine); err != nil {
		return err
	}
	if c.Reference.Width != 0 {
		if _, err := c.ReferenceGrid(); err != nil {
			return err
		}
	}
	if len(c.Colors.Range) != 0 && len(c.Colors.Range) != 2 {
		return fmt.Errorf("%w: colour range needs 2 values, got %d", models.ErrInput, len(c.Colors.Range))
	}
	if _, err := coloring.LookupColormap(c.Colors.Colormap); err != nil {
		return err
	}
	return nil
}

// SegmentationParams converts the segmentation section into pipeline parameters
func (c *Config) SegmentationParams() *segmentation.Params {
	params := segmentation.DefaultParams(c.Segmentation.NumSegments)
	params.SubjectPoints = c.Segmentation.SubjectPoints
	params.ClusterThreshold = c.Segmentation.ClusterThreshold
	params.MaxClusters = c.Segmentation.MaxClusters
	params.OutlierSigma = c.Segmentation.OutlierSigma
	params.InstabilityThreshold = c.Segmentation.InstabilityThreshold
	params.Verbose = c.Processing.Verbose
	return params
}

// HasReference reports whether an explicit reference grid is configured
func (c *Config) HasReference() bool {
	return c.Reference.Width != 0
}

// ReferenceGrid returns the configured reference grid
func (c *Config) ReferenceGrid() (models.Grid, error) {
	aff, err := models.NewAffine(c.Reference.Affine)
	if err != nil {
		return models.Grid{}, err
	}
	g := models.Grid{
		Width:  c.Reference.Width,
		Height: c.Reference.Height,
		Depth:  c.Reference.Depth,
		Affine: aff,
	}
	if err := g.Validate(); err != nil {
		return models.Grid{}, err
	}
	return g, nil
}

// ResolveColorTable builds the segment colour table and settles the segment
// count against it. Statistics take precedence over an explicit palette.
// A zero NumSegments becomes Len()-1 of the table, or DefaultNumSegments
// without one; a table with fewer than NumSegments+1 colours is an input
// error. With neither statistics nor a palette, nil is returned and the
// pipeline picks a distinct palette.
func (c *Config) ResolveColorTable() (coloring.ColorTable, error) {
	table, err := c.loadColorTable()
	if err != nil {
		return nil, err
	}

	if c.Segmentation.NumSegments == 0 {
		if table == nil {
			c.Segmentation.NumSegments = DefaultNumSegments
			return nil, nil
		}
		if table.Len() < 2 {
			return nil, fmt.Errorf("%w: colour table needs at least 2 colours to derive segments, got %d",
				models.ErrInput, table.Len())
		}
		c.Segmentation.NumSegments = table.Len() - 1
	}
	if table != nil {
		if err := checkTableSize(table.Len(), c.Segmentation.NumSegments); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// checkTableSize reports an input error when size colours cannot cover the
// numSegments+1 labels painted for numSegments segments
func checkTableSize(size, numSegments int) error {
	if size < numSegments+1 {
		return fmt.Errorf("%w: %d segments paint %d labels but the colour table holds %d colours",
			models.ErrInput, numSegments, numSegments+1, size)
	}
	return nil
}

func (c *Config) loadColorTable() (coloring.ColorTable, error) {
	if c.Colors.Stats != "" {
		opts := coloring.StatsOptions{
			Colormap:   c.Colors.Colormap,
			LogP:       c.Colors.LogP,
			PThreshold: c.Colors.PThreshold,
			Group:      c.Colors.Group,
		}
		if len(c.Colors.Range) == 2 {
			opts.Range = &[2]float64{c.Colors.Range[0], c.Colors.Range[1]}
		}
		table, err := coloring.LoadStatsTable(c.Colors.Stats, opts)
		if err != nil {
			return nil, err
		}
		return table, nil
	}
	if len(c.Colors.Palette) > 0 {
		palette, err := coloring.ParsePalette(c.Colors.Palette)
		if err != nil {
			return nil, err
		}
		return palette, nil
	}
	return nil, nil
}
