package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/addrmerge/internal/style"
)

// BBox represents a geographic bounding box
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Extend grows the bounding box to include the point
func (b *BBox) Extend(lat, lon float64) {
	if !b.IsSet {
		*b = BBox{MinLon: lon, MinLat: lat, MaxLon: lon, MaxLat: lat, IsSet: true}
		return
	}
	b.MinLon = math.Min(b.MinLon, lon)
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLon = math.Max(b.MaxLon, lon)
	b.MaxLat = math.Max(b.MaxLat, lat)
}

func (b *BBox) String() string {
	if !b.IsSet {
		return ""
	}
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	// Validate
	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// MergeConfig holds the distance thresholds of the conflation rules, in
// meters
type MergeConfig struct {
	NearestCandidates int       `yaml:"nearest_candidates"`
	FarMatchMeters    float64   `yaml:"far_match_meters"`   // exact matches farther away get a fixme
	RelocatedMeters   float64   `yaml:"relocated_meters"`   // nearest exact match farther away creates a new point
	SamePlaceMeters   float64   `yaml:"same_place_meters"`  // same housenumber this close is the same address
	FixupPointMeters  float64   `yaml:"fixup_point_meters"` // street fixup radius for points
	FixupAreaMeters   float64   `yaml:"fixup_area_meters"`  // street fixup radius for buildings
	BuildingBuffers   []float64 `yaml:"building_buffers"`
}

// DefaultMergeConfig returns the standard conflation thresholds
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		NearestCandidates: 10,
		FarMatchMeters:    100,
		RelocatedMeters:   50,
		SamePlaceMeters:   2,
		FixupPointMeters:  5,
		FixupAreaMeters:   10,
		BuildingBuffers:   []float64{0, 2, 5, 10},
	}
}

// Config holds the global configuration for a conflation run
type Config struct {
	// Input settings
	SnapshotFile string // existing map data (.osm or .osm.pbf)
	ImportFile   string // address batch (JSON)
	BoundaryFile string // administrative boundary (GeoJSON or .osm)
	BBox         *BBox  // restricts the import batch

	// Output settings
	OutputFile string
	Format     string // "josm" or "osc"
	FullMode   bool   // emit every entity instead of the changed closure

	// Normalization
	MappingFile string // YAML street/city mapping table
	LuaScript   string // Lua normalizer script
	NoMapping   bool

	// Snapshot candidate filter
	Filter *style.Config

	// Processing settings
	Workers int
	Merge   MergeConfig

	Verbose bool

	// Logging and metrics
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for system metrics logging
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OutputFile:      "result.osm",
		Format:          "josm",
		Filter:          style.DefaultConfig(),
		Workers:         runtime.NumCPU(),
		Merge:           DefaultMergeConfig(),
		Verbose:         false,
		LogFile:         "",               // No file logging by default
		MetricsInterval: 30 * time.Second, // Log system metrics every 30 seconds
	}
}

// fileConfig is the YAML layout of a config file. Absent sections keep
// their current values.
type fileConfig struct {
	Workers int           `yaml:"workers"`
	Mapping string        `yaml:"mapping"`
	Merge   *MergeConfig  `yaml:"merge"`
	Filter  *style.Config `yaml:"filter"`
}

// LoadFile overlays settings from a YAML config file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Merge: &c.Merge}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if fc.Workers > 0 {
		c.Workers = fc.Workers
	}
	if fc.Mapping != "" && c.MappingFile == "" {
		c.MappingFile = fc.Mapping
	}
	if fc.Filter != nil {
		c.Filter = fc.Filter
	}
	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.SnapshotFile == "" {
		return fmt.Errorf("snapshot file is required")
	}
	if c.ImportFile == "" {
		return fmt.Errorf("import file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	switch c.Format {
	case "josm", "osc":
	default:
		return fmt.Errorf("unknown output format %q (want josm or osc)", c.Format)
	}
	if c.MappingFile != "" && c.LuaScript != "" {
		return fmt.Errorf("mapping file and Lua normalizer are mutually exclusive")
	}
	return c.Merge.Validate()
}

// Validate checks that thresholds are usable
func (m *MergeConfig) Validate() error {
	if m.NearestCandidates < 1 {
		return fmt.Errorf("nearest_candidates must be at least 1")
	}
	if m.RelocatedMeters > m.FarMatchMeters {
		return fmt.Errorf("relocated_meters (%.1f) must not exceed far_match_meters (%.1f)", m.RelocatedMeters, m.FarMatchMeters)
	}
	for i, b := range m.BuildingBuffers {
		if b < 0 {
			return fmt.Errorf("building buffer %.1f is negative", b)
		}
		if i > 0 && b <= m.BuildingBuffers[i-1] {
			return fmt.Errorf("building buffers must be increasing")
		}
	}
	return nil
}
