package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantSet bool
		wantErr bool
	}{
		{"empty", "", false, false},
		{"valid", "15.2,51.0,15.4,51.2", true, false},
		{"spaces", " 15.2, 51.0 ,15.4,51.2", true, false},
		{"three values", "15.2,51.0,15.4", false, true},
		{"not a number", "a,51.0,15.4,51.2", false, true},
		{"inverted lon", "15.4,51.0,15.2,51.2", false, true},
		{"inverted lat", "15.2,51.2,15.4,51.0", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBBox(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBBox(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got.IsSet != tt.wantSet {
				t.Errorf("ParseBBox(%q).IsSet = %v, want %v", tt.input, got.IsSet, tt.wantSet)
			}
		})
	}
}

func TestBBoxExtend(t *testing.T) {
	var b BBox
	if !b.Contains(89, 179) {
		t.Error("unset bbox should contain everything")
	}
	b.Extend(51.1, 15.3)
	b.Extend(51.0, 15.4)
	if !b.Contains(51.05, 15.35) {
		t.Error("bbox should contain a point between the extremes")
	}
	if b.Contains(51.2, 15.35) {
		t.Error("bbox should not contain a point north of the extremes")
	}
	if b.MinLat != 51.0 || b.MaxLon != 15.4 {
		t.Errorf("bbox = %s", b.String())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.SnapshotFile = "snapshot.osm"
		c.ImportFile = "import.json"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no snapshot", func(c *Config) { c.SnapshotFile = "" }, true},
		{"no import", func(c *Config) { c.ImportFile = "" }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"osc", func(c *Config) { c.Format = "osc" }, false},
		{"unknown format", func(c *Config) { c.Format = "geojson" }, true},
		{"two normalizers", func(c *Config) { c.MappingFile = "m.yaml"; c.LuaScript = "n.lua" }, true},
		{"no candidates", func(c *Config) { c.Merge.NearestCandidates = 0 }, true},
		{"relocated beyond far", func(c *Config) { c.Merge.RelocatedMeters = 200 }, true},
		{"negative buffer", func(c *Config) { c.Merge.BuildingBuffers = []float64{-1, 2} }, true},
		{"unordered buffers", func(c *Config) { c.Merge.BuildingBuffers = []float64{0, 5, 2} }, true},
		{"no buffers", func(c *Config) { c.Merge.BuildingBuffers = nil }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	data := `
workers: 3
mapping: streets.yaml
merge:
  far_match_meters: 150
  building_buffers: [0, 3]
filter:
  nodes:
    require_any: [addr:housenumber]
`
	path := filepath.Join(t.TempDir(), "addrmerge.yaml")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c := DefaultConfig()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.Workers != 3 {
		t.Errorf("Workers = %d, want 3", c.Workers)
	}
	if c.MappingFile != "streets.yaml" {
		t.Errorf("MappingFile = %q, want streets.yaml", c.MappingFile)
	}
	if c.Merge.FarMatchMeters != 150 {
		t.Errorf("FarMatchMeters = %v, want 150", c.Merge.FarMatchMeters)
	}
	// unset thresholds keep their defaults
	if c.Merge.RelocatedMeters != 50 {
		t.Errorf("RelocatedMeters = %v, want 50", c.Merge.RelocatedMeters)
	}
	if len(c.Merge.BuildingBuffers) != 2 {
		t.Errorf("BuildingBuffers = %v, want [0 3]", c.Merge.BuildingBuffers)
	}
	if c.Filter.Nodes == nil || c.Filter.Ways != nil {
		t.Errorf("Filter = %+v, want nodes rules only", c.Filter)
	}
}

func TestLoadFileMissing(t *testing.T) {
	c := DefaultConfig()
	if err := c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() error = nil, want error")
	}
}
