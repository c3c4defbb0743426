// Package style decides which snapshot entities are offered to conflation
// as candidates.
package style

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/addrmerge/internal/entity"
)

// Config holds one rule set per entity kind
type Config struct {
	// Nodes configuration for points
	Nodes *FilterConfig `yaml:"nodes,omitempty"`
	// Ways configuration for closed ways
	Ways *FilterConfig `yaml:"ways,omitempty"`
	// Relations configuration for multipolygons
	Relations *FilterConfig `yaml:"relations,omitempty"`
}

// FilterConfig defines filtering rules for one entity kind
type FilterConfig struct {
	// Include specifies which tag keys/values to include
	// If empty, all tags are included (no filtering)
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude specifies which tag keys/values to exclude
	// Applied after include rules
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny specifies that at least one of these tags must be present
	// If empty, no requirement
	RequireAny []string `yaml:"require_any,omitempty"`
}

// LoadConfig loads a filter configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse filter YAML: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns the address candidate rules: address points that
// are not POIs, and buildings or addressed ways and relations
func DefaultConfig() *Config {
	poi := map[string][]string{
		"amenity":   nil,
		"shop":      nil,
		"tourism":   nil,
		"emergency": nil,
		"company":   nil,
	}
	return &Config{
		Nodes: &FilterConfig{
			RequireAny: []string{entity.TagHouseNumber},
			Exclude:    poi,
		},
		Ways: &FilterConfig{
			RequireAny: []string{entity.TagBuilding, entity.TagHouseNumber},
		},
		Relations: &FilterConfig{
			RequireAny: []string{entity.TagBuilding, entity.TagHouseNumber},
		},
	}
}

// Candidates builds the per-kind filters of the configuration
func (c *Config) Candidates() *Candidates {
	if c == nil {
		c = &Config{}
	}
	return &Candidates{
		nodes:     NewFilter(c.Nodes),
		ways:      NewFilter(c.Ways),
		relations: NewFilter(c.Relations),
	}
}

// Candidates applies the rule set matching an entity's kind
type Candidates struct {
	nodes, ways, relations *Filter
}

// Match reports whether e is a conflation candidate
func (c *Candidates) Match(e *entity.Entity) bool {
	switch e.Kind {
	case entity.KindPoint:
		return c.nodes.Match(e.Tags)
	case entity.KindLine:
		return c.ways.Match(e.Tags)
	case entity.KindArea:
		return c.relations.Match(e.Tags)
	}
	return false
}

// Filter checks if tags match the filter configuration
type Filter struct {
	cfg *FilterConfig
}

// NewFilter creates a filter from configuration
func NewFilter(cfg *FilterConfig) *Filter {
	if cfg == nil {
		return &Filter{cfg: &FilterConfig{}}
	}
	return &Filter{cfg: cfg}
}

// Match checks if the given tags match the filter rules
// Returns true if the entity should be included
func (f *Filter) Match(tags *entity.Tags) bool {
	if f.cfg == nil {
		return true
	}

	// Check require_any - at least one tag must be present
	if len(f.cfg.RequireAny) > 0 {
		found := false
		for _, key := range f.cfg.RequireAny {
			if tags.Has(key) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Check include rules
	if len(f.cfg.Include) > 0 {
		matched := false
		for key, values := range f.cfg.Include {
			if tagValue, ok := tags.Lookup(key); ok && matchValue(values, tagValue) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	// Check exclude rules
	for key, values := range f.cfg.Exclude {
		if tagValue, ok := tags.Lookup(key); ok && matchValue(values, tagValue) {
			return false
		}
	}

	return true
}

// matchValue reports whether v is listed; an empty list matches any value
func matchValue(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, allowed := range values {
		if allowed == v || allowed == "*" {
			return true
		}
	}
	return false
}

// HasFilter returns true if filtering is enabled
func (f *Filter) HasFilter() bool {
	if f.cfg == nil {
		return false
	}
	return len(f.cfg.Include) > 0 || len(f.cfg.Exclude) > 0 || len(f.cfg.RequireAny) > 0
}
