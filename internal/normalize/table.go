package normalize

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wegman-software/addrmerge/internal/logger"
)

// TableNormalizer maps names through static tables. Street names are looked
// up by spelling first and by registry code second; cities by registry code.
// A registry code mapped to more than one name is ambiguous and leaves the
// original value.
type TableNormalizer struct {
	Streets     map[string]string   `yaml:"streets"`
	StreetCodes map[string][]string `yaml:"street_codes"`
	CityCodes   map[string][]string `yaml:"city_codes"`
}

// LoadTable reads a mapping table from a YAML file
func LoadTable(path string) (*TableNormalizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses a YAML mapping table
func ParseTable(data []byte) (*TableNormalizer, error) {
	t := &TableNormalizer{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	return t, nil
}

func (t *TableNormalizer) Street(name, symUl string) string {
	if mapped, ok := t.Streets[name]; ok {
		logger.Get().Debug("Mapping street", zap.String("from", name), zap.String("to", mapped))
		return mapped
	}
	if symUl == "" {
		return name
	}
	names := t.StreetCodes[symUl]
	switch len(names) {
	case 0:
		return name
	case 1:
		return names[0]
	default:
		logger.Get().Info("Inconsistent street mapping, keeping original",
			zap.String("sym_ul", symUl), zap.String("street", name), zap.Strings("candidates", names))
		return name
	}
}

func (t *TableNormalizer) City(name, simc string) string {
	names := t.CityCodes[simc]
	switch {
	case simc == "" || len(names) == 0:
		return cleanCity(name)
	case len(names) == 1:
		return names[0]
	default:
		logger.Get().Info("Inconsistent city mapping, keeping original",
			zap.String("simc", simc), zap.String("city", name), zap.Strings("candidates", names))
		return name
	}
}
