// Package normalize canonicalizes street and city names of import records
// before conflation.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/logger"
)

// Normalizer maps import spellings of street and city names to the
// spelling used on the map. Registry codes may be empty.
type Normalizer interface {
	Street(name, symUl string) string
	City(name, simc string) string
}

// Apply normalizes the street and city of every record in place and
// returns the number of records that changed
func Apply(n Normalizer, records []*address.Address) int {
	changed := 0
	for _, a := range records {
		street, city := a.Street, a.City
		if a.Street != "" {
			a.Street = n.Street(a.Street, a.SymUl)
		}
		a.City = n.City(a.City, a.Simc)
		if a.Street != street || a.City != city {
			changed++
			logger.Get().Debug("Normalized address",
				zap.String("street", street), zap.String("to_street", a.Street),
				zap.String("city", city), zap.String("to_city", a.City))
		}
	}
	return changed
}

// Identity leaves names untouched (no-mapping mode)
type Identity struct{}

func (Identity) Street(name, _ string) string { return name }
func (Identity) City(name, _ string) string   { return name }

// cleanCity joins hyphenated city names written with spaces around the dash
func cleanCity(name string) string {
	return strings.ReplaceAll(name, " - ", "-")
}
