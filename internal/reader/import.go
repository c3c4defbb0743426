package reader

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/config"
	"github.com/wegman-software/addrmerge/internal/logger"
)

// ReadImport reads the address batch from a JSON file. Records lacking a
// mandatory field are dropped with a warning, as are records outside bbox
// when it is set.
func ReadImport(path string, bbox *config.BBox) ([]*address.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	records, err := address.Decode(f)
	if err != nil {
		return nil, err
	}
	return Validate(records, bbox), nil
}

// Validate filters out records that cannot be conflated
func Validate(records []*address.Address, bbox *config.BBox) []*address.Address {
	log := logger.Get()
	out := records[:0]
	outside := 0
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			if errors.Is(err, address.ErrMissingField) {
				log.Warn("Skipping import record", zap.String("address", rec.String()), zap.Error(err))
			}
			continue
		}
		if bbox != nil && !bbox.Contains(rec.Location.Lat(), rec.Location.Lon()) {
			outside++
			continue
		}
		out = append(out, rec)
	}
	if outside > 0 {
		log.Info("Import records outside bbox skipped", zap.Int("count", outside), zap.String("bbox", bbox.String()))
	}
	log.Info("Import loaded", zap.Int("records", len(out)))
	return out
}

// Extent returns the bounding box of records grown by margin degrees
func Extent(records []*address.Address, margin float64) *config.BBox {
	var b config.BBox
	for _, rec := range records {
		b.Extend(rec.Location.Lat(), rec.Location.Lon())
	}
	if b.IsSet {
		b.MinLon -= margin
		b.MinLat -= margin
		b.MaxLon += margin
		b.MaxLat += margin
	}
	return &b
}
