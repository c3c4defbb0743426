package address

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// record is the on-disk form of an address: OSM tag names as keys
type record struct {
	HouseNumber string   `json:"addr:housenumber"`
	Postcode    string   `json:"addr:postcode,omitempty"`
	Street      string   `json:"addr:street,omitempty"`
	City        string   `json:"addr:city,omitempty"`
	Place       string   `json:"addr:place,omitempty"`
	SymUl       string   `json:"teryt:sym_ul,omitempty"`
	Simc        string   `json:"teryt:simc,omitempty"`
	Source      string   `json:"source:addr,omitempty"`
	ExtID       string   `json:"ref:addr,omitempty"`
	Fixme       string   `json:"fixme,omitempty"`
	Location    location `json:"location"`
}

type location struct {
	Lat coord `json:"lat"`
	Lon coord `json:"lon"`
}

// coord accepts both JSON numbers and numeric strings
type coord float64

func (c *coord) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", b, err)
	}
	*c = coord(v)
	return nil
}

// Decode reads a JSON array of address records
func Decode(r io.Reader) ([]*Address, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode address records: %w", err)
	}

	ret := make([]*Address, 0, len(records))
	for _, rec := range records {
		a := &Address{
			HouseNumber: strings.TrimSpace(rec.HouseNumber),
			Postcode:    strings.TrimSpace(rec.Postcode),
			Street:      strings.TrimSpace(rec.Street),
			City:        strings.TrimSpace(rec.City),
			SymUl:       rec.SymUl,
			Simc:        rec.Simc,
			Source:      rec.Source,
			ExtID:       rec.ExtID,
			Location:    orb.Point{float64(rec.Location.Lon), float64(rec.Location.Lat)},
		}
		if a.Street == "" {
			a.City = strings.TrimSpace(rec.Place)
			if a.City == "" {
				a.City = strings.TrimSpace(rec.City)
			}
		}
		a.AddFixme(rec.Fixme)
		ret = append(ret, a)
	}
	return ret, nil
}
