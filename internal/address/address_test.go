package address

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/addrmerge/internal/entity"
)

func TestMakeKey(t *testing.T) {
	tests := []struct {
		name                      string
		city, street, housenumber string
		want                      Key
	}{
		{
			name:        "street address",
			city:        "Lubań",
			street:      "Kościuszki",
			housenumber: "5",
			want:        Key{City: "LUBAŃ", Street: "KOŚCIUSZKI", HouseNumber: "5"},
		},
		{
			name:        "place address uses city as street",
			city:        "Olszyna",
			housenumber: "12 a",
			want:        Key{City: "OLSZYNA", Street: "OLSZYNA", HouseNumber: "12a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MakeKey(tt.city, tt.street, tt.housenumber); got != tt.want {
				t.Errorf("MakeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	base := func() *Address {
		return &Address{HouseNumber: "5", Street: "Kościuszki", City: "Lubań", Simc: "0986283", SymUl: "09123"}
	}

	tests := []struct {
		name   string
		modify func(a *Address)
		want   bool
	}{
		{"identical", func(a *Address) {}, true},
		{"street spelling differs", func(a *Address) { a.Street = "Tadeusza Kościuszki" }, true},
		{"housenumber case and spaces", func(a *Address) { a.HouseNumber = " 5 " }, true},
		{"different housenumber", func(a *Address) { a.HouseNumber = "7" }, false},
		{"different simc", func(a *Address) { a.Simc = "1111111" }, false},
		{"simc missing, same city", func(a *Address) { a.Simc = "" }, true},
		{"simc missing, different city", func(a *Address) { a.Simc = ""; a.City = "Zgorzelec" }, false},
		{"different sym_ul", func(a *Address) { a.SymUl = "00001" }, false},
		{"sym_ul missing", func(a *Address) { a.SymUl = "" }, true},
		{"external id on one side only", func(a *Address) { a.HouseNumber = "99"; a.ExtID = "X1" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := base(), base()
			tt.modify(b)
			if got := Similar(a, b); got != tt.want {
				t.Errorf("Similar(a, b) = %v, want %v", got, tt.want)
			}
			if Similar(a, b) != Similar(b, a) {
				t.Error("Similar is not symmetric")
			}
		})
	}
}

func TestSimilarByExternalID(t *testing.T) {
	a := &Address{HouseNumber: "5", City: "Lubań", ExtID: "PL.1"}
	b := &Address{HouseNumber: "7", City: "Zgorzelec", ExtID: "PL.1"}
	if !Similar(a, b) || !Similar(b, a) {
		t.Error("records sharing an external id should be similar")
	}
}

func TestValidate(t *testing.T) {
	ok := &Address{HouseNumber: "5", City: "Lubań", Location: orb.Point{15.3, 51.1}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing := []*Address{
		{City: "Lubań", Location: orb.Point{15.3, 51.1}},
		{HouseNumber: "5", Location: orb.Point{15.3, 51.1}},
		{HouseNumber: "5", City: "Lubań"},
	}
	for _, a := range missing {
		if err := a.Validate(); !errors.Is(err, ErrMissingField) {
			t.Errorf("Validate(%v) = %v, want ErrMissingField", a, err)
		}
	}
}

func TestNotesAreAppendOnly(t *testing.T) {
	a := &Address{}
	a.AddFixme("one")
	a.AddFixme("two")
	a.AddFixme("one")
	if got, want := a.Fixme(), "one; two"; got != want {
		t.Errorf("Fixme() = %q, want %q", got, want)
	}
}

func TestTagsForStreetAndPlace(t *testing.T) {
	street := &Address{HouseNumber: "5", Street: "Kościuszki", City: "Lubań", Source: "gugik"}
	tags := street.Tags()
	if tags.Get(entity.TagCity) != "Lubań" || tags.Get(entity.TagStreet) != "Kościuszki" || tags.Has(entity.TagPlace) {
		t.Errorf("unexpected street tags: %v", tags.Map())
	}

	place := &Address{HouseNumber: "12", City: "Olszyna"}
	tags = place.Tags()
	if tags.Get(entity.TagPlace) != "Olszyna" || tags.Has(entity.TagStreet) || tags.Has(entity.TagCity) {
		t.Errorf("unexpected place tags: %v", tags.Map())
	}
}

func TestFromEntityRoundTripsKey(t *testing.T) {
	rec := &Address{HouseNumber: "5", Street: "Kościuszki", City: "Lubań"}
	e := entity.NewPoint(1, 15.3, 51.1, rec.Tags())
	got := FromEntity(e, e.Point())
	if got.Key() != rec.Key() {
		t.Errorf("key = %v, want %v", got.Key(), rec.Key())
	}
}

func TestDecode(t *testing.T) {
	input := `[
		{"addr:housenumber": "5", "addr:street": "Kościuszki", "addr:city": "Lubań",
		 "teryt:simc": "0986283", "location": {"lat": 51.1, "lon": 15.3}},
		{"addr:housenumber": "12", "addr:place": "Olszyna", "fixme": "check",
		 "location": {"lat": "51.05", "lon": "15.25"}}
	]`

	got, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Location != (orb.Point{15.3, 51.1}) {
		t.Errorf("location = %v, want [15.3 51.1]", got[0].Location)
	}
	if got[1].City != "Olszyna" || got[1].Street != "" {
		t.Errorf("place record decoded as city=%q street=%q", got[1].City, got[1].Street)
	}
	if got[1].Location != (orb.Point{15.25, 51.05}) {
		t.Errorf("string coordinates decoded as %v", got[1].Location)
	}
	if got[1].Fixme() != "check" {
		t.Errorf("fixme = %q, want %q", got[1].Fixme(), "check")
	}
}
