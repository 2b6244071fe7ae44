package geoip

import (
	"fmt"
	"math"
	"unicode"
	"unicode/utf8"

	"github.com/oschwald/geoip2-golang"
)

// ASNRecord is a successful ASN lookup. Accessors return ErrFieldMissing when
// the database has no value and an error wrapping ErrFieldMalformed when the
// value is present but unusable.
type ASNRecord struct {
	raw *geoip2.ASN
}

func NewASNRecord(raw *geoip2.ASN) ASNRecord {
	return ASNRecord{raw: raw}
}

// Number returns the autonomous system number. ASN 0 is reserved and treated
// as missing.
func (r ASNRecord) Number() (uint32, error) {
	if r.raw == nil || r.raw.AutonomousSystemNumber == 0 {
		return 0, ErrFieldMissing
	}
	n := uint64(r.raw.AutonomousSystemNumber)
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: autonomous system number %d exceeds 32 bits", ErrFieldMalformed, n)
	}
	return uint32(n), nil
}

func (r ASNRecord) Organization() (string, error) {
	if r.raw == nil {
		return "", ErrFieldMissing
	}
	return text("autonomous system organization", r.raw.AutonomousSystemOrganization)
}

// CityRecord is a successful City lookup.
type CityRecord struct {
	raw *geoip2.City
}

var emptyCity geoip2.City

func NewCityRecord(raw *geoip2.City) CityRecord {
	return CityRecord{raw: raw}
}

// city never returns nil, so a zero CityRecord reads as an empty record.
func (r CityRecord) city() *geoip2.City {
	if r.raw == nil {
		return &emptyCity
	}
	return r.raw
}

func (r CityRecord) PostalCode() (string, error) {
	return text("postal code", r.city().Postal.Code)
}

// SubdivisionCode returns the ISO code of the most general subdivision,
// e.g. the US state.
func (r CityRecord) SubdivisionCode() (string, error) {
	if len(r.city().Subdivisions) == 0 {
		return "", ErrFieldMissing
	}
	return text("subdivision code", r.city().Subdivisions[0].IsoCode)
}

func (r CityRecord) CityName(locale string) (string, error) {
	name, ok := r.city().City.Names[locale]
	if !ok {
		return "", ErrFieldMissing
	}
	return text("city name", name)
}

func (r CityRecord) CountryCode() (string, error) {
	code, err := text("country code", r.city().Country.IsoCode)
	if err != nil {
		return "", err
	}
	if len(code) != 2 || !isLetters(code) {
		return "", fmt.Errorf("%w: country code %q is not ISO 3166-1 alpha-2", ErrFieldMalformed, code)
	}
	return code, nil
}

func (r CityRecord) Latitude() (float64, error) {
	if !r.hasLocation() {
		return 0, ErrFieldMissing
	}
	return coordinate("latitude", r.city().Location.Latitude, 90)
}

func (r CityRecord) Longitude() (float64, error) {
	if !r.hasLocation() {
		return 0, ErrFieldMissing
	}
	return coordinate("longitude", r.city().Location.Longitude, 180)
}

// AccuracyRadius is the radius in kilometers around the coordinates.
func (r CityRecord) AccuracyRadius() (uint16, error) {
	if r.city().Location.AccuracyRadius == 0 {
		return 0, ErrFieldMissing
	}
	return r.city().Location.AccuracyRadius, nil
}

// The decoder leaves an absent location as the zero value.
func (r CityRecord) hasLocation() bool {
	loc := r.city().Location
	return loc.Latitude != 0 || loc.Longitude != 0 || loc.AccuracyRadius != 0
}

func text(field, value string) (string, error) {
	if value == "" {
		return "", ErrFieldMissing
	}
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrFieldMalformed, field)
	}
	return value, nil
}

func coordinate(field string, value, limit float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || math.Abs(value) > limit {
		return 0, fmt.Errorf("%w: %s %v out of range", ErrFieldMalformed, field, value)
	}
	return value, nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
