package geoip

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

func cityWithSubdivisions(t *testing.T, codes ...string) *geoip2.City {
	t.Helper()
	type subdivision struct{ IsoCode string }
	subs := make([]subdivision, len(codes))
	for i, code := range codes {
		subs[i] = subdivision{IsoCode: code}
	}
	payload, err := json.Marshal(map[string]any{"Subdivisions": subs})
	if err != nil {
		t.Fatalf("Failed to build subdivisions: %v", err)
	}
	var city geoip2.City
	if err := json.Unmarshal(payload, &city); err != nil {
		t.Fatalf("Failed to decode subdivisions: %v", err)
	}
	return &city
}

func TestASNRecord_Number(t *testing.T) {
	testCases := []struct {
		name      string
		raw       *geoip2.ASN
		expected  uint32
		expectErr error
	}{
		{"present", &geoip2.ASN{AutonomousSystemNumber: 15169}, 15169, nil},
		{"reserved zero", &geoip2.ASN{}, 0, ErrFieldMissing},
		{"nil record", nil, 0, ErrFieldMissing},
	}

	for _, tc := range testCases {
		got, err := NewASNRecord(tc.raw).Number()
		if !errors.Is(err, tc.expectErr) {
			t.Errorf("For case '%s': expected error %v, got %v", tc.name, tc.expectErr, err)
		}
		if got != tc.expected {
			t.Errorf("For case '%s': expected %d, got %d", tc.name, tc.expected, got)
		}
	}
}

func TestASNRecord_NumberOutOfRange(t *testing.T) {
	if uint64(math.MaxUint) <= math.MaxUint32 {
		t.Skip("uint is 32 bits on this platform")
	}
	raw := &geoip2.ASN{}
	big := uint64(math.MaxUint32) + 1
	raw.AutonomousSystemNumber = uint(big)

	_, err := NewASNRecord(raw).Number()
	if !errors.Is(err, ErrFieldMalformed) {
		t.Errorf("Expected ErrFieldMalformed, got %v", err)
	}
}

func TestASNRecord_Organization(t *testing.T) {
	org, err := NewASNRecord(&geoip2.ASN{AutonomousSystemOrganization: "GOOGLE"}).Organization()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if org != "GOOGLE" {
		t.Errorf("Expected 'GOOGLE', got '%s'", org)
	}
}

func TestCityRecord_FullRecord(t *testing.T) {
	raw := cityWithSubdivisions(t, "CA", "SF")
	raw.Postal.Code = "94043"
	raw.City.Names = map[string]string{"en": "Mountain View", "de": "Mountain View"}
	raw.Country.IsoCode = "US"
	raw.Location.Latitude = 37.4
	raw.Location.Longitude = -122.07
	raw.Location.AccuracyRadius = 1000

	rec := NewCityRecord(raw)

	if zip, err := rec.PostalCode(); err != nil || zip != "94043" {
		t.Errorf("Expected postal code '94043', got '%s' (%v)", zip, err)
	}
	if state, err := rec.SubdivisionCode(); err != nil || state != "CA" {
		t.Errorf("Expected first subdivision 'CA', got '%s' (%v)", state, err)
	}
	if city, err := rec.CityName("en"); err != nil || city != "Mountain View" {
		t.Errorf("Expected city 'Mountain View', got '%s' (%v)", city, err)
	}
	if country, err := rec.CountryCode(); err != nil || country != "US" {
		t.Errorf("Expected country 'US', got '%s' (%v)", country, err)
	}
	if lat, err := rec.Latitude(); err != nil || lat != 37.4 {
		t.Errorf("Expected latitude 37.4, got %f (%v)", lat, err)
	}
	if lon, err := rec.Longitude(); err != nil || lon != -122.07 {
		t.Errorf("Expected longitude -122.07, got %f (%v)", lon, err)
	}
	if radius, err := rec.AccuracyRadius(); err != nil || radius != 1000 {
		t.Errorf("Expected accuracy radius 1000, got %d (%v)", radius, err)
	}
}

func TestCityRecord_EmptyRecord(t *testing.T) {
	rec := NewCityRecord(&geoip2.City{})

	checks := map[string]error{}
	_, checks["postal"] = rec.PostalCode()
	_, checks["subdivision"] = rec.SubdivisionCode()
	_, checks["city"] = rec.CityName("en")
	_, checks["country"] = rec.CountryCode()
	_, checks["latitude"] = rec.Latitude()
	_, checks["longitude"] = rec.Longitude()
	_, checks["radius"] = rec.AccuracyRadius()

	for field, err := range checks {
		if !errors.Is(err, ErrFieldMissing) {
			t.Errorf("For field '%s': expected ErrFieldMissing, got %v", field, err)
		}
	}
}

func TestCityRecord_MissingLocale(t *testing.T) {
	raw := &geoip2.City{}
	raw.City.Names = map[string]string{"de": "München"}

	_, err := NewCityRecord(raw).CityName("en")
	if !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for missing locale, got %v", err)
	}
}

func TestCityRecord_MalformedFields(t *testing.T) {
	raw := &geoip2.City{}
	raw.City.Names = map[string]string{"en": "\xff\xfe"}
	raw.Country.IsoCode = "USA"
	raw.Location.Latitude = 123.0
	raw.Location.Longitude = math.NaN()

	rec := NewCityRecord(raw)

	if _, err := rec.CityName("en"); !errors.Is(err, ErrFieldMalformed) {
		t.Errorf("Expected malformed city name, got %v", err)
	}
	if _, err := rec.CountryCode(); !errors.Is(err, ErrFieldMalformed) {
		t.Errorf("Expected malformed country code, got %v", err)
	}
	if _, err := rec.Latitude(); !errors.Is(err, ErrFieldMalformed) {
		t.Errorf("Expected malformed latitude, got %v", err)
	}
	if _, err := rec.Longitude(); !errors.Is(err, ErrFieldMalformed) {
		t.Errorf("Expected malformed longitude, got %v", err)
	}
}

func TestCityRecord_ZeroLatitudeWithLongitude(t *testing.T) {
	raw := &geoip2.City{}
	raw.Location.Longitude = 9.5

	rec := NewCityRecord(raw)
	lat, err := rec.Latitude()
	if err != nil {
		t.Fatalf("Expected equator latitude to be present, got %v", err)
	}
	if lat != 0 {
		t.Errorf("Expected latitude 0, got %f", lat)
	}
}

func TestNewCityRecord_Nil(t *testing.T) {
	if _, err := NewCityRecord(nil).PostalCode(); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for nil record, got %v", err)
	}
}

func TestCityRecord_ZeroValue(t *testing.T) {
	var r CityRecord

	if _, err := r.PostalCode(); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for postal code, got %v", err)
	}
	if _, err := r.SubdivisionCode(); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for subdivision, got %v", err)
	}
	if _, err := r.CityName("en"); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for city name, got %v", err)
	}
	if _, err := r.CountryCode(); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for country code, got %v", err)
	}
	if _, err := r.Latitude(); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for latitude, got %v", err)
	}
	if _, err := r.Longitude(); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for longitude, got %v", err)
	}
	if _, err := r.AccuracyRadius(); !errors.Is(err, ErrFieldMissing) {
		t.Errorf("Expected ErrFieldMissing for accuracy radius, got %v", err)
	}
}
