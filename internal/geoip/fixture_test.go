package geoip

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/maxmind/mmdbwriter"
	"github.com/maxmind/mmdbwriter/mmdbtype"
)

const fixtureNetwork = "8.8.8.0/24"

// buildMMDB serializes a single-network database of the given type.
func buildMMDB(t *testing.T, databaseType string, record mmdbtype.Map) []byte {
	t.Helper()
	tree, err := mmdbwriter.New(mmdbwriter.Options{
		DatabaseType: databaseType,
		RecordSize:   24,
	})
	if err != nil {
		t.Fatalf("Failed to create database writer: %v", err)
	}

	_, network, err := net.ParseCIDR(fixtureNetwork)
	if err != nil {
		t.Fatalf("Failed to parse network: %v", err)
	}
	if err := tree.Insert(network, record); err != nil {
		t.Fatalf("Failed to insert %s: %v", fixtureNetwork, err)
	}

	var buf bytes.Buffer
	if _, err := tree.WriteTo(&buf); err != nil {
		t.Fatalf("Failed to serialize database: %v", err)
	}
	return buf.Bytes()
}

func asnFixture(t *testing.T, number uint32, org string) []byte {
	t.Helper()
	return buildMMDB(t, "GeoLite2-ASN", mmdbtype.Map{
		"autonomous_system_number":       mmdbtype.Uint32(number),
		"autonomous_system_organization": mmdbtype.String(org),
	})
}

func cityFixture(t *testing.T) []byte {
	t.Helper()
	return buildMMDB(t, "GeoLite2-City", mmdbtype.Map{
		"city": mmdbtype.Map{
			"names": mmdbtype.Map{"en": mmdbtype.String("Mountain View")},
		},
		"country": mmdbtype.Map{
			"iso_code": mmdbtype.String("US"),
		},
		"location": mmdbtype.Map{
			"latitude":        mmdbtype.Float64(37.386),
			"longitude":       mmdbtype.Float64(-122.0838),
			"accuracy_radius": mmdbtype.Uint16(1000),
		},
		"postal": mmdbtype.Map{
			"code": mmdbtype.String("94035"),
		},
		"subdivisions": mmdbtype.Slice{
			mmdbtype.Map{"iso_code": mmdbtype.String("CA")},
		},
	})
}

func writeFixture(t *testing.T, name string, payload []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("Failed to write database file: %v", err)
	}
	return path
}
