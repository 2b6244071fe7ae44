// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package geoip

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// Kind is the record family a database holds, matched against the
// database_type metadata (GeoLite2-ASN, GeoIP2-City, DBIP-City-Lite, ...).
type Kind string

const (
	KindASN  Kind = "ASN"
	KindCity Kind = "City"
)

type OpenOptions struct {
	// Verify runs a full structural check of the search tree and data section.
	Verify bool
}

// Database is an opened MaxMind-format database of a single Kind.
type Database struct {
	path string
	kind Kind
	db   *maxminddb.Reader
}

// DatabaseInfo describes an opened database for status reporting.
type DatabaseInfo struct {
	Kind         Kind      `json:"kind"`
	Path         string    `json:"path"`
	DatabaseType string    `json:"database_type"`
	BuildTime    time.Time `json:"build_time"`
	IPVersion    uint      `json:"ip_version"`
	NodeCount    uint      `json:"node_count"`
}

// Open opens the database at path. Files ending in .gz are decompressed into
// memory; anything else is memory-mapped.
func Open(path string, kind Kind, opts OpenOptions) (*Database, error) {
	var (
		reader *maxminddb.Reader
		err    error
	)
	if strings.HasSuffix(path, ".gz") {
		var buf []byte
		buf, err = readGzip(path)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
		reader, err = maxminddb.FromBytes(buf)
	} else {
		reader, err = maxminddb.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if !strings.Contains(reader.Metadata.DatabaseType, string(kind)) {
		reader.Close()
		return nil, fmt.Errorf("%s: %w: got %q, want %s", path, ErrDatabaseType, reader.Metadata.DatabaseType, kind)
	}

	if opts.Verify {
		if err := reader.Verify(); err != nil {
			reader.Close()
			return nil, fmt.Errorf("verify %s: %w", path, err)
		}
	}

	return &Database{path: path, kind: kind, db: reader}, nil
}

// OpenPair opens the ASN and City databases. An empty path leaves that side
// unconfigured; lookups against it are always absent.
func OpenPair(asnPath, cityPath string, opts OpenOptions) (*Database, *Database, error) {
	var asn, city *Database
	var err error
	if asnPath != "" {
		if asn, err = Open(asnPath, KindASN, opts); err != nil {
			return nil, nil, err
		}
	}
	if cityPath != "" {
		if city, err = Open(cityPath, KindCity, opts); err != nil {
			if asn != nil {
				asn.Close()
			}
			return nil, nil, err
		}
	}
	if asn == nil && city == nil {
		return nil, nil, ErrNoDatabase
	}
	return asn, city, nil
}

func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	return io.ReadAll(zr)
}

func (d *Database) ASN(ip net.IP) (*geoip2.ASN, error) {
	if d.kind != KindASN {
		return nil, fmt.Errorf("%w: ASN lookup on %s database", ErrDatabaseType, d.kind)
	}
	var record geoip2.ASN
	if err := d.lookup(ip, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (d *Database) City(ip net.IP) (*geoip2.City, error) {
	if d.kind != KindCity {
		return nil, fmt.Errorf("%w: City lookup on %s database", ErrDatabaseType, d.kind)
	}
	var record geoip2.City
	if err := d.lookup(ip, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// lookup distinguishes an address outside every network in the tree
// (ErrNotFound) from a decoded record.
func (d *Database) lookup(ip net.IP, result any) error {
	if ip == nil {
		return ErrInvalidIP
	}
	_, ok, err := d.db.LookupNetwork(ip, result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (d *Database) Info() DatabaseInfo {
	meta := d.db.Metadata
	return DatabaseInfo{
		Kind:         d.kind,
		Path:         d.path,
		DatabaseType: meta.DatabaseType,
		BuildTime:    time.Unix(int64(meta.BuildEpoch), 0).UTC(),
		IPVersion:    meta.IPVersion,
		NodeCount:    meta.NodeCount,
	}
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	err := d.db.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
