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
	"io"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

type ASNReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
}

type CityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Source answers ASN and City lookups from two independent readers. Either
// reader may be nil, in which case its lookups are always absent. Failures never
// escape: they are logged at debug level and reported as absent.
type Source struct {
	mu     sync.RWMutex
	asn    ASNReader
	city   CityReader
	logger *pterm.Logger
}

func NewSource(asn ASNReader, city CityReader, logger *pterm.Logger) *Source {
	return &Source{asn: asn, city: city, logger: logger}
}

// NewSourceFromDatabases keeps a nil *Database from turning into a non-nil
// interface value.
func NewSourceFromDatabases(asn, city *Database, logger *pterm.Logger) *Source {
	s := NewSource(nil, nil, logger)
	if asn != nil {
		s.asn = asn
	}
	if city != nil {
		s.city = city
	}
	return s
}

// LookupASN returns the ASN record for ip, or false when the address is
// invalid, unknown to the database or the lookup failed.
func (s *Source) LookupASN(ip string) (ASNRecord, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		s.logger.Debug("Cannot get ASN data", s.logger.Args("ip", ip, "error", ErrInvalidIP))
		return ASNRecord{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.asn == nil {
		return ASNRecord{}, false
	}

	record, err := s.asn.ASN(parsed)
	if err == nil && record == nil {
		err = ErrNotFound
	}
	if err != nil {
		s.logger.Debug("Cannot get ASN data", s.logger.Args("ip", ip, "error", err))
		return ASNRecord{}, false
	}
	return NewASNRecord(record), true
}

// LookupCity is the City counterpart of LookupASN.
func (s *Source) LookupCity(ip string) (CityRecord, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		s.logger.Debug("Cannot get City data", s.logger.Args("ip", ip, "error", ErrInvalidIP))
		return CityRecord{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.city == nil {
		return CityRecord{}, false
	}

	record, err := s.city.City(parsed)
	if err == nil && record == nil {
		err = ErrNotFound
	}
	if err != nil {
		s.logger.Debug("Cannot get City data", s.logger.Args("ip", ip, "error", err))
		return CityRecord{}, false
	}
	return NewCityRecord(record), true
}

// SwapASN installs a new ASN reader and closes the previous one once no lookup
// is using it.
func (s *Source) SwapASN(asn ASNReader) {
	s.mu.Lock()
	old := s.asn
	s.asn = asn
	s.mu.Unlock()
	s.closeReader(old)
}

func (s *Source) SwapCity(city CityReader) {
	s.mu.Lock()
	old := s.city
	s.city = city
	s.mu.Unlock()
	s.closeReader(old)
}

// Databases reports the readers that carry database metadata.
func (s *Source) Databases() []DatabaseInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []DatabaseInfo
	for _, r := range []any{s.asn, s.city} {
		if described, ok := r.(interface{ Info() DatabaseInfo }); ok {
			infos = append(infos, described.Info())
		}
	}
	return infos
}

func (s *Source) Close() error {
	s.mu.Lock()
	asn, city := s.asn, s.city
	s.asn, s.city = nil, nil
	s.mu.Unlock()

	var errs []error
	for _, r := range []any{asn, city} {
		if closer, ok := r.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.logger.Info("Closed GeoIP databases")
	return errors.Join(errs...)
}

func (s *Source) closeReader(r any) {
	closer, ok := r.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		s.logger.WithCaller().Warn("Failed to close replaced GeoIP database", s.logger.Args("error", err))
	}
}
