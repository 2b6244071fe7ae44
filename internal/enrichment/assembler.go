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
package enrichment

import (
	"errors"
	"time"

	"github.com/pterm/pterm"

	"geolynx/internal/geoip"
	"geolynx/internal/metrics"
)

const (
	sourceASN  = "asn"
	sourceCity = "city"
)

// GeoSource is the lookup side of geoip.Source.
type GeoSource interface {
	LookupASN(ip string) (geoip.ASNRecord, bool)
	LookupCity(ip string) (geoip.CityRecord, bool)
}

// Assembler merges the ASN and City lookups for an IP into one Metadata.
type Assembler struct {
	source GeoSource
	locale string
	logger *pterm.Logger
}

func NewAssembler(source GeoSource, locale string, logger *pterm.Logger) *Assembler {
	if locale == "" {
		locale = "en"
	}
	return &Assembler{source: source, locale: locale, logger: logger}
}

// Assemble never fails. Each field is extracted on its own, so one unusable
// field only drops that field. A record with nothing found is empty.
func (a *Assembler) Assemble(ip string) Metadata {
	start := time.Now()
	defer func() {
		metrics.AssembleDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var md Metadata

	if asn, ok := a.source.LookupASN(ip); ok {
		md.AutonomousSystemNumber = extract(a, sourceASN, "autonomousSystemNumber", ip, asn.Number)
	} else {
		metrics.LookupAbsentTotal.WithLabelValues(sourceASN).Inc()
	}

	if city, ok := a.source.LookupCity(ip); ok {
		md.ZipCode = extract(a, sourceCity, "zipCode", ip, city.PostalCode)
		md.State = extract(a, sourceCity, "state", ip, city.SubdivisionCode)
		md.City = extract(a, sourceCity, "city", ip, func() (string, error) {
			return city.CityName(a.locale)
		})
		md.Country = extract(a, sourceCity, "country", ip, city.CountryCode)
		md.Latitude = extract(a, sourceCity, "latitude", ip, city.Latitude)
		md.Longitude = extract(a, sourceCity, "longitude", ip, city.Longitude)
	} else {
		metrics.LookupAbsentTotal.WithLabelValues(sourceCity).Inc()
	}

	return md
}

// extract returns nil for a missing field. A malformed ASN field is logged at
// debug, a malformed City field at error.
func extract[T any](a *Assembler, source, field, ip string, get func() (T, error)) *T {
	value, err := get()
	if err == nil {
		return &value
	}
	if errors.Is(err, geoip.ErrFieldMissing) {
		return nil
	}

	metrics.ExtractionFailuresTotal.WithLabelValues(source, field).Inc()
	if source == sourceASN {
		a.logger.Debug("Failed to extract ASN data", a.logger.Args("ip", ip, "field", field, "error", err))
	} else {
		a.logger.WithCaller().Error("Failed to extract City data", a.logger.Args("ip", ip, "field", field, "error", err))
	}
	return nil
}
