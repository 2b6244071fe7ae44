package enrichment

import "time"

// Metadata is the merged geo and network information for one IP. Every field
// is optional; absent fields are nil and left out of the JSON encoding. A
// Metadata value is never modified after assembly.
type Metadata struct {
	AutonomousSystemNumber *uint32  `json:"autonomousSystemNumber,omitempty"`
	Latitude               *float64 `json:"latitude,omitempty"`
	Longitude              *float64 `json:"longitude,omitempty"`
	ZipCode                *string  `json:"zipCode,omitempty"`
	City                   *string  `json:"city,omitempty"`
	State                  *string  `json:"state,omitempty"`
	Country                *string  `json:"country,omitempty"`
}

// IsEmpty reports whether no field is set.
func (m Metadata) IsEmpty() bool {
	return m.AutonomousSystemNumber == nil &&
		m.Latitude == nil && m.Longitude == nil &&
		m.ZipCode == nil && m.City == nil && m.State == nil && m.Country == nil
}

// Equal compares field values, not pointers.
func (m Metadata) Equal(o Metadata) bool {
	return eq(m.AutonomousSystemNumber, o.AutonomousSystemNumber) &&
		eq(m.Latitude, o.Latitude) &&
		eq(m.Longitude, o.Longitude) &&
		eq(m.ZipCode, o.ZipCode) &&
		eq(m.City, o.City) &&
		eq(m.State, o.State) &&
		eq(m.Country, o.Country)
}

func eq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Snapshot is an assembled record as persisted outside the cache.
type Snapshot struct {
	IP          string
	Metadata    Metadata
	AssembledAt time.Time
}
