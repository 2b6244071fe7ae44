package geoip

import "errors"

var (
	ErrInvalidIP      = errors.New("invalid IP address")
	ErrNotFound       = errors.New("address not found in database")
	ErrDatabaseType   = errors.New("unexpected database type")
	ErrNoDatabase     = errors.New("database not configured")
	ErrFieldMissing   = errors.New("field missing")
	ErrFieldMalformed = errors.New("field malformed")
)
