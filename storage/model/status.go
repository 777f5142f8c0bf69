package model

import (
	"fmt"
)

// Status is the derived state of a LicenseKey. It is never stored; it is
// computed from the key's flags and expiry at a given instant, see
// LicenseKey.StatusAt.
type Status int

// Constants for Status, in precedence order
const (
	StatusInactive Status = iota
	StatusPaused
	StatusUnused
	StatusExpired
	StatusActive
)

// String returns the canonical string representation for the status.
func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusPaused:
		return "paused"
	case StatusUnused:
		return "unused"
	case StatusExpired:
		return "expired"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// Valid reports whether the status is one of the defined constants.
func (s Status) Valid() bool {
	switch s {
	case StatusInactive, StatusPaused, StatusUnused, StatusExpired, StatusActive:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the status as a JSON string.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte("\"" + s.String() + "\""), nil
}

// UnmarshalJSON decodes the status from a JSON string.
func (s *Status) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("status must be a JSON string")
	}
	ps, err := ParseStatus(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*s = ps
	return nil
}

// ParseStatus converts a string to a Status, returning an error for invalid values.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "inactive":
		return StatusInactive, nil
	case "paused":
		return StatusPaused, nil
	case "unused":
		return StatusUnused, nil
	case "expired":
		return StatusExpired, nil
	case "active":
		return StatusActive, nil
	}
	return 0, fmt.Errorf("invalid status: %s", v)
}

// StatusFilter selects keys for listings and statistics. The first five
// buckets are exactly the derived statuses; FilterUsed selects every key
// that has been activated, independent of its status.
type StatusFilter string

// Supported StatusFilter values
const (
	FilterNone     StatusFilter = ""
	FilterActive   StatusFilter = "active"
	FilterPaused   StatusFilter = "paused"
	FilterInactive StatusFilter = "inactive"
	FilterUnused   StatusFilter = "unused"
	FilterExpired  StatusFilter = "expired"
	FilterUsed     StatusFilter = "used"
)

// ParseStatusFilter validates a filter value as received from a request.
func ParseStatusFilter(v string) (StatusFilter, error) {
	switch f := StatusFilter(v); f {
	case FilterNone, FilterActive, FilterPaused, FilterInactive, FilterUnused, FilterExpired, FilterUsed:
		return f, nil
	}
	return FilterNone, fmt.Errorf("invalid status filter: %s", v)
}

// Matches reports whether a key with the given derived status and usage
// flag falls into the filter bucket.
func (f StatusFilter) Matches(status Status, isUsed bool) bool {
	switch f {
	case FilterNone:
		return true
	case FilterUsed:
		return isUsed
	default:
		return string(f) == status.String()
	}
}
