package model

import (
	"time"
)

// KeyIDLength is the number of decimal digits of a license key identifier
const KeyIDLength = 8

// LicenseKey is an issued license key and its lifecycle fields.
//
// HWID is set if and only if IsUsed is true. ExpiresAt is always
// FirstLoginAt + ExpirationDays and never set on its own.
type LicenseKey struct {
	ID             uint       `gorm:"primarykey" json:"-"`
	KeyID          string     `gorm:"size:8;uniqueIndex;not null" json:"key_id"`
	HWID           *string    `gorm:"column:hwid;size:255" json:"hwid"`
	ExpirationDays int        `gorm:"not null" json:"expiration_days"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	FirstLoginAt   *time.Time `json:"first_login_at"`
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	LoginCount     int64      `gorm:"not null" json:"login_count"`
	IsUsed         bool       `gorm:"index;not null" json:"is_used"`
	IsPaused       bool       `gorm:"index;not null" json:"is_paused"`
	IsActive       bool       `gorm:"index;not null" json:"is_active"`
	// Version is incremented on every update and used for optimistic locking
	Version uint `gorm:"not null" json:"-"`
}

// BoundHWID returns the bound hardware id or an empty string
func (k LicenseKey) BoundHWID() string {
	if k.HWID == nil {
		return ""
	}
	return *k.HWID
}

// ExpiredAt reports whether the key has an expiry and now is past it
func (k LicenseKey) ExpiredAt(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// StatusAt derives the Status of the key at the given instant.
// Precedence: inactive > paused > unused > expired > active.
func (k LicenseKey) StatusAt(now time.Time) Status {
	switch {
	case !k.IsActive:
		return StatusInactive
	case k.IsPaused:
		return StatusPaused
	case !k.IsUsed:
		return StatusUnused
	case k.ExpiredAt(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// KeyQuery describes a selection of license keys
type KeyQuery struct {
	// Search is a substring of the key identifier
	Search string
	// Status selects a status bucket evaluated at Now
	Status StatusFilter
	// Now is the instant used for expiry evaluation; zero means time.Now()
	Now time.Time
	// ActiveOnly restricts the selection to keys with IsActive set
	ActiveOnly bool
	// Paused, if set, restricts the selection to keys with that IsPaused value
	Paused *bool
	// PastExpiry restricts the selection to keys whose expiry lies before Now,
	// whatever their flags
	PastExpiry bool
}

// Page describes a 1-based page of results
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the number of rows to skip for this page
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Pages returns the number of pages needed for total rows
func (p Page) Pages(total int64) int {
	if p.PerPage <= 0 {
		return 0
	}
	return int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// KeyStore is the durable store for license keys
type KeyStore interface {
	// Create inserts a new key; an AlreadyExistsError is returned if the
	// identifier is taken
	Create(key *LicenseKey) error
	// Get returns the key with the passed identifier or a NotFoundError
	Get(keyID string) (*LicenseKey, error)
	// Exists reports whether a key with the passed identifier exists
	Exists(keyID string) (bool, error)
	// Update replaces all mutable fields of the key; it fails with
	// ErrVersionConflict if the key changed since it was read
	Update(key *LicenseKey) error
	// Delete removes the key and all its audit events
	Delete(keyID string) error
	// DeleteAll removes all keys and all audit events and returns the
	// number of deleted keys
	DeleteAll() (int64, error)
	// List returns one page of keys matching the query, newest first, and
	// the total number of matching keys
	List(query KeyQuery, page Page) ([]LicenseKey, int64, error)
	// Count returns the number of keys matching the query
	Count(query KeyQuery) (int64, error)
	// IDs returns the identifiers of all keys matching the query
	IDs(query KeyQuery) ([]string, error)
	// BulkSetPaused sets IsPaused on all matching keys whose flag differs
	// and returns the number of changed keys
	BulkSetPaused(query KeyQuery, paused bool) (int64, error)
}
