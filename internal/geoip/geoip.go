// Package geoip resolves client addresses to ISO country codes using a
// MaxMind database.
package geoip

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
	"github.com/pkg/errors"
)

// Locator looks up the country of an address
type Locator interface {
	Country(ip string) string
}

// Nop is a Locator that never knows the country
type Nop struct{}

// Country implements Locator
func (Nop) Country(string) string { return "" }

// DB is a Locator backed by a MaxMind country or city database
type DB struct {
	reader *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open opens the database at path
func Open(path string) (*DB, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open geoip database '%s'", path)
	}
	return &DB{reader: r}, nil
}

// Country returns the ISO country code of ip or an empty string
func (db *DB) Country(ip string) string {
	addr := net.ParseIP(ip)
	if addr == nil {
		return ""
	}
	var record countryRecord
	if err := db.reader.Lookup(addr, &record); err != nil {
		return ""
	}
	return record.Country.ISOCode
}

// Close closes the database
func (db *DB) Close() error {
	return db.reader.Close()
}
