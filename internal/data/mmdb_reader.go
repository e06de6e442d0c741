package data

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// MmdbReader implements LocationLookup using a MaxMind MMDB file.
// City databases also yield the first subdivision as the state.
type MmdbReader struct {
	db   *geoip2.Reader
	city bool
}

// NewMmdbReader opens the MMDB file at the given path and returns a reader.
func NewMmdbReader(path string) (*MmdbReader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}
	return &MmdbReader{
		db:   db,
		city: strings.Contains(db.Metadata().DatabaseType, "City"),
	}, nil
}

// LookupLocation returns the country, and for City databases the state, of ip.
func (r *MmdbReader) LookupLocation(ip net.IP) (Location, error) {
	if !r.city {
		record, err := r.db.Country(ip)
		if err != nil {
			return Location{}, fmt.Errorf("country lookup failed: %w", err)
		}
		return Location{
			CountryCode: record.Country.IsoCode,
			CountryName: record.Country.Names["en"],
		}, nil
	}

	record, err := r.db.City(ip)
	if err != nil {
		return Location{}, fmt.Errorf("city lookup failed: %w", err)
	}
	loc := Location{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		loc.StateCode = record.Subdivisions[0].IsoCode
		loc.StateName = record.Subdivisions[0].Names["en"]
	}
	return loc, nil
}

// Close releases the MMDB reader resources.
func (r *MmdbReader) Close() error {
	return r.db.Close()
}
