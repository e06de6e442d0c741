package data

import "net"

// Location is the geographic part of an allocation record.
type Location struct {
	CountryCode string
	CountryName string
	StateCode   string
	StateName   string
}

// Location returns the record's country and state fields.
func (r Record) Location() Location {
	return Location{
		CountryCode: r.CountryCode,
		CountryName: r.CountryName,
		StateCode:   r.StateCode,
		StateName:   r.StateName,
	}
}

// LocationLookup resolves IPs from a source other than the allocation dataset.
type LocationLookup interface {
	// LookupLocation returns the location for the given IP address.
	// An empty CountryCode means the source has no data for it.
	LookupLocation(ip net.IP) (Location, error)

	// Close releases any resources held by the lookup implementation.
	Close() error
}
