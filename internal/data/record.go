package data

import (
	"context"

	"github.com/TomasB/geoalloc/internal/cidr"
	"github.com/TomasB/geoalloc/internal/ipaddr"
)

// Record is one allocation row of the reference dataset.
// Start and End are derived from Network when the dataset is loaded.
type Record struct {
	Network     string
	CountryCode string
	CountryName string
	StateCode   string
	StateName   string
	Start       ipaddr.Address
	End         ipaddr.Address
}

// Range returns the record's inclusive address bounds.
func (r Record) Range() cidr.Range {
	return cidr.Range{Start: r.Start, End: r.End}
}

// Contains reports whether point falls inside the record's block.
func (r Record) Contains(point ipaddr.Address) bool {
	return r.Range().Contains(point)
}

// Backend is the storage collaborator behind an AllocationStore.
type Backend interface {
	// ReplaceAll discards the current contents and stores records in order.
	// On error the previous contents must remain visible.
	ReplaceAll(ctx context.Context, records []Record) error

	// FindContaining returns the first record, in insertion order, whose
	// range contains point. The boolean is false when nothing matches.
	FindContaining(ctx context.Context, point ipaddr.Address) (Record, bool, error)

	// Close releases any resources held by the backend.
	Close() error
}
