// Package geofence decides whether an IP address belongs to one of a set
// of allowed countries.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/TomasB/geoalloc/internal/data"
	"github.com/TomasB/geoalloc/internal/lookup"
)

// Sources of the country used for a decision.
const (
	SourceDataset = "dataset"
	SourceMMDB    = "mmdb"
)

// ErrFallback is returned when the fallback lookup fails.
var ErrFallback = errors.New("fallback lookup failed")

// Decision is the outcome of a geofence check.
type Decision struct {
	Allowed  bool
	Location data.Location
	Source   string
}

// Checker resolves the country from the allocation dataset and, when the
// dataset has no match, from an optional fallback such as an MMDB file.
type Checker struct {
	locator  lookup.Locator
	fallback data.LocationLookup
}

// NewChecker creates a checker. fallback may be nil.
func NewChecker(locator lookup.Locator, fallback data.LocationLookup) *Checker {
	return &Checker{locator: locator, fallback: fallback}
}

// Check resolves ip and reports whether its country is in allowed.
// Errors from the lookup keep their sentinel (lookup.ErrAmbiguousInput,
// ipaddr.ErrInvalidAddress, lookup.ErrStore) for errors.Is.
func (c *Checker) Check(ctx context.Context, ip string, allowed []string) (Decision, error) {
	res := c.locator.Lookup(ctx, ip)

	var d Decision
	switch res.Kind {
	case lookup.KindLocated:
		d.Location = res.Record.Location()
		d.Source = SourceDataset
	case lookup.KindNotFound:
		if c.fallback == nil {
			break
		}
		loc, err := c.fallback.LookupLocation(net.IP(res.Point.Addr().AsSlice()))
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %w", ErrFallback, err)
		}
		if loc.CountryCode != "" {
			d.Location = loc
			d.Source = SourceMMDB
		}
	default:
		return Decision{}, res.Err
	}

	d.Allowed = contains(allowed, d.Location.CountryCode)
	return d, nil
}

func contains(allowed []string, country string) bool {
	if country == "" {
		return false
	}
	for _, ac := range allowed {
		if strings.EqualFold(ac, country) {
			return true
		}
	}
	return false
}
