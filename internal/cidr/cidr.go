// Package cidr computes the inclusive numeric bounds of a CIDR block.
package cidr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TomasB/geoalloc/internal/ipaddr"
	"go4.org/netipx"
)

// ErrInvalidCIDR is returned for text that is not <address>/<prefixLength>.
var ErrInvalidCIDR = errors.New("invalid CIDR")

// Range is an inclusive [Start, End] block of a single address family.
type Range struct {
	Start ipaddr.Address
	End   ipaddr.Address
}

// Compute parses text of the form <address>/<prefixLength> and returns the
// network's first and last address. Host bits in the address are masked off.
func Compute(text string) (Range, error) {
	addrText, prefixText, ok := strings.Cut(text, "/")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q has no '/' separator", ErrInvalidCIDR, text)
	}

	// unsigned decimal only; "+24" and "-1" are rejected here
	prefix64, err := strconv.ParseUint(prefixText, 10, 8)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q has invalid prefix length %q", ErrInvalidCIDR, text, prefixText)
	}

	addr, err := ipaddr.Parse(addrText)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %w", ErrInvalidCIDR, text, err)
	}

	fam := addr.Family()
	width := int(fam.Bits())
	prefix := int(prefix64)
	if prefix > width {
		return Range{}, fmt.Errorf("%w: %q prefix length %d out of range 0..%d", ErrInvalidCIDR, text, prefix, width)
	}

	all := fam.Max()
	mask := all.Lsh(uint(width - prefix)).And(all)
	start := addr.Value().And(mask)
	end := start.Or(mask.Xor(all))

	r := Range{}
	if r.Start, err = ipaddr.FromUint128(start, fam); err != nil {
		return Range{}, fmt.Errorf("%w: %w", ErrInvalidCIDR, err)
	}
	if r.End, err = ipaddr.FromUint128(end, fam); err != nil {
		return Range{}, fmt.Errorf("%w: %w", ErrInvalidCIDR, err)
	}
	return r, nil
}

// Family returns the address family of the range.
func (r Range) Family() ipaddr.Family {
	return r.Start.Family()
}

// Contains reports whether point lies in [Start, End] and has the same family.
func (r Range) Contains(point ipaddr.Address) bool {
	if point.Family() != r.Start.Family() {
		return false
	}
	return r.Start.Value().Cmp(point.Value()) <= 0 && point.Value().Cmp(r.End.Value()) <= 0
}

// IPRange converts r to a netipx.IPRange.
func (r Range) IPRange() netipx.IPRange {
	return netipx.IPRangeFrom(r.Start.Addr(), r.End.Addr())
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}
