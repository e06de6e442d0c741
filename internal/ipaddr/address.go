// Package ipaddr converts IPv4 and IPv6 text to a fixed-width unsigned
// integer and back.
//
// An Address always carries its Family. The family decides the bit width
// (32 or 128) that masks and comparisons operate on, so values of different
// families are never compared with each other.
package ipaddr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"lukechampine.com/uint128"
)

// ErrInvalidAddress is returned when text is not a well-formed IPv4 or IPv6 address.
var ErrInvalidAddress = errors.New("invalid IP address")

// Family is the address family of an Address.
type Family uint8

const (
	// IPv4 addresses are 32 bits wide.
	IPv4 Family = 4
	// IPv6 addresses are 128 bits wide.
	IPv6 Family = 6
)

var maxIPv4 = uint128.From64(0xffffffff)

// Bits returns the bit width of the family.
func (f Family) Bits() uint {
	if f == IPv4 {
		return 32
	}
	return 128
}

// Max returns 2^Bits()-1.
func (f Family) Max() uint128.Uint128 {
	if f == IPv4 {
		return maxIPv4
	}
	return uint128.Max
}

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "family(" + strconv.Itoa(int(f)) + ")"
	}
}

// Valid reports whether f is IPv4 or IPv6.
func (f Family) Valid() bool {
	return f == IPv4 || f == IPv6
}

// Address is the canonical numeric form of an IP address.
type Address struct {
	value  uint128.Uint128
	family Family
}

// FromUint128 builds an Address, rejecting values wider than the family allows.
func FromUint128(v uint128.Uint128, fam Family) (Address, error) {
	if !fam.Valid() {
		return Address{}, fmt.Errorf("%w: unknown family %d", ErrInvalidAddress, fam)
	}
	if v.Cmp(fam.Max()) > 0 {
		return Address{}, fmt.Errorf("%w: value %s exceeds %d bits", ErrInvalidAddress, v, fam.Bits())
	}
	return Address{value: v, family: fam}, nil
}

// FromAddr converts a netip.Addr. IPv4-mapped IPv6 addresses stay IPv6.
func FromAddr(a netip.Addr) (Address, error) {
	if !a.IsValid() {
		return Address{}, fmt.Errorf("%w: zero netip.Addr", ErrInvalidAddress)
	}
	if a.Zone() != "" {
		return Address{}, fmt.Errorf("%w: zone %q is not supported", ErrInvalidAddress, a.Zone())
	}
	if a.Is4() {
		b := a.As4()
		return Address{value: uint128.From64(uint64(binary.BigEndian.Uint32(b[:]))), family: IPv4}, nil
	}
	b := a.As16()
	return Address{value: fromBytes16(b), family: IPv6}, nil
}

// Parse converts IPv4 dotted-decimal or IPv6 colon-hex text.
// Text containing ':' is IPv6, anything else is treated as IPv4.
func Parse(text string) (Address, error) {
	if strings.Contains(text, ":") {
		return parse6(text)
	}
	return parse4(text)
}

func parse4(text string) (Address, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 4 {
		return Address{}, fmt.Errorf("%w: IPv4 %q must have 4 octets, got %d", ErrInvalidAddress, text, len(parts))
	}
	var v uint64
	for _, p := range parts {
		octet, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Address{}, fmt.Errorf("%w: IPv4 %q has bad octet %q", ErrInvalidAddress, text, p)
		}
		v = v<<8 | octet
	}
	return Address{value: uint128.From64(v), family: IPv4}, nil
}

func parse6(text string) (Address, error) {
	if strings.Contains(text, "%") {
		return Address{}, fmt.Errorf("%w: IPv6 zone is not supported: %q", ErrInvalidAddress, text)
	}
	a, err := netip.ParseAddr(text)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if !a.Is6() {
		return Address{}, fmt.Errorf("%w: %q is not IPv6", ErrInvalidAddress, text)
	}
	b := a.As16()
	return Address{value: fromBytes16(b), family: IPv6}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(text string) Address {
	a, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return a
}

func fromBytes16(b [16]byte) uint128.Uint128 {
	return uint128.New(binary.BigEndian.Uint64(b[8:]), binary.BigEndian.Uint64(b[:8]))
}

// Family returns the address family.
func (a Address) Family() Family { return a.family }

// Value returns the unsigned integer value.
func (a Address) Value() uint128.Uint128 { return a.value }

// IsValid reports whether a was produced by Parse or one of the constructors.
func (a Address) IsValid() bool { return a.family.Valid() }

// Compare returns -1, 0 or +1. Addresses of different families order IPv4 first.
func (a Address) Compare(b Address) int {
	if a.family != b.family {
		if a.family < b.family {
			return -1
		}
		return 1
	}
	return a.value.Cmp(b.value)
}

// Addr converts back to netip.Addr.
func (a Address) Addr() netip.Addr {
	if a.family == IPv4 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(a.value.Lo))
		return netip.AddrFrom4(b)
	}
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], a.value.Hi)
	binary.BigEndian.PutUint64(b[8:], a.value.Lo)
	return netip.AddrFrom16(b)
}

// String formats the address as dotted-decimal (IPv4) or RFC 5952 text (IPv6).
func (a Address) String() string {
	if !a.IsValid() {
		return "invalid IP"
	}
	return a.Addr().String()
}

// Format is the inverse of Parse.
func Format(a Address) string {
	return a.String()
}

// Key returns a fixed-width lowercase hex rendering of the value.
// Keys of the same family sort lexicographically in numeric order.
func (a Address) Key() string {
	return fmt.Sprintf("%016x%016x", a.value.Hi, a.value.Lo)
}

// FromKey parses a string produced by Key.
func FromKey(key string, fam Family) (Address, error) {
	if len(key) != 32 {
		return Address{}, fmt.Errorf("%w: key %q must be 32 hex digits", ErrInvalidAddress, key)
	}
	hi, err := strconv.ParseUint(key[:16], 16, 64)
	if err != nil {
		return Address{}, fmt.Errorf("%w: key %q: %w", ErrInvalidAddress, key, err)
	}
	lo, err := strconv.ParseUint(key[16:], 16, 64)
	if err != nil {
		return Address{}, fmt.Errorf("%w: key %q: %w", ErrInvalidAddress, key, err)
	}
	return FromUint128(uint128.New(lo, hi), fam)
}
