// Package cidr decides whether a textual IP address falls inside a network
// range given in CIDR notation, for both IPv4 and IPv6.
//
// Every operation returns a plain bool and fails closed: malformed address
// text, malformed range text and out-of-range prefix lengths all yield false.
// The verdict feeds trust decisions, so ambiguous input must never count as a
// match. Callers that need to tell invalid input apart from a non-match have
// to validate separately.
//
// Each call is pure and self-contained; nothing is cached between calls and
// the functions are safe for unlimited concurrent use.
package cidr

import (
	"net/netip"
	"strconv"
	"strings"
)

const (
	v4Bits = 32
	v6Bits = 128
)

// Matches reports whether address lies inside the range described by cidr.
// The address family is chosen from the shape of address alone: a colon means
// IPv6, anything else IPv4. A family mismatch between address and range is
// not an error, it simply never matches.
func Matches(address, cidr string) bool {
	if strings.Contains(address, ":") {
		return MatchesIPv6(address, cidr)
	}

	return MatchesIPv4(address, cidr)
}

// MatchesIPv4 reports whether the dotted-quad address lies inside cidr.
// A range without an explicit /length is an exact-address match (/32).
func MatchesIPv4(address, cidr string) bool {
	base, prefix, ok := splitRange(cidr, v4Bits)
	if !ok {
		return false
	}

	addrVal, ok := parseIPv4(address)
	if !ok {
		return false
	}

	baseVal, ok := parseIPv4(base)
	if !ok {
		return false
	}

	if prefix == 0 {
		return true
	}

	mask := ^uint32(0) << (v4Bits - prefix)

	return addrVal&mask == baseVal&mask
}

// MatchesIPv6 reports whether address lies inside cidr. Compressed (::) and
// IPv4-embedded forms are accepted, zoned literals are not. A range without
// an explicit /length is an exact-address match (/128).
func MatchesIPv6(address, cidr string) bool {
	base, prefix, ok := splitRange(cidr, v6Bits)
	if !ok {
		return false
	}

	addrBytes, ok := parseIPv6(address)
	if !ok {
		return false
	}

	baseBytes, ok := parseIPv6(base)
	if !ok {
		return false
	}

	if prefix == 0 {
		return true
	}

	mask := maskIPv6(prefix)
	for i := range addrBytes {
		if addrBytes[i]&mask[i] != baseBytes[i]&mask[i] {
			return false
		}
	}

	return true
}

// splitRange separates the base address from the prefix length. A missing
// length defaults to the family's full bit width, an exact-address match.
func splitRange(cidr string, bits int) (string, int, bool) {
	base, lengthText, found := strings.Cut(cidr, "/")
	if !found {
		return base, bits, true
	}

	prefix, err := strconv.Atoi(lengthText)
	if err != nil || prefix < 0 || prefix > bits {
		return "", 0, false
	}

	return base, prefix, true
}

func parseIPv4(s string) (uint32, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return 0, false
	}

	b := addr.As4()

	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

func parseIPv6(s string) ([16]byte, bool) {
	// inet_pton semantics: an IPv6 literal always carries a colon and never a
	// zone. Zones would be silently dropped by the byte comparison and break
	// range matching, so they are rejected outright.
	if !strings.Contains(s, ":") {
		return [16]byte{}, false
	}

	addr, err := netip.ParseAddr(s)
	if err != nil || addr.Zone() != "" {
		return [16]byte{}, false
	}

	return addr.As16(), true
}

// maskIPv6 builds a 16-byte mask with the first prefix bits set: full 0xff
// bytes for every complete group of 8 bits, one partial byte, then zeros.
func maskIPv6(prefix int) [16]byte {
	var mask [16]byte

	full, rem := prefix/8, prefix%8
	for i := 0; i < full; i++ {
		mask[i] = 0xff
	}

	if rem > 0 {
		mask[full] = ^byte(0xff >> rem)
	}

	return mask
}
