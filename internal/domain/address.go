package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	addressGroups    = 8
	addressGroupSize = 4
)

// ErrMalformedAddress is returned when text cannot be expanded to 8 groups
var ErrMalformedAddress = errors.New("malformed address")

// Address is the canonical text of a 128-bit mesh address:
// 8 groups of 4 lowercase hex digits separated by colons.
type Address string

// NodeIdentifier is the hardware identifier embedded in an address,
// formatted as 6 colon-separated hex octets.
type NodeIdentifier string

// NoHop marks a peer that is a direct neighbor of the scanned node
const NoHop NodeIdentifier = ""

// Normalize expands text to the canonical Address form.
// Fully written addresses and addresses with one "::" are accepted.
func Normalize(text string) (Address, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformedAddress)
	}

	var groups []string
	switch strings.Count(s, "::") {
	case 0:
		groups = strings.Split(s, ":")
	case 1:
		sides := strings.SplitN(s, "::", 2)
		head := splitGroups(sides[0])
		tail := splitGroups(sides[1])
		missing := addressGroups - len(head) - len(tail)
		if missing < 1 {
			return "", fmt.Errorf("%w: %q has too many groups", ErrMalformedAddress, text)
		}
		groups = make([]string, 0, addressGroups)
		groups = append(groups, head...)
		for i := 0; i < missing; i++ {
			groups = append(groups, "0")
		}
		groups = append(groups, tail...)
	default:
		return "", fmt.Errorf("%w: %q has more than one '::'", ErrMalformedAddress, text)
	}

	if len(groups) != addressGroups {
		return "", fmt.Errorf("%w: %q has %d groups", ErrMalformedAddress, text, len(groups))
	}

	var b strings.Builder
	b.Grow(addressGroups*addressGroupSize + addressGroups - 1)
	for i, g := range groups {
		if !isHexGroup(g) {
			return "", fmt.Errorf("%w: %q has invalid group %q", ErrMalformedAddress, text, g)
		}
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strings.Repeat("0", addressGroupSize-len(g)))
		b.WriteString(strings.ToLower(g))
	}

	return Address(b.String()), nil
}

// MustNormalize is like Normalize but panics on malformed input
func MustNormalize(text string) Address {
	addr, err := Normalize(text)
	if err != nil {
		panic(err)
	}
	return addr
}

func splitGroups(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ":")
}

func isHexGroup(g string) bool {
	if len(g) == 0 || len(g) > addressGroupSize {
		return false
	}
	for i := 0; i < len(g); i++ {
		c := g[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// InterfaceID returns the lower 64 bits of the address
func (a Address) InterfaceID() uint64 {
	var iid uint64
	groups := strings.Split(string(a), ":")
	if len(groups) != addressGroups {
		return 0
	}
	for _, g := range groups[addressGroups/2:] {
		v, err := strconv.ParseUint(g, 16, 16)
		if err != nil {
			return 0
		}
		iid = iid<<16 | v
	}
	return iid
}

// NodeID returns the graph node id for the address (the address without colons)
func (a Address) NodeID() string {
	return strings.ReplaceAll(string(a), ":", "")
}

// String implements fmt.Stringer
func (a Address) String() string {
	return string(a)
}

// DeriveIdentifier extracts the hardware identifier from the interface
// identifier using the modified EUI-64 layout: the 0xfffe filler in the
// middle two octets is dropped and the universal/local bit is toggled.
func DeriveIdentifier(a Address) NodeIdentifier {
	iid := a.InterfaceID()
	hw := net.HardwareAddr{
		byte(iid>>56) ^ 0x02,
		byte(iid >> 48),
		byte(iid >> 40),
		byte(iid >> 16),
		byte(iid >> 8),
		byte(iid),
	}
	return NodeIdentifier(hw.String())
}
