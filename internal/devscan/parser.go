package devscan

import (
	"regexp"

	"meshscope/internal/domain"
)

// devscanPattern matches one "[peer]via[hop]" entry
var devscanPattern = regexp.MustCompile(`\[([0-9A-Fa-f:]+)\]via\[([0-9A-Fa-f:]+)\]`)

// Entry is one peer/hop pair reported by a node
type Entry struct {
	Peer domain.Address
	Hop  domain.Address
}

// ParsePayload extracts every well-formed entry from a devscan payload.
// Entries need no separator between them. Entries with an address that
// cannot be normalized are skipped.
func ParsePayload(payload string) []Entry {
	if payload == "" {
		return nil
	}

	matches := devscanPattern.FindAllStringSubmatch(payload, -1)
	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		peer, err := domain.Normalize(m[1])
		if err != nil {
			continue
		}
		hop, err := domain.Normalize(m[2])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Peer: peer, Hop: hop})
	}
	return entries
}

// Routes converts entries to a peer -> hop mapping keyed by identifier.
// A peer whose hop is itself is a direct neighbor and maps to NoHop.
func Routes(entries []Entry) domain.Routes {
	routes := make(domain.Routes, len(entries))
	for _, e := range entries {
		peerID := domain.DeriveIdentifier(e.Peer)
		hopID := domain.DeriveIdentifier(e.Hop)
		if peerID == hopID {
			routes[peerID] = domain.NoHop
		} else {
			routes[peerID] = hopID
		}
	}
	return routes
}
