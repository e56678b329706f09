package zonenet

import "github.com/transitguard/zonepolicy/internal/network"

// Contains reports whether linkID is part of this zone's resolved link set.
func (s ZoneLinkSet) Contains(linkID network.LinkID) bool {
	_, ok := s.All[linkID]
	return ok
}

// AllLinks returns All as a slice, in no particular order.
func (s ZoneLinkSet) AllLinks() []network.LinkID {
	out := make([]network.LinkID, 0, len(s.All))
	for id := range s.All {
		out = append(out, id)
	}
	return out
}
