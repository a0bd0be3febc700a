package fsm

import bnet "github.com/korsaris/libbgp/net"

// FilterAction is the disposition a Filter applies to a matching route.
type FilterAction uint8

const (
	// Accept lets the route through the filter.
	Accept FilterAction = iota
	// Reject drops the route.
	Reject
)

// FilterMatch selects whether a Filter matches only the exact prefix or
// also every more-specific route beneath it.
type FilterMatch uint8

const (
	// Exact matches only the prefix itself.
	Exact FilterMatch = iota
	// OrLonger matches the prefix and every more-specific route under it.
	OrLonger
)

// Filter is one entry of an ordered in_filters/out_filters list. The first
// matching Filter in the list decides a route's fate; a route matching
// none is accepted, mirroring an implicit permit-all tail.
type Filter struct {
	Action FilterAction
	Prefix bnet.Prefix
	Match  FilterMatch
}

// Matches reports whether f applies to route.
func (f Filter) Matches(route bnet.Prefix) bool {
	switch f.Match {
	case Exact:
		return f.Prefix.Equal(route)
	case OrLonger:
		return f.Prefix.Equal(route) || f.Prefix.Contains(route)
	default:
		return false
	}
}

// Apply runs an ordered filter list against route, returning Accept unless
// a filter matches and says Reject.
func Apply(filters []Filter, route bnet.Prefix) FilterAction {
	for _, f := range filters {
		if f.Matches(route) {
			return f.Action
		}
	}
	return Accept
}

// Config carries everything the FSM needs about one session besides the
// live RIB/bus/clock/handler collaborators.
type Config struct {
	ASN      uint32
	PeerASN  uint32
	Use4BASN bool
	HoldTime uint16
	RouterID uint32

	Nexthop              uint32
	PeeringLANPrefix     bnet.Prefix
	HasPeeringLAN        bool
	ForcedDefaultNexthop bool
	NoNexthopCheck       bool
	NoCollisionDetection bool

	InFilters  []Filter
	OutFilters []Filter

	Verbose bool
}
