package rib

import (
	"sync"

	"github.com/korsaris/libbgp/lpm"
	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet"
)

// EntryV6 is the IPv6 analogue of EntryV4. NexthopLinkLocal is the zero
// value when the route carries no link-local nexthop.
type EntryV6 struct {
	Route            bnet.Prefix6
	SrcRouterID      uint32
	NexthopGlobal    [16]byte
	NexthopLinkLocal [16]byte
	HasLinkLocal     bool
	Attribs          []packet.PathAttr
	Weight           int32
	UpdateID         uint64
}

func (e *EntryV6) candidate() candidate {
	return candidateOf(e.Attribs, e.Weight, e.SrcRouterID)
}

// RIBv6 is an IPv6 Routing Information Base, identical in contract to
// RIBv4 modulo address width.
type RIBv6 struct {
	mu           sync.Mutex
	trie         *lpm.LPM6
	entries      map[bnet.Prefix6]map[uint32]*EntryV6
	nextUpdateID uint64
}

// NewV6 creates an empty RIBv6.
func NewV6() *RIBv6 {
	return &RIBv6{
		trie:    lpm.New6(),
		entries: make(map[bnet.Prefix6]map[uint32]*EntryV6),
	}
}

// NextUpdateID allocates the next update_id.
func (r *RIBv6) NextUpdateID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextUpdateIDLocked()
}

func (r *RIBv6) nextUpdateIDLocked() uint64 {
	r.nextUpdateID++
	return r.nextUpdateID
}

// InsertFromPeer mirrors RIBv4.InsertFromPeer. nexthopGlobal and
// nexthopLinkLocal are always passed in that order.
func (r *RIBv6) InsertFromPeer(src uint32, route bnet.Prefix6, nexthopGlobal, nexthopLinkLocal [16]byte, hasLinkLocal bool, attribs []packet.PathAttr, weight int32, updateID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySrc, ok := r.entries[route]
	if !ok {
		bySrc = make(map[uint32]*EntryV6)
		r.entries[route] = bySrc
		r.trie.Insert(route)
	}

	newEntry := &EntryV6{
		Route: route, SrcRouterID: src,
		NexthopGlobal: nexthopGlobal, NexthopLinkLocal: nexthopLinkLocal, HasLinkLocal: hasLinkLocal,
		Attribs: attribs, Weight: weight, UpdateID: updateID,
	}

	existing, ok := bySrc[src]
	if !ok {
		bySrc[src] = newEntry
		return true
	}

	if !preferred(newEntry.candidate(), existing.candidate()) {
		return false
	}

	bySrc[src] = newEntry
	return true
}

// InsertLocal mirrors RIBv4.InsertLocal.
func (r *RIBv6) InsertLocal(route bnet.Prefix6, nexthopGlobal [16]byte, weight int32) *EntryV6 {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySrc, ok := r.entries[route]
	if !ok {
		bySrc = make(map[uint32]*EntryV6)
		r.entries[route] = bySrc
		r.trie.Insert(route)
	}

	if _, exists := bySrc[0]; exists {
		return nil
	}

	updateID := r.localUpdateIDForNexthopLocked(nexthopGlobal)

	entry := &EntryV6{
		Route:         route,
		SrcRouterID:   0,
		NexthopGlobal: nexthopGlobal,
		Weight:        weight,
		UpdateID:      updateID,
		Attribs: []packet.PathAttr{
			{Transitive: true, TypeCode: packet.OriginAttr, Value: packet.Origin(packet.IGP)},
			{Transitive: true, TypeCode: packet.ASPathAttr, Value: packet.AsPath{}},
		},
	}
	bySrc[0] = entry

	return entry
}

func (r *RIBv6) localUpdateIDForNexthopLocked(nexthop [16]byte) uint64 {
	for _, bySrc := range r.entries {
		if e, ok := bySrc[0]; ok && e.NexthopGlobal == nexthop {
			return e.UpdateID
		}
	}
	return r.nextUpdateIDLocked()
}

// Withdraw mirrors RIBv4.Withdraw.
func (r *RIBv6) Withdraw(src uint32, route bnet.Prefix6) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySrc, ok := r.entries[route]
	if !ok {
		return false
	}
	if _, ok := bySrc[src]; !ok {
		return false
	}

	delete(bySrc, src)
	if len(bySrc) == 0 {
		delete(r.entries, route)
	}
	return true
}

// Discard mirrors RIBv4.Discard.
func (r *RIBv6) Discard(src uint32) []bnet.Prefix6 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var routes []bnet.Prefix6
	for route, bySrc := range r.entries {
		if _, ok := bySrc[src]; !ok {
			continue
		}
		delete(bySrc, src)
		if len(bySrc) == 0 {
			delete(r.entries, route)
		}
		routes = append(routes, route)
	}

	return routes
}

// Lookup mirrors RIBv4.Lookup.
func (r *RIBv6) Lookup(addr [16]byte) *EntryV6 {
	r.mu.Lock()
	defer r.mu.Unlock()

	covering := r.trie.LPM(bnet.NewPfx6(addr, 128))
	for i := len(covering) - 1; i >= 0; i-- {
		if best := r.bestAtLocked(covering[i]); best != nil {
			return best
		}
	}
	return nil
}

// LookupSrc mirrors RIBv4.LookupSrc.
func (r *RIBv6) LookupSrc(src uint32, addr [16]byte) *EntryV6 {
	r.mu.Lock()
	defer r.mu.Unlock()

	covering := r.trie.LPM(bnet.NewPfx6(addr, 128))
	for i := len(covering) - 1; i >= 0; i-- {
		if bySrc, ok := r.entries[covering[i]]; ok {
			if e, ok := bySrc[src]; ok {
				return e
			}
		}
	}
	return nil
}

// Get returns every current entry for the exact prefix route.
func (r *RIBv6) Get(route bnet.Prefix6) []*EntryV6 {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySrc, ok := r.entries[route]
	if !ok {
		return nil
	}
	out := make([]*EntryV6, 0, len(bySrc))
	for _, e := range bySrc {
		out = append(out, e)
	}
	return out
}

func (r *RIBv6) bestAtLocked(route bnet.Prefix6) *EntryV6 {
	bySrc, ok := r.entries[route]
	if !ok || len(bySrc) == 0 {
		return nil
	}

	var best *EntryV6
	for _, e := range bySrc {
		if best == nil || preferred(e.candidate(), best.candidate()) {
			best = e
		}
	}
	return best
}
