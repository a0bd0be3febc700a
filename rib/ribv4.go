// Package rib implements the IPv4 and IPv6 Routing Information Bases:
// per-source route storage over an LPM trie, best-path selection, and the
// update_id grouping the FSM's egress pipeline uses to coalesce UPDATEs.
package rib

import (
	"sync"

	"github.com/korsaris/libbgp/lpm"
	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet"
)

// EntryV4 is one route in a RIBv4: a prefix learned from a single source,
// carrying the attributes and weight that feed best-path selection.
type EntryV4 struct {
	Route       bnet.Prefix
	SrcRouterID uint32
	Nexthop     uint32
	Attribs     []packet.PathAttr
	Weight      int32
	UpdateID    uint64
}

func (e *EntryV4) candidate() candidate {
	return candidateOf(e.Attribs, e.Weight, e.SrcRouterID)
}

// RIBv4 is an IPv4 Routing Information Base. The zero value is not usable;
// create one with NewV4. A RIBv4 is safe for concurrent use.
type RIBv4 struct {
	mu           sync.Mutex
	trie         *lpm.LPM
	entries      map[bnet.Prefix]map[uint32]*EntryV4
	nextUpdateID uint64
}

// NewV4 creates an empty RIBv4.
func NewV4() *RIBv4 {
	return &RIBv4{
		trie:    lpm.New(),
		entries: make(map[bnet.Prefix]map[uint32]*EntryV4),
	}
}

// NextUpdateID allocates the next update_id, for a caller (typically the
// FSM's ingress pipeline) grouping a batch of inserts that arrived
// together.
func (r *RIBv4) NextUpdateID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextUpdateIDLocked()
}

func (r *RIBv4) nextUpdateIDLocked() uint64 {
	r.nextUpdateID++
	return r.nextUpdateID
}

// InsertFromPeer inserts or replaces a route learned from src. It returns
// true if the route was newly added, or replaced an existing (src, route)
// entry because the new attributes are preferred by the best-path
// tie-break; false if an existing entry was kept.
func (r *RIBv4) InsertFromPeer(src uint32, route bnet.Prefix, nexthop uint32, attribs []packet.PathAttr, weight int32, updateID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySrc, ok := r.entries[route]
	if !ok {
		bySrc = make(map[uint32]*EntryV4)
		r.entries[route] = bySrc
		r.trie.Insert(route)
	}

	newEntry := &EntryV4{Route: route, SrcRouterID: src, Nexthop: nexthop, Attribs: attribs, Weight: weight, UpdateID: updateID}

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

// InsertLocal inserts a locally-originated route (src_router_id 0),
// synthesizing ORIGIN=IGP and an empty AS_PATH. It returns nil if a local
// entry for route already exists; local entries sharing a nexthop are
// coalesced under the same update_id.
func (r *RIBv4) InsertLocal(route bnet.Prefix, nexthop uint32, weight int32) *EntryV4 {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySrc, ok := r.entries[route]
	if !ok {
		bySrc = make(map[uint32]*EntryV4)
		r.entries[route] = bySrc
		r.trie.Insert(route)
	}

	if _, exists := bySrc[0]; exists {
		return nil
	}

	updateID := r.localUpdateIDForNexthopLocked(nexthop)

	entry := &EntryV4{
		Route:       route,
		SrcRouterID: 0,
		Nexthop:     nexthop,
		Weight:      weight,
		UpdateID:    updateID,
		Attribs: []packet.PathAttr{
			{Transitive: true, TypeCode: packet.OriginAttr, Value: packet.Origin(packet.IGP)},
			{Transitive: true, TypeCode: packet.ASPathAttr, Value: packet.AsPath{}},
		},
	}
	bySrc[0] = entry

	return entry
}

// localUpdateIDForNexthopLocked finds the update_id of an existing local
// entry sharing nexthop, or allocates a new one.
func (r *RIBv4) localUpdateIDForNexthopLocked(nexthop uint32) uint64 {
	for _, bySrc := range r.entries {
		if e, ok := bySrc[0]; ok && e.Nexthop == nexthop {
			return e.UpdateID
		}
	}
	return r.nextUpdateIDLocked()
}

// Withdraw deletes the exact (src, route) entry, reporting whether it
// existed.
func (r *RIBv4) Withdraw(src uint32, route bnet.Prefix) bool {
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

// Discard removes every entry learned from src and returns the affected
// routes.
func (r *RIBv4) Discard(src uint32) []bnet.Prefix {
	r.mu.Lock()
	defer r.mu.Unlock()

	var routes []bnet.Prefix
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

// Lookup performs a longest-prefix match for addr and returns the best-path
// entry among that prefix's sources, or nil if no route covers addr.
func (r *RIBv4) Lookup(addr uint32) *EntryV4 {
	r.mu.Lock()
	defer r.mu.Unlock()

	covering := r.trie.LPM(bnet.NewPfx(addr, 32))
	for i := len(covering) - 1; i >= 0; i-- {
		if best := r.bestAtLocked(covering[i]); best != nil {
			return best
		}
	}
	return nil
}

// LookupSrc is Lookup scoped to routes learned from src: it performs a
// longest-prefix match considering only entries with that source.
func (r *RIBv4) LookupSrc(src uint32, addr uint32) *EntryV4 {
	r.mu.Lock()
	defer r.mu.Unlock()

	covering := r.trie.LPM(bnet.NewPfx(addr, 32))
	for i := len(covering) - 1; i >= 0; i-- {
		if bySrc, ok := r.entries[covering[i]]; ok {
			if e, ok := bySrc[src]; ok {
				return e
			}
		}
	}
	return nil
}

// LocalRoutes returns every locally-originated entry (src_router_id 0),
// grouped by update_id so a caller can re-announce them as the same
// coalesced UPDATEs InsertLocal originally produced.
func (r *RIBv4) LocalRoutes() map[uint64][]*EntryV4 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uint64][]*EntryV4)
	for _, bySrc := range r.entries {
		e, ok := bySrc[0]
		if !ok {
			continue
		}
		out[e.UpdateID] = append(out[e.UpdateID], e)
	}
	return out
}

// Get returns every current entry for the exact prefix route.
func (r *RIBv4) Get(route bnet.Prefix) []*EntryV4 {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySrc, ok := r.entries[route]
	if !ok {
		return nil
	}
	out := make([]*EntryV4, 0, len(bySrc))
	for _, e := range bySrc {
		out = append(out, e)
	}
	return out
}

func (r *RIBv4) bestAtLocked(route bnet.Prefix) *EntryV4 {
	bySrc, ok := r.entries[route]
	if !ok || len(bySrc) == 0 {
		return nil
	}

	var best *EntryV4
	for _, e := range bySrc {
		if best == nil || preferred(e.candidate(), best.candidate()) {
			best = e
		}
	}
	return best
}
