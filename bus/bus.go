// Package bus implements the route-event bus: a single-threaded,
// synchronous publisher/subscriber channel that lets sibling FSMs sharing a
// RIB learn about each other's route changes and BGP-Identifier
// collisions.
package bus

import (
	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet"
)

// RouteAdd is published when one or more routes sharing the same
// update_id and attribute set were added to a v4 RIB.
type RouteAdd struct {
	Attribs []packet.PathAttr
	Routes  []bnet.Prefix
}

// RouteWithdraw is published when one or more v4 routes were removed.
type RouteWithdraw struct {
	Routes []bnet.Prefix
}

// RouteAdd6 is the IPv6 analogue of RouteAdd.
type RouteAdd6 struct {
	Attribs []packet.PathAttr
	Routes  []bnet.Prefix6
}

// RouteWithdraw6 is the IPv6 analogue of RouteWithdraw.
type RouteWithdraw6 struct {
	Routes []bnet.Prefix6
}

// CollisionProbe is published by a session that has accepted its peer's
// OPEN, before it enters OPEN_CONFIRM. Only a sibling in OPEN_CONFIRM or
// ESTABLISHED whose own peer has the same BGP Identifier takes part; it
// compares its own (shared) local RouterID against PeerBGPID: if its local ID is the
// numerically lower one, it keeps its session and reports consumed=true, so
// the publisher — the newly arriving session — concedes and returns to
// IDLE instead; if its local ID is not lower, the sibling concedes on its
// own and reports consumed=false, leaving the publisher to proceed.
type CollisionProbe struct {
	PeerBGPID uint32
}

// Receiver is a bus subscriber. Handle is called synchronously, in
// publication order, once per subscriber other than the publisher itself.
// consumed is only meaningful for CollisionProbe: true ends propagation to
// the remaining subscribers and reports to Publish's caller that it, as
// the publisher, is the losing side and must go to IDLE.
type Receiver interface {
	Handle(publisher interface{}, event interface{}) (consumed bool)
}

// Bus is a route-event bus local to one process. It is not safe for
// concurrent Publish/Subscribe calls from multiple goroutines; a host
// driving several FSMs against a shared Bus must serialize its own calls
// into them (e.g. from a single event loop), the same way each FSM is
// itself single-threaded.
type Bus struct {
	subscribers []Receiver
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers r to receive future events. Subscribe is idempotent:
// subscribing the same receiver twice has no additional effect.
func (b *Bus) Subscribe(r Receiver) {
	for _, s := range b.subscribers {
		if s == r {
			return
		}
	}
	b.subscribers = append(b.subscribers, r)
}

// Unsubscribe removes r. It is a no-op if r was never subscribed.
func (b *Bus) Unsubscribe(r Receiver) {
	for i, s := range b.subscribers {
		if s == r {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every subscriber other than publisher, in
// subscription order, and reports whether any receiver marked it consumed.
// For a CollisionProbe, delivery stops as soon as a receiver reports
// consumed, and the caller (the publisher) is expected to treat a true
// result as having lost the collision and go to IDLE itself.
func (b *Bus) Publish(publisher interface{}, event interface{}) (consumed bool) {
	_, isProbe := event.(CollisionProbe)

	for _, s := range b.subscribers {
		if s == publisher {
			continue
		}
		c := s.Handle(publisher, event)
		if isProbe && c {
			return true
		}
	}
	return false
}
