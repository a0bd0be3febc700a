// Package fsm implements the BGP session state machine: OPEN exchange,
// hold/keepalive timers, the UPDATE ingress and egress pipelines, and
// collision resolution between sibling sessions sharing a route-event bus.
package fsm

import (
	"bytes"
	"fmt"

	"github.com/korsaris/libbgp/bus"
	"github.com/korsaris/libbgp/clock"
	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet"
	"github.com/korsaris/libbgp/packet/bgperr"
	"github.com/korsaris/libbgp/rib"
)

// FSM is one BGP session. The host owns transport: it feeds inbound bytes
// through BytesIn and drives time through Tick; the FSM never blocks or
// spawns goroutines of its own.
type FSM struct {
	config Config
	clock  clock.Clock
	out    OutHandler
	log    LogHandler
	rib    *rib.RIBv4
	bus    *bus.Bus

	state State
	dec   *packet.Decoder
	rxBuf bytes.Buffer

	is4b      bool
	peerBGPID uint32
	holdTime  uint16

	lastRecv int64
	lastSent int64
}

// New creates an FSM in Idle. rib and evBus may be nil for a session that
// doesn't participate in route exchange (e.g. a test harness exercising
// only the OPEN handshake).
func New(config Config, c clock.Clock, out OutHandler, log LogHandler, r *rib.RIBv4, evBus *bus.Bus) *FSM {
	if log == nil {
		log = NewGlogHandler()
	}
	return &FSM{
		config: config,
		clock:  c,
		out:    out,
		log:    log,
		rib:    r,
		bus:    evBus,
		state:  Idle,
		dec:    packet.NewDecoder(config.Use4BASN),
	}
}

// State returns the FSM's current state.
func (f *FSM) State() State {
	return f.state
}

// Start transitions Idle -> OpenSent, sending our OPEN.
func (f *FSM) Start() {
	if f.state != Idle {
		return
	}

	if f.bus != nil {
		f.bus.Subscribe(f)
	}

	f.sendOpen()
	f.state = OpenSent
	now := f.clock.Now()
	f.lastRecv = now
	f.lastSent = now
}

// Stop is idempotent. It sends a best-effort NOTIFICATION(E_CEASE,
// E_SHUTDOWN), transitions to Idle and unsubscribes from the bus.
func (f *FSM) Stop() {
	if f.state == Idle {
		return
	}
	f.sendNotification(bgperr.New(bgperr.ECease, bgperr.EShutdown, nil))
	f.toIdle()
}

func (f *FSM) toIdle() {
	f.state = Idle
	f.rxBuf.Reset()
	if f.bus != nil {
		f.bus.Unsubscribe(f)
	}
}

// Tick advances the FSM's notion of time, driving hold and keepalive
// timers. now must be monotonically non-decreasing; the FSM does not
// defend against a host bug that violates that.
func (f *FSM) Tick(now int64) {
	if f.state == Idle {
		return
	}

	if f.holdTime != 0 && f.state == Established {
		if now-f.lastRecv >= int64(f.holdTime) {
			f.log.Stderr(fmt.Sprintf("hold timer expired after %ds", now-f.lastRecv))
			f.sendNotification(bgperr.New(bgperr.EHold, 0, nil))
			f.toIdle()
			return
		}

		keepaliveInterval := int64(f.holdTime) / 3
		if keepaliveInterval > 0 && now-f.lastSent >= keepaliveInterval {
			f.sendKeepalive()
			f.lastSent = now
		}
	}
}

// BytesIn feeds inbound bytes to the reassembly buffer and processes every
// complete message it now contains.
func (f *FSM) BytesIn(b []byte) {
	if f.state == Idle {
		return
	}

	f.rxBuf.Write(b)

	for {
		snapshot := bytes.NewBuffer(f.rxBuf.Bytes())
		msg, err := f.dec.Decode(snapshot)
		if err != nil {
			if bgErr, ok := err.(*bgperr.Error); ok {
				f.sendNotification(bgErr)
				f.toIdle()
				return
			}
			// Not enough bytes yet for a full message; wait for more.
			return
		}

		consumed := f.rxBuf.Len() - snapshot.Len()
		f.rxBuf.Next(consumed)

		f.dispatch(msg)
		if f.state == Idle {
			return
		}
	}
}

func (f *FSM) dispatch(msg *packet.Message) {
	f.lastRecv = f.clock.Now()

	switch body := msg.Body.(type) {
	case *packet.Open:
		f.handleOpen(body)
	case nil:
		f.handleKeepalive()
	case *packet.Update:
		f.handleUpdate(body)
	case *packet.Notification:
		f.log.Stderr(fmt.Sprintf("peer sent NOTIFICATION %d/%d", body.ErrorCode, body.ErrorSubcode))
		f.toIdle()
	}
}

func (f *FSM) handleOpen(o *packet.Open) {
	if f.state != OpenSent {
		f.sendNotification(bgperr.New(bgperr.EFSM, fsmSubcodeFor(f.state), nil))
		f.toIdle()
		return
	}

	if uint32(o.ASN) != f.config.PeerASN && o.ASN != 0 {
		f.sendNotification(bgperr.New(bgperr.EOpen, bgperr.EPeerAS, nil))
		f.toIdle()
		return
	}

	f.peerBGPID = o.BGPID
	f.holdTime = minU16(f.config.HoldTime, o.HoldTime)
	f.is4b = f.config.Use4BASN && o.Has4ByteASN()
	f.dec.SetIs4B(f.is4b)

	if !f.config.NoCollisionDetection && f.bus != nil {
		if f.bus.Publish(f, bus.CollisionProbe{PeerBGPID: o.BGPID}) {
			f.sendNotification(bgperr.New(bgperr.ECease, bgperr.ECollision, nil))
			f.toIdle()
			return
		}
	}

	f.sendKeepalive()
	f.lastSent = f.clock.Now()
	f.state = OpenConfirm
}

func fsmSubcodeFor(s State) uint8 {
	switch s {
	case OpenSent:
		return bgperr.EOpenSent
	case OpenConfirm:
		return bgperr.EOpenConfirm
	case Established:
		return bgperr.EEstablished
	default:
		return 0
	}
}

func (f *FSM) handleKeepalive() {
	switch f.state {
	case OpenConfirm:
		f.state = Established
		f.advertiseLocalRoutes()
	case Established:
		// hold timer reset happens via lastRecv update in dispatch
	default:
		f.sendNotification(bgperr.New(bgperr.EFSM, fsmSubcodeFor(f.state), nil))
		f.toIdle()
	}
}

// advertiseLocalRoutes flushes every locally-originated route already in
// the RIB to this peer, grouped by update_id the way InsertLocal coalesced
// them. It's the mandatory "advertise local routes" action on the
// OPEN_CONFIRM -> ESTABLISHED transition; without it a peer established
// after a route was locally originated would never learn about it, since
// InsertLocal itself publishes nothing to the bus.
func (f *FSM) advertiseLocalRoutes() {
	if f.rib == nil {
		return
	}

	for _, group := range f.rib.LocalRoutes() {
		if len(group) == 0 {
			continue
		}

		attrs := append([]packet.PathAttr{}, group[0].Attribs...)
		attrs = append(attrs, packet.PathAttr{
			Transitive: true,
			TypeCode:   packet.NextHopAttr,
			Value:      uint32ToNextHop(group[0].Nexthop),
		})

		routes := make([]bnet.Prefix, 0, len(group))
		for _, e := range group {
			routes = append(routes, e.Route)
		}

		f.egressAdd(attrs, routes)
	}
}

func (f *FSM) handleUpdate(u *packet.Update) {
	if f.state != Established {
		f.sendNotification(bgperr.New(bgperr.EFSM, fsmSubcodeFor(f.state), nil))
		f.toIdle()
		return
	}

	if err := f.validateMandatory(u); err != nil {
		f.sendNotification(err)
		f.toIdle()
		return
	}

	if err := f.checkASLoop(u); err != nil {
		f.sendNotification(err)
		f.toIdle()
		return
	}

	nexthop, err := f.checkNexthop(u)
	if err != nil {
		f.sendNotification(err)
		f.toIdle()
		return
	}

	attrs := f.restoreASWidth(u.PathAttrs)

	if f.rib == nil {
		return
	}

	if len(u.WithdrawnRoutes) > 0 {
		for _, pfx := range u.WithdrawnRoutes {
			f.rib.Withdraw(f.peerBGPID, pfx)
		}
		if f.bus != nil {
			f.bus.Publish(f, bus.RouteWithdraw{Routes: u.WithdrawnRoutes})
		}
	}

	if len(u.NLRI) == 0 {
		return
	}

	updateID := f.rib.NextUpdateID()
	var accepted []bnet.Prefix
	for _, pfx := range u.NLRI {
		if Apply(f.config.InFilters, pfx) == Reject {
			continue
		}
		if f.rib.InsertFromPeer(f.peerBGPID, pfx, nexthop, attrs, 0, updateID) {
			accepted = append(accepted, pfx)
		}
	}

	if len(accepted) > 0 && f.bus != nil {
		f.bus.Publish(f, bus.RouteAdd{Attribs: attrs, Routes: accepted})
	}
}

func (f *FSM) validateMandatory(u *packet.Update) *bgperr.Error {
	if err := packet.ValidateAttribs(u.PathAttrs); err != nil {
		return err.(*bgperr.Error)
	}

	if len(u.NLRI) == 0 {
		return nil
	}

	var hasOrigin, hasASPath, hasNextHop bool
	for _, a := range u.PathAttrs {
		switch a.TypeCode {
		case packet.OriginAttr:
			hasOrigin = true
		case packet.ASPathAttr:
			hasASPath = true
		case packet.NextHopAttr:
			hasNextHop = true
		}
	}
	if !hasOrigin || !hasASPath || !hasNextHop {
		return bgperr.New(bgperr.EUpdate, bgperr.EMissWellKnown, nil)
	}
	return nil
}

func (f *FSM) checkASLoop(u *packet.Update) *bgperr.Error {
	for _, a := range u.PathAttrs {
		if a.TypeCode != packet.ASPathAttr {
			continue
		}
		asPath, ok := a.AsAsPath()
		if !ok {
			continue
		}
		for _, seg := range asPath {
			for _, asn := range seg.ASNs {
				if asn == f.config.ASN {
					return bgperr.New(bgperr.EUpdate, bgperr.EASPath, nil)
				}
			}
		}
	}
	return nil
}

func (f *FSM) checkNexthop(u *packet.Update) (uint32, *bgperr.Error) {
	var nexthop uint32
	for _, a := range u.PathAttrs {
		if a.TypeCode == packet.NextHopAttr {
			nh, _ := a.AsNextHop()
			nexthop = uint32(nh[0])<<24 | uint32(nh[1])<<16 | uint32(nh[2])<<8 | uint32(nh[3])
		}
	}

	if f.config.NoNexthopCheck || !f.config.HasPeeringLAN || len(u.NLRI) == 0 {
		return nexthop, nil
	}

	if !f.config.PeeringLANPrefix.Includes(nexthop) {
		return 0, bgperr.New(bgperr.EUpdate, bgperr.ENextHop, nil)
	}
	return nexthop, nil
}

// restoreASWidth rebuilds the real 4-byte AS_PATH/AGGREGATOR from a received
// attribute list carrying an AS4_PATH/AS4_AGGREGATOR companion, returning a
// new list with those companions removed. It triggers off the companion
// attribute's presence rather than the session's negotiated ASN width,
// since RestoreAsPath/RestoreAggregator are no-ops without a companion to
// restore from anyway.
func (f *FSM) restoreASWidth(attrs []packet.PathAttr) []packet.PathAttr {
	var asPathIdx, as4PathIdx = -1, -1
	var aggrIdx, as4AggrIdx = -1, -1

	for i, a := range attrs {
		switch a.TypeCode {
		case packet.ASPathAttr:
			asPathIdx = i
		case packet.As4PathAttr:
			as4PathIdx = i
		case packet.AggregatorAttr:
			aggrIdx = i
		case packet.As4AggregatorAttr:
			as4AggrIdx = i
		}
	}

	if as4PathIdx == -1 && as4AggrIdx == -1 {
		return attrs
	}

	out := make([]packet.PathAttr, 0, len(attrs))
	for i, a := range attrs {
		if i == as4PathIdx || i == as4AggrIdx {
			continue
		}
		if i == asPathIdx && as4PathIdx != -1 {
			asPath, _ := a.AsAsPath()
			as4Path, _ := attrs[as4PathIdx].AsAsPath()
			a.Value = packet.RestoreAsPath(asPath, as4Path)
		}
		if i == aggrIdx && as4AggrIdx != -1 {
			aggr, _ := a.AsAggregator()
			as4Aggr, _ := attrs[as4AggrIdx].AsAs4Aggregator()
			a.Value = packet.RestoreAggregator(aggr, as4Aggr, true)
		}
		out = append(out, a)
	}

	return out
}

// Handle implements bus.Receiver: sibling FSMs (and the host, for routes it
// changes in the RIB itself) publish events here.
func (f *FSM) Handle(publisher interface{}, event interface{}) bool {
	switch ev := event.(type) {
	case bus.CollisionProbe:
		return f.handleCollisionProbe(ev)
	case bus.RouteAdd:
		f.egressAdd(ev.Attribs, ev.Routes)
	case bus.RouteWithdraw:
		f.egressWithdraw(ev.Routes)
	}
	return false
}

// handleCollisionProbe compares this session's local RouterID against the
// peer's BGP Identifier carried by a colliding sibling's probe. The lower
// local BGP-ID wins: if this session's is lower, it keeps its session and
// reports consumed so the publisher (the newly arriving sibling) goes to
// IDLE instead; otherwise this session concedes on its own and reports
// consumed=false, leaving the publisher to proceed.
func (f *FSM) handleCollisionProbe(ev bus.CollisionProbe) bool {
	if f.state != Established && f.state != OpenConfirm {
		return false
	}
	if ev.PeerBGPID != f.peerBGPID {
		return false
	}

	if f.config.RouterID < ev.PeerBGPID {
		return true
	}

	f.sendNotification(bgperr.New(bgperr.ECease, bgperr.ECollision, nil))
	f.toIdle()
	return false
}

func (f *FSM) egressAdd(attribs []packet.PathAttr, routes []bnet.Prefix) {
	if f.state != Established {
		return
	}

	accepted := f.filterEgress(routes)
	if len(accepted) == 0 {
		return
	}

	attrs := f.rewriteForEgress(attribs)

	f.sendMessage(&packet.Message{
		Header: &packet.Header{Type: packet.UpdateMsg},
		Body:   &packet.Update{PathAttrs: attrs, NLRI: accepted},
	})
}

func (f *FSM) egressWithdraw(routes []bnet.Prefix) {
	if f.state != Established {
		return
	}

	accepted := f.filterEgress(routes)
	if len(accepted) == 0 {
		return
	}

	f.sendMessage(&packet.Message{
		Header: &packet.Header{Type: packet.UpdateMsg},
		Body:   &packet.Update{WithdrawnRoutes: accepted},
	})
}

func (f *FSM) filterEgress(routes []bnet.Prefix) []bnet.Prefix {
	var out []bnet.Prefix
	for _, pfx := range routes {
		if Apply(f.config.OutFilters, pfx) == Reject {
			continue
		}
		out = append(out, pfx)
	}
	return out
}

func (f *FSM) rewriteForEgress(attribs []packet.PathAttr) []packet.PathAttr {
	out := make([]packet.PathAttr, 0, len(attribs)+1)

	for _, a := range attribs {
		a = a.Clone()

		if _, ok := a.AsUnknown(); ok && a.Transitive {
			a.Partial = true
		}

		switch a.TypeCode {
		case packet.NextHopAttr:
			if f.config.ForcedDefaultNexthop {
				a.Value = uint32ToNextHop(f.config.Nexthop)
			}
			out = append(out, a)
			continue

		case packet.ASPathAttr:
			if f.is4b {
				out = append(out, a)
				continue
			}
			asPath, _ := a.AsAsPath()
			twoByte, as4 := packet.DowngradeAsPath(asPath)
			a.Value = twoByte
			out = append(out, a)
			out = append(out, packet.PathAttr{Optional: true, Transitive: true, TypeCode: packet.As4PathAttr, Value: as4})
			continue

		case packet.AggregatorAttr:
			if f.is4b {
				out = append(out, a)
				continue
			}
			aggr, _ := a.AsAggregator()
			twoByte, as4 := packet.DowngradeAggregator(aggr)
			a.Value = twoByte
			out = append(out, a)
			out = append(out, packet.PathAttr{Optional: true, Transitive: true, TypeCode: packet.As4AggregatorAttr, Value: as4})
			continue
		}

		out = append(out, a)
	}

	return out
}

func uint32ToNextHop(addr uint32) packet.NextHop {
	return packet.NextHop{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func (f *FSM) sendOpen() {
	o := &packet.Open{
		ASN:      uint16(f.config.ASN),
		HoldTime: f.config.HoldTime,
		BGPID:    f.config.RouterID,
	}
	if f.config.ASN > 0xffff {
		o.ASN = packet.ASTrans
	}
	if f.config.Use4BASN {
		o.Capabilities = append(o.Capabilities, packet.NewCapability4ByteASN(f.config.ASN))
	}

	f.sendMessage(&packet.Message{Header: &packet.Header{Type: packet.OpenMsg}, Body: o})
}

func (f *FSM) sendKeepalive() {
	f.sendMessage(&packet.Message{Header: &packet.Header{Type: packet.KeepaliveMsg}, Body: nil})
}

func (f *FSM) sendNotification(e *bgperr.Error) {
	f.sendMessage(&packet.Message{
		Header: &packet.Header{Type: packet.NotificationMsg},
		Body:   packet.NotificationFromErr(e),
	})
}

func (f *FSM) sendMessage(m *packet.Message) {
	raw, err := packet.Encode(m)
	if err != nil {
		f.log.Stderr(fmt.Sprintf("unable to encode outgoing message: %v", err))
		return
	}
	if f.config.Verbose {
		f.log.Stdout(fmt.Sprintf("sending %v", m))
	}
	if f.out == nil {
		return
	}
	if !f.out.HandleOut(raw) {
		f.log.Stderr("out handler reported a transport failure")
		f.toIdle()
	}
}

// minU16 implements RFC 4271's hold time negotiation: either side offering
// zero disables the timer entirely, otherwise the lower value wins.
func minU16(a, b uint16) uint16 {
	if a == 0 || b == 0 {
		return 0
	}
	if a < b {
		return a
	}
	return b
}
