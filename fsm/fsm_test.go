package fsm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korsaris/libbgp/bus"
	"github.com/korsaris/libbgp/clock"
	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet"
	"github.com/korsaris/libbgp/rib"
)

// queueOut buffers outgoing bytes instead of delivering them inline, so a
// test can pump two FSMs' output into each other in well-defined rounds
// rather than relying on reentrant delivery mid-Start.
type queueOut struct {
	queued [][]byte
}

func (q *queueOut) HandleOut(b []byte) bool {
	cp := make([]byte, len(b))
	copy(cp, b)
	q.queued = append(q.queued, cp)
	return true
}

func (q *queueOut) drain() [][]byte {
	out := q.queued
	q.queued = nil
	return out
}

type nullLog struct{}

func (nullLog) Stdout(string) {}
func (nullLog) Stderr(string) {}

// pump alternately delivers each side's queued output to the other until
// neither has anything left to send, mirroring how a real TCP session
// settles after both ends call Start.
func pump(t *testing.T, a, b *FSM, outA, outB *queueOut) {
	t.Helper()
	for i := 0; i < 10; i++ {
		aMsgs, bMsgs := outA.drain(), outB.drain()
		if len(aMsgs) == 0 && len(bMsgs) == 0 {
			return
		}
		for _, m := range aMsgs {
			b.BytesIn(m)
		}
		for _, m := range bMsgs {
			a.BytesIn(m)
		}
	}
}

func TestOpenExchangeReachesEstablished(t *testing.T) {
	c := clock.NewMock(1000)
	cfgA := Config{ASN: 65000, PeerASN: 65001, RouterID: 1, HoldTime: 90}
	cfgB := Config{ASN: 65001, PeerASN: 65000, RouterID: 2, HoldTime: 90}
	outA, outB := &queueOut{}, &queueOut{}
	a := New(cfgA, c, outA, nullLog{}, nil, nil)
	b := New(cfgB, c, outB, nullLog{}, nil, nil)

	a.Start()
	b.Start()
	pump(t, a, b, outA, outB)

	assert.Equal(t, Established, a.State())
	assert.Equal(t, Established, b.State())
}

func TestASNMismatchNotifiesAndReturnsToIdle(t *testing.T) {
	c := clock.NewMock(1000)
	cfgA := Config{ASN: 65000, PeerASN: 65001, RouterID: 1, HoldTime: 90}
	cfgB := Config{ASN: 65002, PeerASN: 65000, RouterID: 2, HoldTime: 90}
	outA, outB := &queueOut{}, &queueOut{}
	a := New(cfgA, c, outA, nullLog{}, nil, nil)
	b := New(cfgB, c, outB, nullLog{}, nil, nil)

	a.Start()
	b.Start()
	pump(t, a, b, outA, outB)

	assert.Equal(t, Idle, a.State())
}

func TestCollisionResolutionNewSessionConcedesWhenLocalIDLower(t *testing.T) {
	c := clock.NewMock(1000)
	b := bus.New()

	sibling := New(Config{ASN: 65000, PeerASN: 65001, RouterID: 1, HoldTime: 90}, c, &queueOut{}, nullLog{}, nil, b)
	sibling.state = Established
	sibling.peerBGPID = 100
	b.Subscribe(sibling)

	newSession := New(Config{ASN: 65000, PeerASN: 65001, RouterID: 1, HoldTime: 90}, c, &queueOut{}, nullLog{}, nil, b)
	newSession.state = OpenSent
	b.Subscribe(newSession)

	newSession.handleOpen(&packet.Open{ASN: 65001, HoldTime: 90, BGPID: 100})

	assert.Equal(t, Idle, newSession.State())
	assert.Equal(t, Established, sibling.State())
}

func TestCollisionResolutionExistingSessionConcedesWhenLocalIDNotLower(t *testing.T) {
	c := clock.NewMock(1000)
	b := bus.New()

	sibling := New(Config{ASN: 65000, PeerASN: 65001, RouterID: 200, HoldTime: 90}, c, &queueOut{}, nullLog{}, nil, b)
	sibling.state = Established
	sibling.peerBGPID = 100
	b.Subscribe(sibling)

	newSession := New(Config{ASN: 65000, PeerASN: 65001, RouterID: 200, HoldTime: 90}, c, &queueOut{}, nullLog{}, nil, b)
	newSession.state = OpenSent
	b.Subscribe(newSession)

	newSession.handleOpen(&packet.Open{ASN: 65001, HoldTime: 90, BGPID: 100})

	assert.Equal(t, OpenConfirm, newSession.State())
	assert.Equal(t, Idle, sibling.State())
}

func TestDowngradeASPathOnEgressTo2ByteSpeaker(t *testing.T) {
	c := clock.NewMock(1000)
	f := New(Config{ASN: 65000, PeerASN: 65001, RouterID: 1, HoldTime: 90}, c, nil, nullLog{}, nil, nil)
	f.is4b = false

	full := packet.PathAttr{Transitive: true, TypeCode: packet.ASPathAttr, Value: packet.AsPath{
		{Is4B: true, Type: packet.ASSequence, ASNs: []uint32{70000, 65000}},
	}}

	out := f.rewriteForEgress([]packet.PathAttr{full})
	require.Len(t, out, 2)

	twoByte, ok := out[0].AsAsPath()
	require.True(t, ok)
	assert.Equal(t, uint32(packet.ASTrans), twoByte[0].ASNs[0])
	assert.Equal(t, uint32(65000), twoByte[0].ASNs[1])

	as4, ok := out[1].AsAsPath()
	require.True(t, ok)
	assert.Equal(t, packet.As4PathAttr, out[1].TypeCode)
	assert.Equal(t, uint32(70000), as4[0].ASNs[0])
}

func TestWithdrawPropagationAcrossSharedBusAndRIB(t *testing.T) {
	c := clock.NewMock(1000)
	r := rib.NewV4()
	b := bus.New()

	cfgA := Config{ASN: 65000, PeerASN: 65001, RouterID: 1, HoldTime: 90}
	fa := New(cfgA, c, nil, nullLog{}, r, b)

	captured := &capturingOut{}
	fb := New(Config{ASN: 65001, PeerASN: 65000, RouterID: 2, HoldTime: 90}, c, captured, nullLog{}, r, b)
	fb.state = Established
	b.Subscribe(fb)

	pfx := bnet.NewPfx(0xac1e0000, 24)
	r.InsertFromPeer(9, pfx, 0, []packet.PathAttr{
		{Transitive: true, TypeCode: packet.OriginAttr, Value: packet.Origin(packet.IGP)},
	}, 0, r.NextUpdateID())

	require.True(t, r.Withdraw(9, pfx))
	b.Publish(fa, bus.RouteWithdraw{Routes: []bnet.Prefix{pfx}})

	require.Len(t, captured.messages, 1)
	u, ok := captured.messages[0].Body.(*packet.Update)
	require.True(t, ok)
	require.Len(t, u.WithdrawnRoutes, 1)
	assert.True(t, u.WithdrawnRoutes[0].Equal(pfx))
}

type capturingOut struct {
	messages []*packet.Message
}

func (c *capturingOut) HandleOut(raw []byte) bool {
	dec := packet.NewDecoder(true)
	msg, err := dec.Decode(bytes.NewBuffer(raw))
	if err != nil {
		return false
	}
	c.messages = append(c.messages, msg)
	return true
}

func TestHoldTimerExpiry(t *testing.T) {
	c := clock.NewMock(1000)
	f := New(Config{ASN: 65000, PeerASN: 65001, RouterID: 1, HoldTime: 30}, c, &capturingOut{}, nullLog{}, nil, nil)
	f.state = Established
	f.holdTime = 30
	f.lastRecv = 1000

	c.Advance(29)
	f.Tick(c.Now())
	assert.Equal(t, Established, f.State())

	c.Advance(2)
	f.Tick(c.Now())
	assert.Equal(t, Idle, f.State())
}

func TestFilterRejectsPrefix(t *testing.T) {
	pfx := bnet.NewPfx(0x0a000000, 8)
	filters := []Filter{{Action: Reject, Prefix: bnet.NewPfx(0x0a000000, 8), Match: OrLonger}}
	assert.Equal(t, Reject, Apply(filters, pfx))
	assert.Equal(t, Reject, Apply(filters, bnet.NewPfx(0x0a000100, 24)))
	assert.Equal(t, Accept, Apply(filters, bnet.NewPfx(0x0b000000, 8)))
}
