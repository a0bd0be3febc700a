package rib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet"
)

func medAttrib(v uint32, firstASN uint32) []packet.PathAttr {
	return []packet.PathAttr{
		{Transitive: true, TypeCode: packet.ASPathAttr, Value: packet.AsPath{
			{Type: packet.ASSequence, ASNs: []uint32{firstASN}},
		}},
		{Optional: true, TypeCode: packet.MEDAttr, Value: packet.Med(v)},
	}
}

func TestRIBv4BestPathByMED(t *testing.T) {
	r := NewV4()
	pfx := bnet.NewPfx(0x0a000000, 8)

	ok := r.InsertFromPeer(1, pfx, 0, medAttrib(100, 65001), 0, r.NextUpdateID())
	require.True(t, ok)
	ok = r.InsertFromPeer(2, pfx, 0, medAttrib(50, 65001), 0, r.NextUpdateID())
	require.True(t, ok)

	best := r.Lookup(0x0a010203)
	require.NotNil(t, best)
	assert.Equal(t, uint32(2), best.SrcRouterID)
}

func TestRIBv4LookupLongestPrefixMatch(t *testing.T) {
	r := NewV4()
	wide := bnet.NewPfx(0x0a000000, 8)
	narrow := bnet.NewPfx(0x0a000000, 24)

	r.InsertFromPeer(1, wide, 0, medAttrib(0, 1), 0, r.NextUpdateID())
	r.InsertFromPeer(2, narrow, 0, medAttrib(0, 1), 0, r.NextUpdateID())

	best := r.Lookup(0x0a000001)
	require.NotNil(t, best)
	assert.True(t, best.Route.Equal(narrow))
}

func TestRIBv4WithdrawRemovesEntry(t *testing.T) {
	r := NewV4()
	pfx := bnet.NewPfx(0x0a000000, 8)
	r.InsertFromPeer(1, pfx, 0, medAttrib(0, 1), 0, r.NextUpdateID())

	assert.True(t, r.Withdraw(1, pfx))
	assert.Nil(t, r.Lookup(0x0a000001))
	assert.False(t, r.Withdraw(1, pfx))
}

func TestRIBv4DiscardRemovesAllFromSource(t *testing.T) {
	r := NewV4()
	a := bnet.NewPfx(0x0a000000, 8)
	b := bnet.NewPfx(0xac1e0000, 16)
	r.InsertFromPeer(1, a, 0, medAttrib(0, 1), 0, r.NextUpdateID())
	r.InsertFromPeer(1, b, 0, medAttrib(0, 1), 0, r.NextUpdateID())

	routes := r.Discard(1)
	assert.Len(t, routes, 2)
	assert.Nil(t, r.Lookup(0x0a000001))
	assert.Nil(t, r.Lookup(0xac1e0001))
}

func TestRIBv4InsertLocalRejectsDuplicate(t *testing.T) {
	r := NewV4()
	pfx := bnet.NewPfx(0x0a000000, 8)

	e := r.InsertLocal(pfx, 0xc0000201, 0)
	require.NotNil(t, e)
	assert.Equal(t, uint32(0), e.SrcRouterID)

	again := r.InsertLocal(pfx, 0xc0000201, 0)
	assert.Nil(t, again)
}

func TestRIBv4InsertLocalCoalescesUpdateID(t *testing.T) {
	r := NewV4()
	nh := uint32(0xc0000201)

	a := r.InsertLocal(bnet.NewPfx(0x0a000000, 8), nh, 0)
	b := r.InsertLocal(bnet.NewPfx(0xac1e0000, 16), nh, 0)

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.UpdateID, b.UpdateID)
}

func TestRIBv4TieBreakBySrcRouterID(t *testing.T) {
	r := NewV4()
	pfx := bnet.NewPfx(0x0a000000, 8)

	r.InsertFromPeer(5, pfx, 0, medAttrib(0, 1), 0, r.NextUpdateID())
	r.InsertFromPeer(3, pfx, 0, medAttrib(0, 1), 0, r.NextUpdateID())

	best := r.Lookup(0x0a000001)
	require.NotNil(t, best)
	assert.Equal(t, uint32(3), best.SrcRouterID)
}

func TestPreferredAntiSymmetry(t *testing.T) {
	a := candidate{weight: 1, srcRouterID: 1}
	b := candidate{weight: 2, srcRouterID: 2}

	aWins := preferred(a, b)
	bWins := preferred(b, a)
	assert.True(t, aWins != bWins)
}
