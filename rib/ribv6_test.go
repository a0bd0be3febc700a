package rib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet"
)

func addr6(hextets ...byte) [16]byte {
	var out [16]byte
	copy(out[:], hextets)
	return out
}

func TestRIBv6BestPathAndWithdraw(t *testing.T) {
	r := NewV6()
	pfx := bnet.NewPfx6(addr6(0x20, 0x01, 0x0d, 0xb8), 32)

	attribsA := []packet.PathAttr{{TypeCode: packet.LocalPrefAttr, Value: packet.LocalPref(100)}}
	attribsB := []packet.PathAttr{{TypeCode: packet.LocalPrefAttr, Value: packet.LocalPref(200)}}

	r.InsertFromPeer(1, pfx, addr6(0xfe, 0x80), [16]byte{}, false, attribsA, 0, r.NextUpdateID())
	r.InsertFromPeer(2, pfx, addr6(0xfe, 0x80, 1), [16]byte{}, false, attribsB, 0, r.NextUpdateID())

	best := r.Lookup(addr6(0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 1))
	require.NotNil(t, best)
	assert.Equal(t, uint32(2), best.SrcRouterID)

	assert.True(t, r.Withdraw(2, pfx))
	best = r.Lookup(addr6(0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 1))
	require.NotNil(t, best)
	assert.Equal(t, uint32(1), best.SrcRouterID)
}
