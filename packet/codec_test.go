package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bnet "github.com/korsaris/libbgp/net"
)

func TestRoundTripKeepalive(t *testing.T) {
	m := &Message{Header: &Header{Type: KeepaliveMsg, Length: HeaderLen}, Body: nil}
	raw, err := Encode(m)
	require.NoError(t, err)

	dec := NewDecoder(true)
	got, err := dec.Decode(bytes.NewBuffer(raw))
	require.NoError(t, err)
	assert.Equal(t, KeepaliveMsg, got.Header.Type)
	assert.Nil(t, got.Body)
}

func TestRoundTripOpen(t *testing.T) {
	o := &Open{
		ASN:      65001,
		HoldTime: 90,
		BGPID:    0x0a000001,
		Capabilities: []Capability{
			newCapability4ByteASN(65001),
		},
	}
	raw, err := Encode(&Message{Header: &Header{Type: OpenMsg}, Body: o})
	require.NoError(t, err)

	dec := NewDecoder(true)
	got, err := dec.Decode(bytes.NewBuffer(raw))
	require.NoError(t, err)

	gotOpen, ok := got.Body.(*Open)
	require.True(t, ok)
	assert.Equal(t, o.ASN, gotOpen.ASN)
	assert.Equal(t, o.HoldTime, gotOpen.HoldTime)
	assert.Equal(t, o.BGPID, gotOpen.BGPID)
	assert.True(t, gotOpen.Has4ByteASN())
	asn4, ok := gotOpen.ASN4()
	require.True(t, ok)
	assert.Equal(t, uint32(65001), asn4)
}

func TestRoundTripUpdate(t *testing.T) {
	u := &Update{
		WithdrawnRoutes: []bnet.Prefix{bnet.NewPfx(0x0a000000, 24)},
		PathAttrs: []PathAttr{
			{Transitive: true, TypeCode: OriginAttr, Value: Origin(IGP)},
			{Transitive: true, TypeCode: ASPathAttr, Value: AsPath{
				{Is4B: true, Type: ASSequence, ASNs: []uint32{65001, 65002}},
			}},
			{Transitive: true, TypeCode: NextHopAttr, Value: NextHop{192, 0, 2, 1}},
		},
		NLRI: []bnet.Prefix{bnet.NewPfx(0xc0000200, 24)},
	}

	raw, err := Encode(&Message{Header: &Header{Type: UpdateMsg}, Body: u})
	require.NoError(t, err)

	dec := NewDecoder(true)
	got, err := dec.Decode(bytes.NewBuffer(raw))
	require.NoError(t, err)

	gotUpdate, ok := got.Body.(*Update)
	require.True(t, ok)
	require.Len(t, gotUpdate.WithdrawnRoutes, 1)
	assert.True(t, gotUpdate.WithdrawnRoutes[0].Equal(u.WithdrawnRoutes[0]))
	require.Len(t, gotUpdate.NLRI, 1)
	assert.True(t, gotUpdate.NLRI[0].Equal(u.NLRI[0]))

	require.Len(t, gotUpdate.PathAttrs, 3)
	origin, ok := gotUpdate.PathAttrs[0].AsOrigin()
	require.True(t, ok)
	assert.Equal(t, Origin(IGP), origin)

	asPath, ok := gotUpdate.PathAttrs[1].AsAsPath()
	require.True(t, ok)
	assert.Equal(t, 2, asPath.ASNCount())
	first, ok := asPath.FirstASN()
	require.True(t, ok)
	assert.Equal(t, uint32(65001), first)
}

func TestRoundTripNotification(t *testing.T) {
	n := &Notification{ErrorCode: 6, ErrorSubcode: 7, Data: []byte{1, 2, 3, 4}}
	raw, err := Encode(&Message{Header: &Header{Type: NotificationMsg}, Body: n})
	require.NoError(t, err)

	dec := NewDecoder(true)
	got, err := dec.Decode(bytes.NewBuffer(raw))
	require.NoError(t, err)

	gotN, ok := got.Body.(*Notification)
	require.True(t, ok)
	assert.Equal(t, n.ErrorCode, gotN.ErrorCode)
	assert.Equal(t, n.ErrorSubcode, gotN.ErrorSubcode)
	assert.Equal(t, n.Data, gotN.Data)
}

func TestDecodeHeaderBadMarker(t *testing.T) {
	raw := make([]byte, 19)
	buf := bytes.NewBuffer(raw)
	dec := NewDecoder(true)
	_, err := dec.Decode(buf)
	assert.Error(t, err)
}

func TestValidateAttribsDuplicateType(t *testing.T) {
	attrs := []PathAttr{
		{TypeCode: OriginAttr, Value: Origin(IGP)},
		{TypeCode: OriginAttr, Value: Origin(EGP)},
	}
	err := ValidateAttribs(attrs)
	assert.Error(t, err)
}

func TestDowngradeAndRestoreAsPath(t *testing.T) {
	full := AsPath{
		{Is4B: true, Type: ASSequence, ASNs: []uint32{65001, 400000, 65003}},
	}

	twoByte, as4 := DowngradeAsPath(full)
	assert.Equal(t, uint32(ASTrans), twoByte[0].ASNs[1])
	assert.False(t, twoByte[0].Is4B)
	assert.True(t, as4[0].Is4B)

	restored := RestoreAsPath(twoByte, as4)
	assert.Equal(t, full[0].ASNs, restored[0].ASNs)
	assert.True(t, restored[0].Is4B)
}

func TestDowngradeAndRestoreAggregator(t *testing.T) {
	full := Aggregator{Is4B: true, Addr: [4]byte{10, 0, 0, 1}, ASN: 400000}

	twoByte, as4 := DowngradeAggregator(full)
	assert.Equal(t, uint32(ASTrans), twoByte.ASN)

	restored := RestoreAggregator(twoByte, as4, true)
	assert.Equal(t, full.ASN, restored.ASN)
	assert.True(t, restored.Is4B)
}

func TestAsPathASNCountCountsASSetAsOne(t *testing.T) {
	p := AsPath{
		{Type: ASSequence, ASNs: []uint32{1, 2}},
		{Type: ASSet, ASNs: []uint32{3, 4, 5}},
	}
	assert.Equal(t, 3, p.ASNCount())
}
