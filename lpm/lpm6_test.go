package lpm

import (
	"testing"

	bnet "github.com/korsaris/libbgp/net"

	"github.com/stretchr/testify/assert"
)

func addr6(hextets ...byte) [16]byte {
	var a [16]byte
	copy(a[:], hextets)
	return a
}

func TestNew6(t *testing.T) {
	l := New6()
	assert.NotNil(t, l)
}

func TestLPM6(t *testing.T) {
	docPfx := bnet.NewPfx6(addr6(0x20, 0x01, 0x0d, 0xb8), 32)
	subPfx := bnet.NewPfx6(addr6(0x20, 0x01, 0x0d, 0xb8, 0x00, 0x01), 48)
	needle := bnet.NewPfx6(addr6(0x20, 0x01, 0x0d, 0xb8, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01), 128)

	lpm := New6()
	lpm.Insert(docPfx)
	lpm.Insert(subPfx)

	res := lpm.LPM(needle)
	assert.Equal(t, []bnet.Prefix6{docPfx, subPfx}, res)
}

func TestGet6(t *testing.T) {
	docPfx := bnet.NewPfx6(addr6(0x20, 0x01, 0x0d, 0xb8), 32)
	other := bnet.NewPfx6(addr6(0x20, 0x02), 16)

	lpm := New6()
	lpm.Insert(docPfx)
	lpm.Insert(other)

	got := lpm.Get(docPfx, false)
	assert.Len(t, got, 1)
	assert.Equal(t, docPfx, got[0])
}

func TestGetBitAddr6(t *testing.T) {
	a := addr6(0x80)
	assert.True(t, getBitAddr6(a, 1))
	assert.False(t, getBitAddr6(a, 2))
}
