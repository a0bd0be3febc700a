package net

import (
	"bytes"
	"fmt"
	stdnet "net"
)

// Prefix6 represents an IPv6 prefix. addr is stored in network byte order,
// bits beyond pfxlen always zeroed.
type Prefix6 struct {
	addr   [16]byte
	pfxlen uint8
}

// NewPfx6 creates a new canonical Prefix6, masking off bits beyond pfxlen.
func NewPfx6(addr [16]byte, pfxlen uint8) Prefix6 {
	return Prefix6{
		addr:   maskAddr6(addr, pfxlen),
		pfxlen: pfxlen,
	}
}

// Addr returns the address of the prefix in network byte order.
func (pfx Prefix6) Addr() [16]byte {
	return pfx.addr
}

// Pfxlen returns the length of the prefix.
func (pfx Prefix6) Pfxlen() uint8 {
	return pfx.pfxlen
}

// String returns a string representation of pfx.
func (pfx Prefix6) String() string {
	a := pfx.addr
	return fmt.Sprintf("%s/%d", stdnet.IP(a[:]), pfx.pfxlen)
}

func mask6(pfxlen uint8) [16]byte {
	var m [16]byte
	full := pfxlen / 8
	rem := pfxlen % 8
	for i := uint8(0); i < full && i < 16; i++ {
		m[i] = 0xff
	}
	if full < 16 && rem > 0 {
		m[full] = ^byte(0xff >> rem)
	}
	return m
}

func maskAddr6(addr [16]byte, pfxlen uint8) [16]byte {
	m := mask6(pfxlen)
	var out [16]byte
	for i := range out {
		out[i] = addr[i] & m[i]
	}
	return out
}

// Contains checks if x is equal to or a subnet of pfx.
func (pfx Prefix6) Contains(x Prefix6) bool {
	if x.pfxlen < pfx.pfxlen {
		return false
	}
	m := mask6(pfx.pfxlen)
	for i := range m {
		if (pfx.addr[i]^x.addr[i])&m[i] != 0 {
			return false
		}
	}
	return true
}

// Equal checks if pfx and x are equal.
func (pfx Prefix6) Equal(x Prefix6) bool {
	return pfx.pfxlen == x.pfxlen && bytes.Equal(pfx.addr[:], x.addr[:])
}

// MoreSpecific reports whether pfx is strictly more specific than x while
// sharing the same network base.
func (pfx Prefix6) MoreSpecific(x Prefix6) bool {
	return pfx.pfxlen > x.pfxlen && x.Contains(pfx)
}

// Includes checks if addr (network order) falls within pfx.
func (pfx Prefix6) Includes(addr [16]byte) bool {
	m := mask6(pfx.pfxlen)
	for i := range m {
		if (pfx.addr[i]^addr[i])&m[i] != 0 {
			return false
		}
	}
	return true
}

// GetSupernet gets the next common supernet of pfx and x.
func (pfx Prefix6) GetSupernet(x Prefix6) Prefix6 {
	maxPfxLen := min8(pfx.pfxlen, x.pfxlen)
	for maxPfxLen > 0 {
		m := mask6(maxPfxLen)
		match := true
		for i := range m {
			if (pfx.addr[i]^x.addr[i])&m[i] != 0 {
				match = false
				break
			}
		}
		if match {
			break
		}
		maxPfxLen--
	}

	return NewPfx6(pfx.addr, maxPfxLen)
}
