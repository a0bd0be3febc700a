// Package net provides the IPv4 and IPv6 prefix value types used by the
// codec, lpm and rib packages.
package net

import (
	"fmt"
	"net"

	"github.com/taktv6/tflow2/convert"
)

// Prefix represents an IPv4 prefix. addr is stored in host byte order with
// bits beyond length always zeroed (the canonical form required by the
// wire codec and the RIB).
type Prefix struct {
	addr   uint32
	pfxlen uint8
}

// NewPfx creates a new canonical Prefix, masking off bits beyond pfxlen.
func NewPfx(addr uint32, pfxlen uint8) Prefix {
	return Prefix{
		addr:   addr & mask4(pfxlen),
		pfxlen: pfxlen,
	}
}

// Addr returns the address of the prefix.
func (pfx Prefix) Addr() uint32 {
	return pfx.addr
}

// Pfxlen returns the length of the prefix.
func (pfx Prefix) Pfxlen() uint8 {
	return pfx.pfxlen
}

// String returns a string representation of pfx.
func (pfx Prefix) String() string {
	return fmt.Sprintf("%s/%d", net.IP(convert.Uint32Byte(pfx.addr)), pfx.pfxlen)
}

func mask4(pfxlen uint8) uint32 {
	if pfxlen == 0 {
		return 0
	}
	if pfxlen >= 32 {
		return 0xffffffff
	}
	return ^uint32(0) << (32 - pfxlen)
}

// Contains checks if x is equal to or a subnet of pfx.
func (pfx Prefix) Contains(x Prefix) bool {
	if x.pfxlen < pfx.pfxlen {
		return false
	}
	m := mask4(pfx.pfxlen)
	return (pfx.addr^x.addr)&m == 0
}

// Equal checks if pfx and x are equal.
func (pfx Prefix) Equal(x Prefix) bool {
	return pfx == x
}

// MoreSpecific reports whether pfx is strictly more specific than x while
// sharing the same network base.
func (pfx Prefix) MoreSpecific(x Prefix) bool {
	return pfx.pfxlen > x.pfxlen && x.Contains(pfx)
}

// Includes checks if addr (host order) falls within pfx.
func (pfx Prefix) Includes(addr uint32) bool {
	m := mask4(pfx.pfxlen)
	return (pfx.addr^addr)&m == 0
}

// GetSupernet gets the next common supernet of pfx and x.
func (pfx Prefix) GetSupernet(x Prefix) Prefix {
	maxPfxLen := min8(pfx.pfxlen, x.pfxlen)
	if maxPfxLen > 0 {
		maxPfxLen--
	}
	a := pfx.addr >> (32 - maxPfxLen)
	b := x.addr >> (32 - maxPfxLen)

	for maxPfxLen > 0 && a != b {
		a >>= 1
		b >>= 1
		maxPfxLen--
	}

	if maxPfxLen == 0 {
		return Prefix{}
	}

	return NewPfx(a<<(32-maxPfxLen), maxPfxLen)
}

func min8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}
