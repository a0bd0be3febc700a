package lpm

import (
	bnet "github.com/korsaris/libbgp/net"
)

// LPM6 is a longest-prefix-match trie over IPv6 prefixes.
type LPM6 struct {
	root *node6
}

type node6 struct {
	skip  uint8
	dummy bool
	pfx   bnet.Prefix6
	l     *node6
	h     *node6
}

// New6 creates a new empty LPM6.
func New6() *LPM6 {
	return &LPM6{}
}

func newNode6(pfx bnet.Prefix6, skip uint8, dummy bool) *node6 {
	return &node6{
		pfx:   pfx,
		skip:  skip,
		dummy: dummy,
	}
}

// LPM performs a longest prefix match for pfx on lpm, returning every
// covering prefix from least to most specific.
func (lpm *LPM6) LPM(pfx bnet.Prefix6) []bnet.Prefix6 {
	if lpm.root == nil {
		return nil
	}

	var res []bnet.Prefix6
	lpm.root.lpm(pfx, &res)
	return res
}

// Get gets prefix pfx from the LPM. If moreSpecifics is set, every prefix
// equal to or more specific than pfx is returned.
func (lpm *LPM6) Get(pfx bnet.Prefix6, moreSpecifics bool) []bnet.Prefix6 {
	if lpm.root == nil {
		return nil
	}

	n := lpm.root.get(pfx)
	if moreSpecifics {
		if n == nil {
			return nil
		}
		return n.dumpPfxs(nil)
	}

	if n == nil {
		return nil
	}

	return []bnet.Prefix6{n.pfx}
}

// Insert inserts a prefix into the LPM.
func (lpm *LPM6) Insert(pfx bnet.Prefix6) {
	if lpm.root == nil {
		lpm.root = newNode6(pfx, pfx.Pfxlen(), false)
		return
	}

	lpm.root = lpm.root.insert(pfx)
}

func (n *node6) lpm(needle bnet.Prefix6, res *[]bnet.Prefix6) {
	if n == nil {
		return
	}

	if n.pfx.Equal(needle) && !n.dummy {
		*res = append(*res, n.pfx)
		return
	}

	if !n.pfx.Contains(needle) {
		return
	}

	if !n.dummy {
		*res = append(*res, n.pfx)
	}
	n.l.lpm(needle, res)
	n.h.lpm(needle, res)
}

func (n *node6) dumpPfxs(res []bnet.Prefix6) []bnet.Prefix6 {
	if n == nil {
		return res
	}

	if !n.dummy {
		res = append(res, n.pfx)
	}

	res = n.l.dumpPfxs(res)
	res = n.h.dumpPfxs(res)

	return res
}

func (n *node6) get(pfx bnet.Prefix6) *node6 {
	if n == nil {
		return nil
	}

	if n.pfx.Equal(pfx) {
		if n.dummy {
			return nil
		}
		return n
	}

	if n.pfx.Pfxlen() > pfx.Pfxlen() {
		return nil
	}

	if !getBitAddr6(pfx.Addr(), n.pfx.Pfxlen()+1) {
		return n.l.get(pfx)
	}
	return n.h.get(pfx)
}

func (n *node6) insert(pfx bnet.Prefix6) *node6 {
	if n.pfx.Equal(pfx) {
		return n
	}

	if !n.pfx.Contains(pfx) {
		if pfx.Contains(n.pfx) {
			return n.insertBefore(pfx, n.pfx.Pfxlen()-n.skip-1)
		}

		return n.newSuperNode(pfx)
	}

	if !getBitAddr6(pfx.Addr(), n.pfx.Pfxlen()+1) {
		return n.insertLow(pfx, n.pfx.Pfxlen())
	}
	return n.insertHigh(pfx, n.pfx.Pfxlen())
}

func (n *node6) insertLow(pfx bnet.Prefix6, parentPfxLen uint8) *node6 {
	if n.l == nil {
		n.l = newNode6(pfx, pfx.Pfxlen()-parentPfxLen-1, false)
		return n
	}
	n.l = n.l.insert(pfx)
	return n
}

func (n *node6) insertHigh(pfx bnet.Prefix6, parentPfxLen uint8) *node6 {
	if n.h == nil {
		n.h = newNode6(pfx, pfx.Pfxlen()-parentPfxLen-1, false)
		return n
	}
	n.h = n.h.insert(pfx)
	return n
}

func (n *node6) newSuperNode(pfx bnet.Prefix6) *node6 {
	superNet := pfx.GetSupernet(n.pfx)

	pfxLenDiff := n.pfx.Pfxlen() - superNet.Pfxlen()
	skip := n.skip - pfxLenDiff

	pseudoNode := newNode6(superNet, skip, true)
	pseudoNode.insertChildren(n, pfx)
	return pseudoNode
}

func (n *node6) insertChildren(old *node6, newPfx bnet.Prefix6) {
	if !getBitAddr6(old.pfx.Addr(), n.pfx.Pfxlen()+1) {
		n.l = old
		n.l.skip = old.pfx.Pfxlen() - n.pfx.Pfxlen() - 1
	} else {
		n.h = old
		n.h.skip = old.pfx.Pfxlen() - n.pfx.Pfxlen() - 1
	}

	child := newNode6(newPfx, newPfx.Pfxlen()-n.pfx.Pfxlen()-1, false)
	if !getBitAddr6(newPfx.Addr(), n.pfx.Pfxlen()+1) {
		n.l = child
	} else {
		n.h = child
	}
}

func (n *node6) insertBefore(pfx bnet.Prefix6, parentPfxLen uint8) *node6 {
	tmp := n

	pfxLenDiff := n.pfx.Pfxlen() - pfx.Pfxlen()
	skip := n.skip - pfxLenDiff
	newN := newNode6(pfx, skip, false)

	if !getBitAddr6(pfx.Addr(), parentPfxLen) {
		newN.l = tmp
		newN.l.skip = tmp.pfx.Pfxlen() - pfx.Pfxlen() - 1
	} else {
		newN.h = tmp
		newN.h.skip = tmp.pfx.Pfxlen() - pfx.Pfxlen() - 1
	}

	return newN
}

// getBitAddr6 returns the bit at 1-indexed position pos (from the MSB) of a
// 128-bit address.
func getBitAddr6(addr [16]byte, pos uint8) bool {
	if pos == 0 || pos > 128 {
		return false
	}
	byteIdx := (pos - 1) / 8
	bitIdx := (pos - 1) % 8
	return addr[byteIdx]&(0x80>>bitIdx) != 0
}
