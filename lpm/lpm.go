// Package lpm implements a longest-prefix-match trie for IPv4 and IPv6
// prefixes, used by the rib package to back best-path lookups.
package lpm

import (
	bnet "github.com/korsaris/libbgp/net"
)

// LPM is a longest-prefix-match trie over IPv4 prefixes.
type LPM struct {
	root *node
}

type node struct {
	skip  uint8
	dummy bool
	pfx   bnet.Prefix
	l     *node
	h     *node
}

// New creates a new empty LPM.
func New() *LPM {
	return &LPM{}
}

func newNode(pfx bnet.Prefix, skip uint8, dummy bool) *node {
	return &node{
		pfx:   pfx,
		skip:  skip,
		dummy: dummy,
	}
}

// LPM performs a longest prefix match for pfx on lpm, returning every
// covering prefix from least to most specific.
func (lpm *LPM) LPM(pfx bnet.Prefix) []bnet.Prefix {
	if lpm.root == nil {
		return nil
	}

	var res []bnet.Prefix
	lpm.root.lpm(pfx, &res)
	return res
}

// Get gets prefix pfx from the LPM. If moreSpecifics is set, every prefix
// equal to or more specific than pfx is returned.
func (lpm *LPM) Get(pfx bnet.Prefix, moreSpecifics bool) []bnet.Prefix {
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

	return []bnet.Prefix{n.pfx}
}

// Insert inserts a prefix into the LPM.
func (lpm *LPM) Insert(pfx bnet.Prefix) {
	if lpm.root == nil {
		lpm.root = newNode(pfx, pfx.Pfxlen(), false)
		return
	}

	lpm.root = lpm.root.insert(pfx)
}

func (n *node) lpm(needle bnet.Prefix, res *[]bnet.Prefix) {
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

func (n *node) dumpPfxs(res []bnet.Prefix) []bnet.Prefix {
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

func (n *node) get(pfx bnet.Prefix) *node {
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

	if !getBitUint32(pfx.Addr(), n.pfx.Pfxlen()+1) {
		return n.l.get(pfx)
	}
	return n.h.get(pfx)
}

func (n *node) insert(pfx bnet.Prefix) *node {
	if n.pfx.Equal(pfx) {
		return n
	}

	// is pfx NOT a subnet of this node?
	if !n.pfx.Contains(pfx) {
		if pfx.Contains(n.pfx) {
			return n.insertBefore(pfx, n.pfx.Pfxlen()-n.skip-1)
		}

		return n.newSuperNode(pfx)
	}

	// pfx is a subnet of this node
	if !getBitUint32(pfx.Addr(), n.pfx.Pfxlen()+1) {
		return n.insertLow(pfx, n.pfx.Pfxlen())
	}
	return n.insertHigh(pfx, n.pfx.Pfxlen())
}

func (n *node) insertLow(pfx bnet.Prefix, parentPfxLen uint8) *node {
	if n.l == nil {
		n.l = newNode(pfx, pfx.Pfxlen()-parentPfxLen-1, false)
		return n
	}
	n.l = n.l.insert(pfx)
	return n
}

func (n *node) insertHigh(pfx bnet.Prefix, parentPfxLen uint8) *node {
	if n.h == nil {
		n.h = newNode(pfx, pfx.Pfxlen()-parentPfxLen-1, false)
		return n
	}
	n.h = n.h.insert(pfx)
	return n
}

func (n *node) newSuperNode(pfx bnet.Prefix) *node {
	superNet := pfx.GetSupernet(n.pfx)

	pfxLenDiff := n.pfx.Pfxlen() - superNet.Pfxlen()
	skip := n.skip - pfxLenDiff

	pseudoNode := newNode(superNet, skip, true)
	pseudoNode.insertChildren(n, pfx)
	return pseudoNode
}

func (n *node) insertChildren(old *node, newPfx bnet.Prefix) {
	if !getBitUint32(old.pfx.Addr(), n.pfx.Pfxlen()+1) {
		n.l = old
		n.l.skip = old.pfx.Pfxlen() - n.pfx.Pfxlen() - 1
	} else {
		n.h = old
		n.h.skip = old.pfx.Pfxlen() - n.pfx.Pfxlen() - 1
	}

	child := newNode(newPfx, newPfx.Pfxlen()-n.pfx.Pfxlen()-1, false)
	if !getBitUint32(newPfx.Addr(), n.pfx.Pfxlen()+1) {
		n.l = child
	} else {
		n.h = child
	}
}

func (n *node) insertBefore(pfx bnet.Prefix, parentPfxLen uint8) *node {
	tmp := n

	pfxLenDiff := n.pfx.Pfxlen() - pfx.Pfxlen()
	skip := n.skip - pfxLenDiff
	newN := newNode(pfx, skip, false)

	if !getBitUint32(pfx.Addr(), parentPfxLen) {
		newN.l = tmp
		newN.l.skip = tmp.pfx.Pfxlen() - pfx.Pfxlen() - 1
	} else {
		newN.h = tmp
		newN.h.skip = tmp.pfx.Pfxlen() - pfx.Pfxlen() - 1
	}

	return newN
}

func getBitUint32(x uint32, pos uint8) bool {
	if pos == 0 || pos > 32 {
		return false
	}
	return (x & (1 << (32 - pos))) != 0
}
