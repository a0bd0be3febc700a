package rib

import "github.com/korsaris/libbgp/packet"

// candidate is the subset of an entry's fields the best-path tie-break
// looks at, extracted once from an entry's Attribs/Weight/SrcRouterID so v4
// and v6 RIBs share one comparison.
type candidate struct {
	weight       int32
	localPref    uint32
	hasLocalPref bool
	asPath       packet.AsPath
	origin       packet.Origin
	hasOrigin    bool
	med          uint32
	hasMed       bool
	firstASN     uint32
	hasFirstASN  bool
	srcRouterID  uint32
}

func candidateOf(attribs []packet.PathAttr, weight int32, srcRouterID uint32) candidate {
	c := candidate{weight: weight, srcRouterID: srcRouterID}

	for _, a := range attribs {
		switch a.TypeCode {
		case packet.LocalPrefAttr:
			if v, ok := a.AsLocalPref(); ok {
				c.localPref = uint32(v)
				c.hasLocalPref = true
			}
		case packet.ASPathAttr:
			if v, ok := a.AsAsPath(); ok {
				c.asPath = v
				if asn, ok := v.FirstASN(); ok {
					c.firstASN = asn
					c.hasFirstASN = true
				}
			}
		case packet.OriginAttr:
			if v, ok := a.AsOrigin(); ok {
				c.origin = v
				c.hasOrigin = true
			}
		case packet.MEDAttr:
			if v, ok := a.AsMed(); ok {
				c.med = uint32(v)
				c.hasMed = true
			}
		}
	}

	return c
}

// preferred reports whether a is strictly preferred over b under the
// best-path tie-break ordering: weight, LOCAL_PREF, AS_PATH length, ORIGIN,
// MED (only when the routes share their first AS), src_router_id.
func preferred(a, b candidate) bool {
	if a.weight != b.weight {
		return a.weight > b.weight
	}

	if a.localPref != b.localPref {
		return a.localPref > b.localPref
	}

	aLen, bLen := a.asPath.ASNCount(), b.asPath.ASNCount()
	if aLen != bLen {
		return aLen < bLen
	}

	if a.hasOrigin && b.hasOrigin && a.origin != b.origin {
		return a.origin < b.origin
	}

	if a.hasMed && b.hasMed && a.hasFirstASN && b.hasFirstASN && a.firstASN == b.firstASN && a.med != b.med {
		return a.med < b.med
	}

	return a.srcRouterID < b.srcRouterID
}
