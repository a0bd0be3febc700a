package packet

import "fmt"

// Origin is the value of an ORIGIN path attribute.
type Origin uint8

// AsPathSegment is one segment of an AS_PATH or AS4_PATH attribute.
type AsPathSegment struct {
	Is4B bool
	Type uint8
	ASNs []uint32
}

// AsPath is the ordered list of segments of an AS_PATH or AS4_PATH
// attribute.
type AsPath []AsPathSegment

// ASNCount returns the AS_PATH's total ASN count for best-path comparison:
// AS_SEQUENCE segments count every ASN, AS_SET segments count as one.
func (p AsPath) ASNCount() int {
	n := 0
	for _, seg := range p {
		if seg.Type == ASSet {
			n++
			continue
		}
		n += len(seg.ASNs)
	}
	return n
}

// FirstASN returns the first ASN of the path (used to compare MED only
// between routes learned from the same neighboring AS) and whether one was
// found.
func (p AsPath) FirstASN() (uint32, bool) {
	for _, seg := range p {
		if len(seg.ASNs) > 0 {
			return seg.ASNs[0], true
		}
	}
	return 0, false
}

// Clone deep-copies the AS_PATH so a downstream mutation (e.g. downgrade)
// never aliases the original.
func (p AsPath) Clone() AsPath {
	if p == nil {
		return nil
	}
	out := make(AsPath, len(p))
	for i, seg := range p {
		asns := make([]uint32, len(seg.ASNs))
		copy(asns, seg.ASNs)
		out[i] = AsPathSegment{Is4B: seg.Is4B, Type: seg.Type, ASNs: asns}
	}
	return out
}

// NextHop is the value of a NEXT_HOP path attribute.
type NextHop [4]byte

// Med is the value of a MULTI_EXIT_DISC path attribute.
type Med uint32

// LocalPref is the value of a LOCAL_PREF path attribute.
type LocalPref uint32

// AtomicAggregate is the (valueless) ATOMIC_AGGREGATE path attribute.
type AtomicAggregate struct{}

// Aggregator is the value of an AGGREGATOR path attribute.
type Aggregator struct {
	Is4B bool
	Addr [4]byte
	ASN  uint32
}

// Community is the value of a single COMMUNITY path attribute entry.
type Community uint32

// As4Aggregator is the value of an AS4_AGGREGATOR path attribute.
type As4Aggregator struct {
	Addr [4]byte
	ASN  uint32
}

// Unknown carries the raw value bytes of an attribute type this core
// doesn't recognize, so it can be re-advertised unmodified with Partial
// set.
type Unknown struct {
	Bytes []byte
}

// PathAttr is a single BGP path attribute. It is a tagged struct: TypeCode
// selects which decoded variant Value holds. Access Value through the
// As* accessors below rather than asserting on it directly.
type PathAttr struct {
	Optional   bool
	Transitive bool
	Partial    bool
	Extended   bool
	TypeCode   uint8
	Value      interface{}
}

func (pa PathAttr) AsOrigin() (Origin, bool) {
	v, ok := pa.Value.(Origin)
	return v, ok
}

func (pa PathAttr) AsAsPath() (AsPath, bool) {
	v, ok := pa.Value.(AsPath)
	return v, ok
}

func (pa PathAttr) AsNextHop() (NextHop, bool) {
	v, ok := pa.Value.(NextHop)
	return v, ok
}

func (pa PathAttr) AsMed() (Med, bool) {
	v, ok := pa.Value.(Med)
	return v, ok
}

func (pa PathAttr) AsLocalPref() (LocalPref, bool) {
	v, ok := pa.Value.(LocalPref)
	return v, ok
}

func (pa PathAttr) AsAggregator() (Aggregator, bool) {
	v, ok := pa.Value.(Aggregator)
	return v, ok
}

func (pa PathAttr) AsCommunity() (Community, bool) {
	v, ok := pa.Value.(Community)
	return v, ok
}

func (pa PathAttr) AsAs4Aggregator() (As4Aggregator, bool) {
	v, ok := pa.Value.(As4Aggregator)
	return v, ok
}

func (pa PathAttr) AsUnknown() (Unknown, bool) {
	v, ok := pa.Value.(Unknown)
	return v, ok
}

// Clone deep-copies pa so mutation at egress (e.g. downgrading an AS_PATH)
// never mutates a RIB entry or a pending route event in place.
func (pa PathAttr) Clone() PathAttr {
	out := pa
	switch v := pa.Value.(type) {
	case AsPath:
		out.Value = v.Clone()
	case Unknown:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		out.Value = Unknown{Bytes: b}
	}
	return out
}

func (pa PathAttr) String() string {
	return fmt.Sprintf("attr(type=%d, optional=%v, transitive=%v, partial=%v, value=%v)",
		pa.TypeCode, pa.Optional, pa.Transitive, pa.Partial, pa.Value)
}

// flags packs the four header bits into the wire's flags byte.
func (pa PathAttr) flags() uint8 {
	var f uint8
	if pa.Optional {
		f |= 0x80
	}
	if pa.Transitive {
		f |= 0x40
	}
	if pa.Partial {
		f |= 0x20
	}
	if pa.Extended {
		f |= 0x10
	}
	return f
}

func isOptional(x uint8) bool   { return x&0x80 == 0x80 }
func isTransitive(x uint8) bool { return x&0x40 == 0x40 }
func isPartial(x uint8) bool    { return x&0x20 == 0x20 }
func isExtended(x uint8) bool   { return x&0x10 == 0x10 }

// wellKnownFlags is the fixed (optional, transitive, partial) pattern every
// well-known attribute must carry: non-optional, transitive, non-partial.
func wellKnownFlags(pa PathAttr) bool {
	return !pa.Optional && pa.Transitive && !pa.Partial
}

// optionalTransitiveFlags is the fixed pattern for optional-transitive
// attributes (AGGREGATOR, COMMUNITY, AS4_PATH, AS4_AGGREGATOR): optional
// and transitive, partial only settable on re-advertisement.
func optionalTransitiveFlags(pa PathAttr) bool {
	return pa.Optional && pa.Transitive
}

// optionalNonTransitiveFlags is the fixed pattern for MED: optional,
// non-transitive.
func optionalNonTransitiveFlags(pa PathAttr) bool {
	return pa.Optional && !pa.Transitive
}
