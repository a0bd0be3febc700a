package packet

import (
	"bytes"
	"fmt"

	"github.com/korsaris/libbgp/packet/bgperr"
)

// decodePathAttrs decodes the path attribute list of an UPDATE message.
// is4b selects the ASN width used to decode AS_PATH and AGGREGATOR;
// AS4_PATH and AS4_AGGREGATOR are always 4-byte.
func decodePathAttrs(buf *bytes.Buffer, totalLen uint16, is4b bool) ([]PathAttr, error) {
	attrs := make([]PathAttr, 0)

	var consumed uint16
	for consumed < totalLen {
		pa, n, err := decodeOnePathAttr(buf, is4b)
		if err != nil {
			return nil, err
		}
		consumed += uint16(n)
		attrs = append(attrs, pa)
	}

	return attrs, nil
}

func decodeOnePathAttr(buf *bytes.Buffer, is4b bool) (PathAttr, int, error) {
	flags, err := readUint8(buf)
	if err != nil {
		return PathAttr{}, 0, bgperr.New(bgperr.EUpdate, bgperr.EUnspec, nil)
	}

	typeCode, err := readUint8(buf)
	if err != nil {
		return PathAttr{}, 0, bgperr.New(bgperr.EUpdate, bgperr.EUnspec, nil)
	}

	pa := PathAttr{
		Optional:   isOptional(flags),
		Transitive: isTransitive(flags),
		Partial:    isPartial(flags),
		Extended:   isExtended(flags),
		TypeCode:   typeCode,
	}

	length, lenWidth, err := readAttrLength(buf, pa.Extended)
	if err != nil {
		return PathAttr{}, 0, bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, []byte{flags, typeCode})
	}

	if buf.Len() < int(length) {
		return PathAttr{}, 0, bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, []byte{flags, typeCode})
	}

	value := make([]byte, length)
	if length > 0 {
		if _, err := buf.Read(value); err != nil {
			return PathAttr{}, 0, bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, []byte{flags, typeCode})
		}
	}
	vbuf := bytes.NewBuffer(value)

	// Unknown well-known mandatory attribute: non-optional, transitive, not
	// one of the types we know.
	if !knownType(typeCode) {
		if !pa.Optional && pa.Transitive {
			return PathAttr{}, 0, bgperr.New(bgperr.EUpdate, bgperr.EBadWellKnown, []byte{flags, typeCode})
		}
		pa.Value = Unknown{Bytes: value}
		return pa, 2 + lenWidth + int(length), nil
	}

	if err := decodeAttrValue(&pa, vbuf, uint16(length), is4b); err != nil {
		return PathAttr{}, 0, err
	}

	return pa, 2 + lenWidth + int(length), nil
}

func knownType(t uint8) bool {
	switch t {
	case OriginAttr, ASPathAttr, NextHopAttr, MEDAttr, LocalPrefAttr,
		AtomicAggrAttr, AggregatorAttr, CommunityAttr, As4PathAttr, As4AggregatorAttr:
		return true
	default:
		return false
	}
}

func readAttrLength(buf *bytes.Buffer, extended bool) (uint16, int, error) {
	if extended {
		v, err := readUint16(buf)
		if err != nil {
			return 0, 0, err
		}
		return v, 2, nil
	}
	v, err := readUint8(buf)
	if err != nil {
		return 0, 0, err
	}
	return uint16(v), 1, nil
}

func decodeAttrValue(pa *PathAttr, buf *bytes.Buffer, length uint16, is4b bool) error {
	flags := pa.flags()
	hdr := []byte{flags, pa.TypeCode}

	switch pa.TypeCode {
	case OriginAttr:
		if !wellKnownFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		if length != 1 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, hdr)
		}
		v, _ := readUint8(buf)
		if v > INCOMPLETE {
			return bgperr.New(bgperr.EUpdate, bgperr.EOrigin, []byte{v})
		}
		pa.Value = Origin(v)

	case ASPathAttr:
		if !wellKnownFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		path, err := decodeAsPathValue(buf, length, is4b)
		if err != nil {
			return err
		}
		pa.Value = path

	case NextHopAttr:
		if !wellKnownFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		if length != 4 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, hdr)
		}
		var nh NextHop
		copy(nh[:], buf.Bytes())
		pa.Value = nh

	case MEDAttr:
		if !optionalNonTransitiveFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		if length != 4 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, hdr)
		}
		v, _ := readUint32(buf)
		pa.Value = Med(v)

	case LocalPrefAttr:
		if !wellKnownFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		if length != 4 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, hdr)
		}
		v, _ := readUint32(buf)
		pa.Value = LocalPref(v)

	case AtomicAggrAttr:
		if !wellKnownFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		if length != 0 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, hdr)
		}
		pa.Value = AtomicAggregate{}

	case AggregatorAttr:
		if !optionalTransitiveFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		aggr, err := decodeAggregatorValue(buf, length, is4b)
		if err != nil {
			return err
		}
		pa.Value = aggr

	case CommunityAttr:
		if !optionalTransitiveFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		if length != 4 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, hdr)
		}
		v, _ := readUint32(buf)
		pa.Value = Community(v)

	case As4PathAttr:
		if !optionalTransitiveFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		path, err := decodeAsPathValue(buf, length, true)
		if err != nil {
			return err
		}
		pa.Value = path

	case As4AggregatorAttr:
		if !optionalTransitiveFlags(*pa) {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrFlag, hdr)
		}
		if length != 8 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, hdr)
		}
		asn, _ := readUint32(buf)
		var addr [4]byte
		copy(addr[:], buf.Bytes())
		pa.Value = As4Aggregator{Addr: addr, ASN: asn}

	default:
		return fmt.Errorf("unhandled known attribute type %d", pa.TypeCode)
	}

	return nil
}

func decodeAsPathValue(buf *bytes.Buffer, length uint16, is4b bool) (AsPath, error) {
	path := make(AsPath, 0)

	asnWidth := 2
	if is4b {
		asnWidth = 4
	}

	var consumed uint16
	for consumed < length {
		if length-consumed < 2 {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.EASPath, nil)
		}

		segType, err := readUint8(buf)
		if err != nil {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.EASPath, nil)
		}
		count, err := readUint8(buf)
		if err != nil {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.EASPath, nil)
		}
		consumed += 2

		if segType != ASSet && segType != ASSequence {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.EASPath, []byte{segType})
		}

		need := uint16(count) * uint16(asnWidth)
		if consumed+need > length {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.EASPath, nil)
		}

		seg := AsPathSegment{Is4B: is4b, Type: segType, ASNs: make([]uint32, 0, count)}
		for i := uint8(0); i < count; i++ {
			var asn uint32
			if is4b {
				asn, err = readUint32(buf)
			} else {
				var a16 uint16
				a16, err = readUint16(buf)
				asn = uint32(a16)
			}
			if err != nil {
				return nil, bgperr.New(bgperr.EUpdate, bgperr.EASPath, nil)
			}
			seg.ASNs = append(seg.ASNs, asn)
		}
		consumed += need
		path = append(path, seg)
	}

	return path, nil
}

func decodeAggregatorValue(buf *bytes.Buffer, length uint16, is4b bool) (Aggregator, error) {
	expected := uint16(6)
	if is4b {
		expected = 8
	}
	if length != expected {
		return Aggregator{}, bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, []byte{AggregatorAttr})
	}

	var asn uint32
	var err error
	if is4b {
		asn, err = readUint32(buf)
	} else {
		var a16 uint16
		a16, err = readUint16(buf)
		asn = uint32(a16)
	}
	if err != nil {
		return Aggregator{}, bgperr.New(bgperr.EUpdate, bgperr.EAttrLen, []byte{AggregatorAttr})
	}

	var addr [4]byte
	copy(addr[:], buf.Bytes())

	return Aggregator{Is4B: is4b, Addr: addr, ASN: asn}, nil
}

// writePathAttr serializes pa to buf. The length field width is chosen from
// pa.Extended, forced to extended if the encoded value would not fit in one
// byte.
func writePathAttr(buf *bytes.Buffer, pa PathAttr) error {
	value, err := encodeAttrValue(pa)
	if err != nil {
		return err
	}

	extended := pa.Extended || len(value) > 255

	flags := pa.flags()
	if extended {
		flags |= 0x10
	} else {
		flags &^= 0x10
	}

	if err := buf.WriteByte(flags); err != nil {
		return err
	}
	if err := buf.WriteByte(pa.TypeCode); err != nil {
		return err
	}

	if extended {
		if err := writeUint16(buf, uint16(len(value))); err != nil {
			return err
		}
	} else {
		if err := buf.WriteByte(uint8(len(value))); err != nil {
			return err
		}
	}

	_, err = buf.Write(value)
	return err
}

func encodeAttrValue(pa PathAttr) ([]byte, error) {
	buf := &bytes.Buffer{}

	switch pa.TypeCode {
	case OriginAttr:
		v, _ := pa.AsOrigin()
		buf.WriteByte(uint8(v))

	case ASPathAttr, As4PathAttr:
		v, _ := pa.AsAsPath()
		if err := encodeAsPathValue(buf, v); err != nil {
			return nil, err
		}

	case NextHopAttr:
		v, _ := pa.AsNextHop()
		buf.Write(v[:])

	case MEDAttr:
		v, _ := pa.AsMed()
		writeUint32(buf, uint32(v))

	case LocalPrefAttr:
		v, _ := pa.AsLocalPref()
		writeUint32(buf, uint32(v))

	case AtomicAggrAttr:
		// zero-length value

	case AggregatorAttr:
		v, _ := pa.AsAggregator()
		if v.Is4B {
			writeUint32(buf, v.ASN)
		} else {
			writeUint16(buf, uint16(v.ASN))
		}
		buf.Write(v.Addr[:])

	case CommunityAttr:
		v, _ := pa.AsCommunity()
		writeUint32(buf, uint32(v))

	case As4AggregatorAttr:
		v, _ := pa.AsAs4Aggregator()
		writeUint32(buf, v.ASN)
		buf.Write(v.Addr[:])

	default:
		if u, ok := pa.AsUnknown(); ok {
			buf.Write(u.Bytes)
			break
		}
		return nil, fmt.Errorf("unable to encode attribute type %d", pa.TypeCode)
	}

	return buf.Bytes(), nil
}

func encodeAsPathValue(buf *bytes.Buffer, path AsPath) error {
	for _, seg := range path {
		if len(seg.ASNs) > 255 {
			return fmt.Errorf("as path segment too long: %d asns", len(seg.ASNs))
		}
		buf.WriteByte(seg.Type)
		buf.WriteByte(uint8(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			if seg.Is4B {
				writeUint32(buf, asn)
			} else {
				writeUint16(buf, uint16(asn))
			}
		}
	}
	return nil
}
