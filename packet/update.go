package packet

import (
	"bytes"

	bnet "github.com/korsaris/libbgp/net"
	"github.com/korsaris/libbgp/packet/bgperr"
)

// Update is a decoded UPDATE message.
type Update struct {
	WithdrawnRoutes []bnet.Prefix
	PathAttrs       []PathAttr
	NLRI            []bnet.Prefix
}

func (d *Decoder) decodeUpdateMsg(buf *bytes.Buffer, length MsgLength) (*Update, error) {
	u := &Update{}

	wLen, err := readUint16(buf)
	if err != nil {
		return nil, bgperr.New(bgperr.EUpdate, bgperr.EUnspec, nil)
	}
	withdrawn, err := decodePrefixList(buf, wLen)
	if err != nil {
		return nil, err
	}
	u.WithdrawnRoutes = withdrawn

	attrLen, err := readUint16(buf)
	if err != nil {
		return nil, bgperr.New(bgperr.EUpdate, bgperr.EUnspec, nil)
	}
	attrs, err := decodePathAttrs(buf, attrLen, d.is4b)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttribs(attrs); err != nil {
		return nil, err
	}
	u.PathAttrs = attrs

	nlriLen := int(length) - HeaderLen - 2 - int(wLen) - 2 - int(attrLen)
	if nlriLen < 0 {
		return nil, bgperr.New(bgperr.EUpdate, bgperr.EUnspec, nil)
	}
	nlri, err := decodePrefixList(buf, uint16(nlriLen))
	if err != nil {
		return nil, err
	}
	u.NLRI = nlri

	return u, nil
}

func decodePrefixList(buf *bytes.Buffer, length uint16) ([]bnet.Prefix, error) {
	out := make([]bnet.Prefix, 0)

	var consumed uint16
	for consumed < length {
		pfxLen, err := readUint8(buf)
		if err != nil {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.ENetField, nil)
		}
		consumed++

		if pfxLen > 32 {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.EUnspec, []byte{pfxLen})
		}

		nBytes := int(pfxLen+7) / 8
		if uint16(nBytes) > length-consumed {
			return nil, bgperr.New(bgperr.EUpdate, bgperr.ENetField, nil)
		}

		raw := make([]byte, 4)
		if nBytes > 0 {
			b, err := readN(buf, nBytes)
			if err != nil {
				return nil, bgperr.New(bgperr.EUpdate, bgperr.ENetField, nil)
			}
			copy(raw, b)
		}
		consumed += uint16(nBytes)

		addr := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		out = append(out, bnet.NewPfx(addr, pfxLen))
	}

	return out, nil
}

func encodePrefixList(buf *bytes.Buffer, pfxs []bnet.Prefix) {
	for _, pfx := range pfxs {
		pfxLen := pfx.Pfxlen()
		writeUint8(buf, pfxLen)

		nBytes := int(pfxLen+7) / 8
		a := pfx.Addr()
		raw := []byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)}
		buf.Write(raw[:nBytes])
	}
}

func writeUpdateMsg(buf *bytes.Buffer, u *Update) error {
	wBuf := &bytes.Buffer{}
	encodePrefixList(wBuf, u.WithdrawnRoutes)
	writeUint16(buf, uint16(wBuf.Len()))
	buf.Write(wBuf.Bytes())

	aBuf := &bytes.Buffer{}
	for _, pa := range u.PathAttrs {
		if err := writePathAttr(aBuf, pa); err != nil {
			return err
		}
	}
	writeUint16(buf, uint16(aBuf.Len()))
	buf.Write(aBuf.Bytes())

	encodePrefixList(buf, u.NLRI)

	return nil
}

// ValidateAttribs checks the decoded path attribute list for duplicate type
// codes. It does not check for the mandatory well-known attributes (ORIGIN,
// AS_PATH, NEXT_HOP): those are required only in updates carrying NLRI,
// which ValidateAttribs doesn't see, so the FSM checks them.
func ValidateAttribs(attrs []PathAttr) error {
	// TypeCode is a uint8, spanning the full 0-255 range; a single uint64
	// word only covers 64 of those before Go zeroes the over-wide shift,
	// so duplicate detection needs one bit per possible type code.
	var seen [4]uint64

	for _, pa := range attrs {
		word, bit := pa.TypeCode/64, uint64(1)<<(pa.TypeCode%64)
		if seen[word]&bit != 0 {
			return bgperr.New(bgperr.EUpdate, bgperr.EAttrList, []byte{pa.TypeCode})
		}
		seen[word] |= bit
	}

	return nil
}

// RestoreAsPath rebuilds a real AS_PATH from a 2-byte AS_PATH that used
// ASTrans placeholders, per RFC 6793 section 4.2.3. AS4_PATH carries the
// full path, both 2-byte- and 4-byte-representable ASNs alike, so the
// replacement value for the Nth ASTrans slot isn't simply the Nth ASN
// collected from AS4_PATH — it's whatever AS4_PATH holds at that same
// overall position. Only AS_SEQUENCE segments of the AS4_PATH contribute
// to that position count; an AS_SET segment there has no positional
// correspondence to the 2-byte path's ASTrans slots and is skipped.
func RestoreAsPath(asPath, as4Path AsPath) AsPath {
	if as4Path == nil {
		return asPath
	}

	as4ASNs := make([]uint32, 0)
	for _, seg := range as4Path {
		if seg.Type == ASSet {
			continue
		}
		as4ASNs = append(as4ASNs, seg.ASNs...)
	}

	out := asPath.Clone()
	pos := 0
	for i := range out {
		out[i].Is4B = true
		for j, asn := range out[i].ASNs {
			if asn == ASTrans && pos < len(as4ASNs) {
				out[i].ASNs[j] = as4ASNs[pos]
			}
			pos++
		}
	}

	return out
}

// DowngradeAsPath produces the 2-byte AS_PATH/AS4_PATH pair to send to a
// peer without 4-byte ASN support: real ASNs >= 2^16 become ASTrans in the
// 2-byte path, and the full 4-byte path is carried unmodified as AS4_PATH.
func DowngradeAsPath(asPath AsPath) (twoByte AsPath, as4 AsPath) {
	twoByte = asPath.Clone()
	as4 = asPath.Clone()

	for i, seg := range twoByte {
		twoByte[i].Is4B = false
		for j, asn := range seg.ASNs {
			if asn > 0xffff {
				twoByte[i].ASNs[j] = ASTrans
			}
		}
	}

	for i := range as4 {
		as4[i].Is4B = true
	}

	return twoByte, as4
}

// RestoreAggregator combines a downgraded AGGREGATOR and its AS4_AGGREGATOR
// into a real 4-byte AGGREGATOR, per RFC 6793 section 4.2.3.
func RestoreAggregator(aggr Aggregator, as4 As4Aggregator, has4 bool) Aggregator {
	if !has4 {
		return aggr
	}
	if aggr.ASN == ASTrans {
		return Aggregator{Is4B: true, Addr: as4.Addr, ASN: as4.ASN}
	}
	return Aggregator{Is4B: true, Addr: aggr.Addr, ASN: aggr.ASN}
}

// DowngradeAggregator produces the 2-byte AGGREGATOR/AS4_AGGREGATOR pair to
// send to a peer without 4-byte ASN support.
func DowngradeAggregator(aggr Aggregator) (twoByte Aggregator, as4 As4Aggregator) {
	twoByte = Aggregator{Is4B: false, Addr: aggr.Addr, ASN: aggr.ASN}
	if aggr.ASN > 0xffff {
		twoByte.ASN = ASTrans
	}
	as4 = As4Aggregator{Addr: aggr.Addr, ASN: aggr.ASN}
	return twoByte, as4
}
