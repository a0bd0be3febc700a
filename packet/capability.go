package packet

import (
	"bytes"

	"github.com/korsaris/libbgp/packet/bgperr"
)

// Capability is one RFC 5492 capability TLV carried in an OPEN optional
// parameter. Value holds the raw capability value bytes; recognized
// capabilities are additionally surfaced on Open via Has4ByteASN/ASN4.
type Capability struct {
	Code  uint8
	Value []byte
}

func decodeCapabilities(buf *bytes.Buffer, length uint16) ([]Capability, error) {
	caps := make([]Capability, 0)

	var consumed uint16
	for consumed < length {
		if length-consumed < 2 {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}
		code, err := readUint8(buf)
		if err != nil {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}
		l, err := readUint8(buf)
		if err != nil {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}
		consumed += 2

		if uint16(l) > length-consumed {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}

		value := make([]byte, l)
		if l > 0 {
			if _, err := buf.Read(value); err != nil {
				return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
			}
		}
		consumed += uint16(l)

		caps = append(caps, Capability{Code: code, Value: value})
	}

	return caps, nil
}

func writeCapability(buf *bytes.Buffer, c Capability) error {
	if err := writeUint8(buf, c.Code); err != nil {
		return err
	}
	if err := writeUint8(buf, uint8(len(c.Value))); err != nil {
		return err
	}
	_, err := buf.Write(c.Value)
	return err
}

// NewCapability4ByteASN builds the RFC 6793 4-byte ASN capability TLV
// carrying asn.
func NewCapability4ByteASN(asn uint32) Capability {
	return newCapability4ByteASN(asn)
}

func newCapability4ByteASN(asn uint32) Capability {
	v := make([]byte, 4)
	v[0] = byte(asn >> 24)
	v[1] = byte(asn >> 16)
	v[2] = byte(asn >> 8)
	v[3] = byte(asn)
	return Capability{Code: Cap4ByteASN, Value: v}
}
