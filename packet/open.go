package packet

import (
	"bytes"

	"github.com/korsaris/libbgp/packet/bgperr"
)

// Open is a decoded OPEN message.
type Open struct {
	Version      uint8
	ASN          uint16
	HoldTime     uint16
	BGPID        uint32
	Capabilities []Capability
}

// Has4ByteASN reports whether the peer advertised RFC 6793 4-byte ASN
// support.
func (o *Open) Has4ByteASN() bool {
	_, ok := o.capability(Cap4ByteASN)
	return ok
}

// ASN4 returns the peer's real ASN out of the 4-byte ASN capability, if
// present.
func (o *Open) ASN4() (uint32, bool) {
	v, ok := o.capability(Cap4ByteASN)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]), true
}

func (o *Open) capability(code uint8) ([]byte, bool) {
	for _, c := range o.Capabilities {
		if c.Code == code {
			return c.Value, true
		}
	}
	return nil, false
}

func decodeOpenMsg(buf *bytes.Buffer, length MsgLength) (*Open, error) {
	o := &Open{}

	var err error
	if o.Version, err = readUint8(buf); err != nil {
		return nil, bgperr.New(bgperr.EOpen, bgperr.EVersion, nil)
	}
	if o.Version != 4 {
		return nil, bgperr.New(bgperr.EOpen, bgperr.EVersion, []byte{4})
	}

	if o.ASN, err = readUint16(buf); err != nil {
		return nil, bgperr.New(bgperr.EOpen, bgperr.EPeerAS, nil)
	}
	if o.HoldTime, err = readUint16(buf); err != nil {
		return nil, bgperr.New(bgperr.EOpen, bgperr.EHoldTime, nil)
	}
	if o.HoldTime != 0 && o.HoldTime < 3 {
		return nil, bgperr.New(bgperr.EOpen, bgperr.EHoldTime, nil)
	}
	if o.BGPID, err = readUint32(buf); err != nil {
		return nil, bgperr.New(bgperr.EOpen, bgperr.EBGPID, nil)
	}

	optLen, err := readUint8(buf)
	if err != nil {
		return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
	}

	o.Capabilities = make([]Capability, 0)

	var consumed uint8
	for consumed < optLen {
		if optLen-consumed < 2 {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}
		paramType, err := readUint8(buf)
		if err != nil {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}
		paramLen, err := readUint8(buf)
		if err != nil {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}
		consumed += 2

		if paramLen > optLen-consumed {
			return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
		}

		value := make([]byte, paramLen)
		if paramLen > 0 {
			if _, err := buf.Read(value); err != nil {
				return nil, bgperr.New(bgperr.EOpen, bgperr.EOptParam, nil)
			}
		}
		consumed += paramLen

		if paramType == CapabilitiesParam {
			caps, err := decodeCapabilities(bytes.NewBuffer(value), uint16(len(value)))
			if err != nil {
				return nil, err
			}
			o.Capabilities = append(o.Capabilities, caps...)
		}
	}

	return o, nil
}

func writeOpenMsg(buf *bytes.Buffer, o *Open) error {
	writeUint8(buf, 4)
	writeUint16(buf, o.ASN)
	writeUint16(buf, o.HoldTime)
	writeUint32(buf, o.BGPID)

	capBuf := &bytes.Buffer{}
	for _, c := range o.Capabilities {
		if err := writeCapability(capBuf, c); err != nil {
			return err
		}
	}

	optBuf := &bytes.Buffer{}
	if capBuf.Len() > 0 {
		writeUint8(optBuf, CapabilitiesParam)
		writeUint8(optBuf, uint8(capBuf.Len()))
		optBuf.Write(capBuf.Bytes())
	}

	writeUint8(buf, uint8(optBuf.Len()))
	buf.Write(optBuf.Bytes())

	return nil
}
