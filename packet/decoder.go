package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/korsaris/libbgp/packet/bgperr"
)

// errShortBuffer means buf doesn't yet hold a full message; it is not a
// bgperr.Error because it isn't a protocol violation, just a caller that
// needs to wait for more bytes off the wire before decoding again.
var errShortBuffer = errors.New("packet: not enough bytes buffered")

// Decoder decodes a stream of BGP messages. is4b reflects whether the
// negotiated session uses 4-byte ASNs; it is supplied by the FSM after OPEN
// capability negotiation and only affects AS_PATH/AGGREGATOR decoding
// (AS4_PATH/AS4_AGGREGATOR are always 4-byte on the wire).
type Decoder struct {
	is4b bool
}

// NewDecoder creates a Decoder for a session with the given negotiated ASN
// width.
func NewDecoder(is4b bool) *Decoder {
	return &Decoder{is4b: is4b}
}

// SetIs4B updates the negotiated ASN width, e.g. once OPEN exchange
// completes.
func (d *Decoder) SetIs4B(is4b bool) {
	d.is4b = is4b
}

// Decode decodes one BGP message from buf. It returns errShortBuffer, never
// consuming from buf, if buf doesn't yet hold a complete message; the
// caller is expected to retry once more bytes have arrived.
func (d *Decoder) Decode(buf *bytes.Buffer) (*Message, error) {
	if buf.Len() < HeaderLen {
		return nil, errShortBuffer
	}

	hdr, err := decodeHeader(bytes.NewBuffer(buf.Bytes()[:HeaderLen]))
	if err != nil {
		return nil, err
	}

	if buf.Len() < int(hdr.Length) {
		return nil, errShortBuffer
	}
	buf.Next(HeaderLen)

	body, err := d.decodeBody(buf, hdr)
	if err != nil {
		return nil, err
	}

	return &Message{Header: hdr, Body: body}, nil
}

func (d *Decoder) decodeBody(buf *bytes.Buffer, hdr *Header) (interface{}, error) {
	switch hdr.Type {
	case OpenMsg:
		return decodeOpenMsg(buf, hdr.Length)
	case UpdateMsg:
		return d.decodeUpdateMsg(buf, hdr.Length)
	case KeepaliveMsg:
		return nil, nil
	case NotificationMsg:
		return decodeNotificationMsg(buf, hdr.Length)
	default:
		return nil, bgperr.New(bgperr.EHeader, bgperr.EType, []byte{byte(hdr.Type)})
	}
}

func decodeHeader(buf *bytes.Buffer) (*Header, error) {
	marker := make([]byte, MarkerLen)
	n, err := buf.Read(marker)
	if err != nil || n != MarkerLen {
		return nil, bgperr.New(bgperr.EHeader, bgperr.ESync, nil)
	}

	for _, b := range marker {
		if b != 0xff {
			return nil, bgperr.New(bgperr.EHeader, bgperr.ESync, nil)
		}
	}

	var length uint16
	var typ uint8
	if err := decode(buf, []interface{}{&length, &typ}); err != nil {
		return nil, bgperr.New(bgperr.EHeader, bgperr.ELength, nil)
	}

	if length < MinLen || length > MaxLen {
		return nil, bgperr.New(bgperr.EHeader, bgperr.ELength, []byte{byte(length >> 8), byte(length)})
	}

	if typ == 0 || typ > uint8(KeepaliveMsg) {
		return nil, bgperr.New(bgperr.EHeader, bgperr.EType, []byte{typ})
	}

	return &Header{Length: MsgLength(length), Type: MsgType(typ)}, nil
}

// decode reads fields from buf in big-endian wire order, teacher style.
func decode(buf *bytes.Buffer, fields []interface{}) error {
	for _, field := range fields {
		if err := binary.Read(buf, binary.BigEndian, field); err != nil {
			return fmt.Errorf("unable to read from buffer: %w", err)
		}
	}
	return nil
}

func readUint8(buf *bytes.Buffer) (uint8, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return 0, err
	}
	return b, nil
}

func readUint16(buf *bytes.Buffer) (uint16, error) {
	var v uint16
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readUint32(buf *bytes.Buffer) (uint32, error) {
	var v uint32
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readN(buf *bytes.Buffer, n int) ([]byte, error) {
	out := make([]byte, n)
	read, err := buf.Read(out)
	if err != nil || read != n {
		return nil, fmt.Errorf("short read: wanted %d got %d: %v", n, read, err)
	}
	return out, nil
}
