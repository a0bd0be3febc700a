package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func writeUint8(buf *bytes.Buffer, v uint8) error {
	return buf.WriteByte(v)
}

func writeUint16(buf *bytes.Buffer, v uint16) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func writeUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// Encode serializes m into a full wire-format BGP message: 16-byte marker,
// length, type and body.
func Encode(m *Message) ([]byte, error) {
	body := &bytes.Buffer{}

	var typ MsgType
	switch b := m.Body.(type) {
	case *Open:
		typ = OpenMsg
		if err := writeOpenMsg(body, b); err != nil {
			return nil, err
		}
	case *Update:
		typ = UpdateMsg
		if err := writeUpdateMsg(body, b); err != nil {
			return nil, err
		}
	case *Notification:
		typ = NotificationMsg
		if err := writeNotificationMsg(body, b); err != nil {
			return nil, err
		}
	case nil:
		typ = KeepaliveMsg
	default:
		return nil, fmt.Errorf("unable to encode message body of type %T", m.Body)
	}

	total := HeaderLen + body.Len()
	if total > MaxLen {
		return nil, fmt.Errorf("encoded message too long: %d bytes", total)
	}

	out := &bytes.Buffer{}
	out.Write(bytes.Repeat([]byte{0xff}, MarkerLen))
	writeUint16(out, uint16(total))
	writeUint8(out, uint8(typ))
	out.Write(body.Bytes())

	return out.Bytes(), nil
}
