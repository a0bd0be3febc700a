package packet

import (
	"bytes"

	"github.com/korsaris/libbgp/packet/bgperr"
)

// Notification is a decoded NOTIFICATION message.
type Notification struct {
	ErrorCode    uint8
	ErrorSubcode uint8
	Data         []byte
}

// ToErr converts n to a *bgperr.Error for uniform handling alongside errors
// produced while parsing.
func (n *Notification) ToErr() *bgperr.Error {
	return bgperr.New(bgperr.Code(n.ErrorCode), n.ErrorSubcode, n.Data)
}

// NotificationFromErr builds the wire body to send for e.
func NotificationFromErr(e *bgperr.Error) *Notification {
	return &Notification{
		ErrorCode:    uint8(e.Code),
		ErrorSubcode: e.Subcode,
		Data:         e.Data,
	}
}

func decodeNotificationMsg(buf *bytes.Buffer, length MsgLength) (*Notification, error) {
	n := &Notification{}

	var err error
	if n.ErrorCode, err = readUint8(buf); err != nil {
		return nil, bgperr.New(bgperr.EHeader, bgperr.ELength, nil)
	}
	if n.ErrorSubcode, err = readUint8(buf); err != nil {
		return nil, bgperr.New(bgperr.EHeader, bgperr.ELength, nil)
	}

	dataLen := int(length) - HeaderLen - 2
	if dataLen < 0 {
		return nil, bgperr.New(bgperr.EHeader, bgperr.ELength, nil)
	}
	if dataLen > 0 {
		data, err := readN(buf, dataLen)
		if err != nil {
			return nil, bgperr.New(bgperr.EHeader, bgperr.ELength, nil)
		}
		n.Data = data
	}

	return n, nil
}

func writeNotificationMsg(buf *bytes.Buffer, n *Notification) error {
	writeUint8(buf, n.ErrorCode)
	writeUint8(buf, n.ErrorSubcode)
	buf.Write(n.Data)
	return nil
}
