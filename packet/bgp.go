// Package packet implements the BGP-4 wire codec: message headers, path
// attributes, and the parse/serialize pair for OPEN, UPDATE, NOTIFICATION
// and KEEPALIVE messages.
package packet

// MsgType identifies the BGP message type carried by a Header.
type MsgType uint8

// MsgLength is the total length of a BGP message, header included.
type MsgLength uint16

const (
	OctetLen = 8

	MarkerLen = 16
	HeaderLen = 19
	MinLen    = 19
	MaxLen    = 4096

	OpenMsg         MsgType = 1
	UpdateMsg       MsgType = 2
	NotificationMsg MsgType = 3
	KeepaliveMsg    MsgType = 4
)

// Attribute type codes, RFC 4271 and RFC 6793.
const (
	OriginAttr        = 1
	ASPathAttr        = 2
	NextHopAttr       = 3
	MEDAttr           = 4
	LocalPrefAttr     = 5
	AtomicAggrAttr    = 6
	AggregatorAttr    = 7
	CommunityAttr     = 8
	As4PathAttr       = 17
	As4AggregatorAttr = 18
)

// ORIGIN values.
const (
	IGP        = 0
	EGP        = 1
	INCOMPLETE = 2
)

// AS_PATH segment types.
const (
	ASSet      = 1
	ASSequence = 2
)

// ASTrans is the reserved ASN used as a placeholder for any real ASN >=
// 2^16 in 2-byte AS_PATH/AGGREGATOR encodings, RFC 6793.
const ASTrans = 23456

// CapabilitiesParam is the OPEN optional parameter type carrying
// capability TLVs, RFC 5492.
const CapabilitiesParam = 2

// Capability codes this core recognizes.
const (
	CapMultiprotocol = 1
	Cap4ByteASN      = 65
)

// Header is a parsed BGP message header. The 16-byte marker is verified but
// not retained.
type Header struct {
	Length MsgLength
	Type   MsgType
}

// Message is a decoded BGP message: a header plus a type-specific body.
// Body is one of *Open, *Update, *Notification, or nil for KEEPALIVE.
type Message struct {
	Header *Header
	Body   interface{}
}
