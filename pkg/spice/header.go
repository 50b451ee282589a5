package spice

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the on-wire size of MessageHeader: u64 serial, u16 type,
// u32 size, u32 sub_list_offset.
const HeaderSize = 8 + 2 + 4 + 4

// MessageHeader is the fixed header that precedes every message body on a
// READY channel, per spec section 3 "Message frame" and section 6.
type MessageHeader struct {
	Serial        uint64
	Type          uint16
	Size          uint32
	SubListOffset uint32
}

// Marshal writes the header in wire order into a fixed 18-byte buffer.
func (h MessageHeader) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.Serial)
	binary.LittleEndian.PutUint16(buf[8:10], h.Type)
	binary.LittleEndian.PutUint32(buf[10:14], h.Size)
	binary.LittleEndian.PutUint32(buf[14:18], h.SubListOffset)
	return buf
}

// UnmarshalHeader parses a HeaderSize-byte buffer into a MessageHeader.
func UnmarshalHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < HeaderSize {
		return MessageHeader{}, fmt.Errorf("spice: short header: %d < %d", len(buf), HeaderSize)
	}
	return MessageHeader{
		Serial:        binary.LittleEndian.Uint64(buf[0:8]),
		Type:          binary.LittleEndian.Uint16(buf[8:10]),
		Size:          binary.LittleEndian.Uint32(buf[10:14]),
		SubListOffset: binary.LittleEndian.Uint32(buf[14:18]),
	}, nil
}

// LinkHeader precedes the LinkMess/LinkReply exchange: 4-byte magic + major +
// minor + size of the message that follows.
type LinkHeader struct {
	Magic [4]byte
	Major uint32
	Minor uint32
	Size  uint32
}

const LinkHeaderSize = 4 + 4 + 4 + 4

func (h LinkHeader) Marshal() []byte {
	buf := make([]byte, LinkHeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Major)
	binary.LittleEndian.PutUint32(buf[8:12], h.Minor)
	binary.LittleEndian.PutUint32(buf[12:16], h.Size)
	return buf
}

func UnmarshalLinkHeader(buf []byte) (LinkHeader, error) {
	if len(buf) < LinkHeaderSize {
		return LinkHeader{}, fmt.Errorf("spice: short link header: %d < %d", len(buf), LinkHeaderSize)
	}
	var h LinkHeader
	copy(h.Magic[:], buf[0:4])
	h.Major = binary.LittleEndian.Uint32(buf[4:8])
	h.Minor = binary.LittleEndian.Uint32(buf[8:12])
	h.Size = binary.LittleEndian.Uint32(buf[12:16])
	return h, nil
}

func NewLinkHeader(bodySize uint32) LinkHeader {
	var h LinkHeader
	copy(h.Magic[:], LinkMagic)
	h.Major = VersionMajor
	h.Minor = VersionMinor
	h.Size = bodySize
	return h
}

// LinkMess is the client's SpiceLinkMess: identifies the channel being
// opened and offers its capability lists.
type LinkMess struct {
	ConnectionID  uint32
	ChannelType   ChannelType
	ChannelID     uint8
	CommonCaps    []uint32
	ChannelCaps   []uint32
}

// Marshal encodes a LinkMess body: connection_id, channel_type, channel_id,
// num_common_caps, num_channel_caps, caps_offset, then the two cap arrays.
func (m LinkMess) Marshal() []byte {
	const fixedSize = 4 + 1 + 1 + 4 + 4 + 4
	capsOffset := uint32(fixedSize)
	total := fixedSize + 4*(len(m.CommonCaps)+len(m.ChannelCaps))
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], m.ConnectionID)
	buf[4] = byte(m.ChannelType)
	buf[5] = m.ChannelID
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(m.CommonCaps)))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(m.ChannelCaps)))
	binary.LittleEndian.PutUint32(buf[14:18], capsOffset)

	off := fixedSize
	for _, c := range m.CommonCaps {
		binary.LittleEndian.PutUint32(buf[off:off+4], c)
		off += 4
	}
	for _, c := range m.ChannelCaps {
		binary.LittleEndian.PutUint32(buf[off:off+4], c)
		off += 4
	}
	return buf
}

// UnmarshalLinkMess parses a LinkMess body as written by Marshal.
func UnmarshalLinkMess(buf []byte) (LinkMess, error) {
	const fixedSize = 4 + 1 + 1 + 4 + 4 + 4
	if len(buf) < fixedSize {
		return LinkMess{}, fmt.Errorf("spice: short link_mess: %d < %d", len(buf), fixedSize)
	}
	m := LinkMess{
		ConnectionID: binary.LittleEndian.Uint32(buf[0:4]),
		ChannelType:  ChannelType(buf[4]),
		ChannelID:    buf[5],
	}
	numCommon := binary.LittleEndian.Uint32(buf[6:10])
	numChannel := binary.LittleEndian.Uint32(buf[10:14])
	capsOffset := binary.LittleEndian.Uint32(buf[14:18])

	need := int(capsOffset) + 4*int(numCommon+numChannel)
	if need > len(buf) {
		return LinkMess{}, fmt.Errorf("spice: link_mess caps out of range: need %d have %d", need, len(buf))
	}

	off := int(capsOffset)
	m.CommonCaps = make([]uint32, numCommon)
	for i := range m.CommonCaps {
		m.CommonCaps[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	m.ChannelCaps = make([]uint32, numChannel)
	for i := range m.ChannelCaps {
		m.ChannelCaps[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return m, nil
}

// LinkReply is the server's SpiceLinkReply: error code, RSA public key (used
// for password-blob encryption), and its own capability lists.
type LinkReply struct {
	Error       LinkErr
	PubKey      [162]byte // SPICE_TICKET_PUBKEY_BYTES: DER-encoded RSA public key
	CommonCaps  []uint32
	ChannelCaps []uint32
}

func (r LinkReply) Marshal() []byte {
	const fixedSize = 4 + 162 + 4 + 4 + 4
	capsOffset := uint32(fixedSize)
	total := fixedSize + 4*(len(r.CommonCaps)+len(r.ChannelCaps))
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Error))
	copy(buf[4:166], r.PubKey[:])
	binary.LittleEndian.PutUint32(buf[166:170], uint32(len(r.CommonCaps)))
	binary.LittleEndian.PutUint32(buf[170:174], uint32(len(r.ChannelCaps)))
	binary.LittleEndian.PutUint32(buf[174:178], capsOffset)

	off := fixedSize
	for _, c := range r.CommonCaps {
		binary.LittleEndian.PutUint32(buf[off:off+4], c)
		off += 4
	}
	for _, c := range r.ChannelCaps {
		binary.LittleEndian.PutUint32(buf[off:off+4], c)
		off += 4
	}
	return buf
}

func UnmarshalLinkReply(buf []byte) (LinkReply, error) {
	const fixedSize = 4 + 162 + 4 + 4 + 4
	if len(buf) < fixedSize {
		return LinkReply{}, fmt.Errorf("spice: short link_reply: %d < %d", len(buf), fixedSize)
	}
	r := LinkReply{Error: LinkErr(binary.LittleEndian.Uint32(buf[0:4]))}
	copy(r.PubKey[:], buf[4:166])
	numCommon := binary.LittleEndian.Uint32(buf[166:170])
	numChannel := binary.LittleEndian.Uint32(buf[170:174])
	capsOffset := binary.LittleEndian.Uint32(buf[174:178])

	need := int(capsOffset) + 4*int(numCommon+numChannel)
	if need > len(buf) {
		return LinkReply{}, fmt.Errorf("spice: link_reply caps out of range: need %d have %d", need, len(buf))
	}

	off := int(capsOffset)
	r.CommonCaps = make([]uint32, numCommon)
	for i := range r.CommonCaps {
		r.CommonCaps[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	r.ChannelCaps = make([]uint32, numChannel)
	for i := range r.ChannelCaps {
		r.ChannelCaps[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return r, nil
}

// ReadExact reads exactly len(buf) bytes, returning an IoError-flavored
// wrapped error on short read (including EOF mid-message).
func ReadExact(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return fmt.Errorf("spice: short read: %w", err)
	}
	return nil
}
