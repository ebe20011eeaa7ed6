package csmaca

import (
	"encoding/binary"
	"fmt"
	"net"
)

// FrameType is the MAC frame-control type tag, encoded in the low two
// bits of the frame-control field.
type FrameType uint8

const (
	FrameTypeData FrameType = 0
	FrameTypeAck  FrameType = 1
	FrameTypeRTS  FrameType = 2
	FrameTypeCTS  FrameType = 3
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeData:
		return "DATA"
	case FrameTypeAck:
		return "ACK"
	case FrameTypeRTS:
		return "RTS"
	case FrameTypeCTS:
		return "CTS"
	default:
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
}

// MaxDurationUs is the largest legal duration-ID value in microseconds.
const MaxDurationUs = 32767

// fcsSize is the trailer size in bytes; stored as zero and never
// validated.
const fcsSize = 4

// headerSizeLong is DATA/RTS: 16-byte header (fc(2)+duration(2)+addr1(6)+addr2(6)).
const headerSizeLong = 16

// headerSizeShort is ACK/CTS: 10-byte header (fc(2)+duration(2)+addr1(6)).
const headerSizeShort = 10

// Addr is an EUI-48 MAC address.
type Addr [6]byte

// BroadcastAddr is the all-ones group/broadcast address.
var BroadcastAddr = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsGroup reports whether the address has the group bit set (the
// low-order bit of the first octet), which covers both multicast and
// the all-ones broadcast address.
func (a Addr) IsGroup() bool { return a[0]&0x01 != 0 }

func (a Addr) String() string { return net.HardwareAddr(a[:]).String() }

// AddrFromHW converts a net.HardwareAddr (exactly 6 bytes) to an Addr.
func AddrFromHW(hw net.HardwareAddr) (Addr, error) {
	var a Addr
	if len(hw) != 6 {
		return a, fmt.Errorf("csmaca: MAC address must be 6 bytes, got %d", len(hw))
	}
	copy(a[:], hw)
	return a, nil
}

// Header is the MAC header shared by all four frame variants. Addr2
// only applies to DATA and RTS; the payload, carried on Frame, only
// to DATA.
type Header struct {
	Type       FrameType
	DurationUs uint16
	Addr1      Addr
	Addr2      Addr // only meaningful for DATA, RTS
}

// Frame is a complete MAC protocol data unit: header, trailer (FCS, not
// validated) and, for DATA, a payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// HasAddr2 reports whether this frame type carries a second address
// field on the wire.
func (t FrameType) HasAddr2() bool { return t == FrameTypeData || t == FrameTypeRTS }

// HasPayload reports whether this frame type carries a payload.
func (t FrameType) HasPayload() bool { return t == FrameTypeData }

// SerializedSize returns the exact wire size of f: 16-byte header +
// FCS(4) for DATA/RTS (plus the payload for DATA), or 10-byte header +
// FCS(4) for ACK/CTS.
func (f Frame) SerializedSize() int {
	size := fcsSize
	if f.Header.Type.HasAddr2() {
		size += headerSizeLong
	} else {
		size += headerSizeShort
	}
	if f.Header.Type.HasPayload() {
		size += len(f.Payload)
	}
	return size
}

// NewDataFrame builds a unicast or broadcast DATA frame. Callers pass
// the ACK reservation time as durationUs for unicast destinations and
// 0 for broadcast.
func NewDataFrame(dst, src Addr, durationUs uint16, payload []byte) Frame {
	return Frame{
		Header: Header{
			Type:       FrameTypeData,
			DurationUs: durationUs,
			Addr1:      dst,
			Addr2:      src,
		},
		Payload: payload,
	}
}

// NewAckFrame builds an ACK addressed to dst.
func NewAckFrame(dst Addr) Frame {
	return Frame{Header: Header{Type: FrameTypeAck, Addr1: dst}}
}

// NewRTSFrame builds an RTS with the full cts+data+ack reservation
// budget as its duration.
func NewRTSFrame(dst, src Addr, durationUs uint16) Frame {
	return Frame{Header: Header{Type: FrameTypeRTS, DurationUs: durationUs, Addr1: dst, Addr2: src}}
}

// NewCTSFrame builds a CTS carrying the remaining reservation.
func NewCTSFrame(dst Addr, durationUs uint16) Frame {
	return Frame{Header: Header{Type: FrameTypeCTS, DurationUs: durationUs, Addr1: dst}}
}

// Marshal serializes f into the little-endian wire layout. The
// trailing FCS is always written as zero.
func (f Frame) Marshal() ([]byte, error) {
	if f.Header.DurationUs > MaxDurationUs {
		return nil, fmt.Errorf("csmaca: duration %d exceeds max %d", f.Header.DurationUs, MaxDurationUs)
	}
	buf := make([]byte, f.SerializedSize())
	fc := uint16(f.Header.Type & 0x3)
	binary.LittleEndian.PutUint16(buf[0:2], fc)
	binary.LittleEndian.PutUint16(buf[2:4], f.Header.DurationUs)
	copy(buf[4:10], f.Header.Addr1[:])
	off := 10
	if f.Header.Type.HasAddr2() {
		copy(buf[10:16], f.Header.Addr2[:])
		off = 16
	}
	if f.Header.Type.HasPayload() {
		copy(buf[off:off+len(f.Payload)], f.Payload)
		off += len(f.Payload)
	}
	// FCS left as zero, not validated.
	_ = buf[off : off+fcsSize]
	return buf, nil
}

// Unmarshal parses a wire-format frame produced by Marshal. It returns
// an error on a truncated buffer but never validates the FCS.
func Unmarshal(buf []byte) (Frame, error) {
	if len(buf) < headerSizeShort+fcsSize {
		return Frame{}, fmt.Errorf("csmaca: frame too short: %d bytes", len(buf))
	}
	fc := binary.LittleEndian.Uint16(buf[0:2])
	typ := FrameType(fc & 0x3)
	dur := binary.LittleEndian.Uint16(buf[2:4])
	var hdr Header
	hdr.Type = typ
	hdr.DurationUs = dur
	copy(hdr.Addr1[:], buf[4:10])
	off := 10
	if typ.HasAddr2() {
		if len(buf) < headerSizeLong+fcsSize {
			return Frame{}, fmt.Errorf("csmaca: %s frame too short for addr2: %d bytes", typ, len(buf))
		}
		copy(hdr.Addr2[:], buf[10:16])
		off = 16
	}
	f := Frame{Header: hdr}
	if typ.HasPayload() {
		payloadEnd := len(buf) - fcsSize
		if payloadEnd < off {
			return Frame{}, fmt.Errorf("csmaca: DATA frame missing payload/FCS")
		}
		f.Payload = append([]byte(nil), buf[off:payloadEnd]...)
	}
	return f, nil
}
