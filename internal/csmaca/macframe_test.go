package csmaca

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	addr1 := Addr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	addr2 := Addr{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f}
	types := []FrameType{FrameTypeData, FrameTypeAck, FrameTypeRTS, FrameTypeCTS}

	for _, typ := range types {
		for dur := 0; dur <= MaxDurationUs; dur++ { // every duration; endpoints also checked explicitly below
			checkRoundTrip(t, typ, addr1, addr2, uint16(dur))
		}
		checkRoundTrip(t, typ, addr1, addr2, 0)
		checkRoundTrip(t, typ, addr1, addr2, MaxDurationUs)
	}
}

func checkRoundTrip(t *testing.T, typ FrameType, addr1, addr2 Addr, dur uint16) {
	t.Helper()
	var f Frame
	switch typ {
	case FrameTypeData:
		f = NewDataFrame(addr1, addr2, dur, []byte("hello world"))
	case FrameTypeAck:
		f = NewAckFrame(addr1)
		f.Header.DurationUs = dur
	case FrameTypeRTS:
		f = NewRTSFrame(addr1, addr2, dur)
	case FrameTypeCTS:
		f = NewCTSFrame(addr1, dur)
	}

	wire, err := f.Marshal()
	if err != nil {
		t.Fatalf("marshal %s dur=%d: %v", typ, dur, err)
	}
	if len(wire) != f.SerializedSize() {
		t.Fatalf("%s dur=%d: wire len %d != SerializedSize %d", typ, dur, len(wire), f.SerializedSize())
	}

	got, err := Unmarshal(wire)
	if err != nil {
		t.Fatalf("unmarshal %s dur=%d: %v", typ, dur, err)
	}
	if got.Header.Type != typ {
		t.Fatalf("type mismatch: got %s want %s", got.Header.Type, typ)
	}
	if got.Header.DurationUs != dur {
		t.Fatalf("duration mismatch: got %d want %d", got.Header.DurationUs, dur)
	}
	if got.Header.Addr1 != addr1 {
		t.Fatalf("addr1 mismatch: got %v want %v", got.Header.Addr1, addr1)
	}
	if typ.HasAddr2() && got.Header.Addr2 != addr2 {
		t.Fatalf("addr2 mismatch: got %v want %v", got.Header.Addr2, addr2)
	}
	if typ.HasPayload() && !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: got %v want %v", got.Payload, f.Payload)
	}
}

func TestSerializedSizeFixedOverhead(t *testing.T) {
	cases := []struct {
		f    Frame
		want int
	}{
		{NewAckFrame(BroadcastAddr), headerSizeShort + fcsSize},
		{NewCTSFrame(BroadcastAddr, 10), headerSizeShort + fcsSize},
		{NewRTSFrame(BroadcastAddr, BroadcastAddr, 10), headerSizeLong + fcsSize},
		{NewDataFrame(BroadcastAddr, BroadcastAddr, 0, make([]byte, 37)), headerSizeLong + fcsSize + 37},
	}
	for _, c := range cases {
		if got := c.f.SerializedSize(); got != c.want {
			t.Errorf("%s: SerializedSize() = %d, want %d", c.f.Header.Type, got, c.want)
		}
	}
}

func TestMarshalRejectsOversizedDuration(t *testing.T) {
	f := NewAckFrame(BroadcastAddr)
	f.Header.DurationUs = MaxDurationUs + 1
	if _, err := f.Marshal(); err == nil {
		t.Fatal("expected error for duration above MaxDurationUs")
	}
}

func TestFrameTypeLowTwoBits(t *testing.T) {
	for _, typ := range []FrameType{FrameTypeData, FrameTypeAck, FrameTypeRTS, FrameTypeCTS} {
		f := Frame{Header: Header{Type: typ, Addr1: BroadcastAddr}}
		wire, err := f.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		fc := uint16(wire[0]) | uint16(wire[1])<<8
		if FrameType(fc&0x3) != typ {
			t.Fatalf("frame control low bits do not encode type %s", typ)
		}
	}
}
