package csmaca

import (
	"bytes"
	"testing"
	"time"

	"github.com/arnet/csmaca/internal/mobility"
	"github.com/arnet/csmaca/internal/sim"
)

func TestNetDeviceLLCRoundTrip(t *testing.T) {
	payload := []byte("udp datagram")
	framed := wrapLLC(payload, 0x0800)
	if framed[0] != llcDSAP || framed[1] != llcSSAP || framed[2] != llcControl {
		t.Fatalf("unexpected LLC header bytes: %x", framed[:3])
	}
	inner, proto, ok := unwrapLLC(framed)
	if !ok {
		t.Fatal("unwrapLLC failed on a well-formed header")
	}
	if proto != 0x0800 {
		t.Fatalf("proto mismatch: got %#x want 0x0800", proto)
	}
	if !bytes.Equal(inner, payload) {
		t.Fatalf("payload mismatch: got %q want %q", inner, payload)
	}
}

func TestNetDeviceUnwrapRejectsTruncatedHeader(t *testing.T) {
	if _, _, ok := unwrapLLC([]byte{llcDSAP, llcSSAP}); ok {
		t.Fatal("expected unwrapLLC to reject a truncated header")
	}
}

func TestNetDeviceClassify(t *testing.T) {
	self := addrN(1)
	multicast := Addr{0x01, 0x00, 0x5e, 0, 0, 1}
	cases := []struct {
		dst  Addr
		want DestClass
	}{
		{self, DestHost},
		{BroadcastAddr, DestHost},
		{multicast, DestMulticast},
		{addrN(9), DestOther},
	}
	for _, c := range cases {
		if got := classify(c.dst, self); got != c.want {
			t.Errorf("classify(%s) = %d, want %d", c.dst, got, c.want)
		}
	}
}

func TestNetDeviceRejectsOversizedPayload(t *testing.T) {
	s := sim.NewScheduler()
	positions := map[mobility.NodeID]mobility.Position{
		0: {X: 0, Y: 0},
		1: {X: 10, Y: 0},
	}
	_, stations := newTestTopology(t, s, positions)
	a, b := byID(stations, 0), byID(stations, 1)

	if a.dev.Send(make([]byte, a.dev.MTU+1), b.addr, 0x0800) {
		t.Fatal("expected Send to reject a payload above the MTU")
	}
	if !a.mac.Queue.IsEmpty() {
		t.Fatal("rejected payload must not reach the MAC queue")
	}
	if !a.dev.Send(make([]byte, a.dev.MTU), b.addr, 0x0800) {
		t.Fatal("expected Send to accept a payload at the MTU")
	}
}

func TestPHYStartTxTrace(t *testing.T) {
	s := sim.NewScheduler()
	positions := map[mobility.NodeID]mobility.Position{
		0: {X: 0, Y: 0},
		1: {X: 10, Y: 0},
	}
	_, stations := newTestTopology(t, s, positions)
	a, b := byID(stations, 0), byID(stations, 1)

	var sent []FrameType
	a.phy.TraceStartTx = func(f Frame) { sent = append(sent, f.Header.Type) }

	a.dev.Send(make([]byte, 100), b.addr, 0x0800)
	s.Run(10 * time.Millisecond)

	if len(sent) == 0 || sent[0] != FrameTypeData {
		t.Fatalf("expected the trace to observe a DATA transmission, got %v", sent)
	}
}
