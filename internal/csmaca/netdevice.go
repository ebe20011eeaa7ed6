package csmaca

// LLC/SNAP header constants, following the IETF layout above the MAC
// payload for DATA frames.
const (
	llcDSAP        = 0xaa
	llcSSAP        = 0xaa
	llcControl     = 0x03
	llcOrgCodeSize = 3
	llcHeaderSize  = 3 + llcOrgCodeSize + 2 // dsap+ssap+control+org+ethertype
)

// DestClass classifies a received frame's destination for dispatch.
type DestClass uint8

const (
	DestHost DestClass = iota
	DestMulticast
	DestOther
)

// ReceiveCallback is invoked for payloads accepted by this device.
type ReceiveCallback func(payload []byte, src Addr, proto uint16)

// DefaultMTU bounds the payload size accepted from the upper layer.
const DefaultMTU = 2304

// NetDevice wraps a MAC with LLC/SNAP glue: it wraps upper-layer sends
// into DATA frames and classifies received payloads by destination
// before dispatch.
type NetDevice struct {
	Addr Addr
	MAC  *MAC
	MTU  int

	Receive     ReceiveCallback
	Promiscuous ReceiveCallback
}

// NewNetDevice binds dev's MAC.Deliver callback to this device's
// receive-dispatch pipeline.
func NewNetDevice(addr Addr, mac *MAC) *NetDevice {
	dev := &NetDevice{Addr: addr, MAC: mac, MTU: DefaultMTU}
	mac.Deliver = dev.onMACDeliver
	return dev
}

// Send submits an upper-layer payload for dst: it prepends an LLC/SNAP
// header carrying proto, then enqueues a DATA frame via the MAC. A
// payload exceeding the device MTU is rejected with false.
func (d *NetDevice) Send(payload []byte, dst Addr, proto uint16) bool {
	if len(payload) > d.MTU {
		return false
	}
	framed := wrapLLC(payload, proto)
	d.MAC.Enqueue(framed, dst)
	return true
}

// onMACDeliver implements the MAC -> device receive path: strip LLC,
// classify the destination, and invoke the registered callbacks.
func (d *NetDevice) onMACDeliver(payload []byte, dst, src Addr) {
	inner, proto, ok := unwrapLLC(payload)
	if !ok {
		return
	}
	if d.Promiscuous != nil {
		d.Promiscuous(inner, src, proto)
	}
	class := classify(dst, d.Addr)
	if class == DestOther {
		return
	}
	if d.Receive != nil {
		d.Receive(inner, src, proto)
	}
}

func classify(dst, self Addr) DestClass {
	switch {
	case dst == self || dst == BroadcastAddr:
		return DestHost
	case dst.IsGroup():
		return DestMulticast
	default:
		return DestOther
	}
}

func wrapLLC(payload []byte, proto uint16) []byte {
	out := make([]byte, llcHeaderSize+len(payload))
	out[0] = llcDSAP
	out[1] = llcSSAP
	out[2] = llcControl
	// org code left as zero (no vendor extension in this simulator).
	out[6] = byte(proto >> 8)
	out[7] = byte(proto)
	copy(out[llcHeaderSize:], payload)
	return out
}

func unwrapLLC(framed []byte) (payload []byte, proto uint16, ok bool) {
	if len(framed) < llcHeaderSize {
		return nil, 0, false
	}
	proto = uint16(framed[6])<<8 | uint16(framed[7])
	return framed[llcHeaderSize:], proto, true
}
