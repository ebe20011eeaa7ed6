package csmaca

import (
	"github.com/arnet/csmaca/internal/mobility"
	"github.com/arnet/csmaca/internal/propagation"
)

// Channel is the shared broadcast medium. It holds references to the
// attached transceivers; the list is append-only and stable for the
// life of a run.
type Channel struct {
	peers    []*Transceiver
	Mobility mobility.Model
	Loss     propagation.LossModel
	Delay    propagation.DelayModel
}

// NewChannel builds a Channel with the default log-distance loss model
// and constant-speed delay model.
func NewChannel(mob mobility.Model) *Channel {
	return &Channel{
		Mobility: mob,
		Loss:     propagation.NewLogDistance(),
		Delay:    propagation.NewConstantSpeed(),
	}
}

// Attach registers t on the channel and binds t.Channel to this
// channel.
func (c *Channel) Attach(t *Transceiver) {
	c.peers = append(c.peers, t)
	t.Channel = c
}

// Send fans frame out to every attached peer except sender: each peer
// gets a delayed receive carrying a deep copy of the frame, with the
// delay and received power derived from the two stations' current
// positions.
func (c *Channel) Send(frame Frame, preamble Preamble, txPowerDbm float64, sender *Transceiver) {
	senderPos := c.Mobility.PositionOf(mobility.NodeID(sender.NodeID))
	for _, peer := range c.peers {
		if peer == sender {
			continue
		}
		peerPos := c.Mobility.PositionOf(mobility.NodeID(peer.NodeID))
		delay := c.Delay.Delay(senderPos, peerPos)
		rxPowerDbm := c.Loss.ReceivedPowerDbm(txPowerDbm, senderPos, peerPos)
		peerCopy := deepCopyFrame(frame)
		dst := peer
		sender.Sched.Schedule(delay, func() {
			dst.StartReceive(peerCopy, preamble, rxPowerDbm)
		})
	}
}

func deepCopyFrame(f Frame) Frame {
	cp := f
	if f.Payload != nil {
		cp.Payload = append([]byte(nil), f.Payload...)
	}
	return cp
}
