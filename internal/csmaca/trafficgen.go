package csmaca

import (
	"math/rand"
	"time"
)

// Generator drives periodic offered load into a NetDevice: each send
// is followed by the next one after an exponentially distributed
// interval with the configured mean, so the aggregate offered load
// across many stations approximates a Poisson process.
type Generator struct {
	Dev          *NetDevice
	Dest         Addr
	Proto        uint16
	PacketSize   int
	MeanInterval time.Duration

	Sched Scheduler
	rng   *rand.Rand

	sent   int
	handle EventHandleLike
}

// NewGenerator builds a Generator. seed parameterizes this generator's
// private PRNG stream; it consumes exactly one stream.
func NewGenerator(dev *NetDevice, dest Addr, proto uint16, packetSize int, meanInterval time.Duration, sched Scheduler, seed int64) *Generator {
	return &Generator{
		Dev:          dev,
		Dest:         dest,
		Proto:        proto,
		PacketSize:   packetSize,
		MeanInterval: meanInterval,
		Sched:        sched,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// StreamsConsumed reports the number of PRNG streams this generator
// has consumed (always 1).
func (g *Generator) StreamsConsumed() int { return 1 }

// Start arms the first send, after delay relative to Sched.Now().
func (g *Generator) Start(delay time.Duration) {
	g.handle = g.Sched.Schedule(delay, g.sendAndReschedule)
}

// Stop cancels any pending send.
func (g *Generator) Stop() {
	g.Sched.Cancel(g.handle)
	g.handle = nil
}

// Sent reports how many payloads this generator has sent so far.
func (g *Generator) Sent() int { return g.sent }

func (g *Generator) sendAndReschedule() {
	payload := make([]byte, g.PacketSize)
	payload[0] = byte(g.sent)
	g.Dev.Send(payload, g.Dest, g.Proto)
	g.sent++

	next := time.Duration(float64(g.MeanInterval) * g.rng.ExpFloat64())
	g.handle = g.Sched.Schedule(next, g.sendAndReschedule)
}
