package csmaca

import (
	"math/rand"
	"time"
)

// PHY default parameters.
const (
	DefaultTxPowerDbm                  = 20.0
	DefaultTxGainDb                    = 0.0
	DefaultRxGainDb                    = 0.0
	DefaultEnergyDetectionThresholdDbm = -96.0
	DefaultCCAMode1ThresholdDbm        = -99.0
)

// Scheduler is the subset of internal/sim.Scheduler the model needs.
// It is expressed as an interface here so csmaca does not import sim
// directly, keeping the core model's dependency graph flat.
type Scheduler interface {
	Now() time.Duration
	Schedule(delay time.Duration, fn func()) EventHandleLike
	Cancel(h EventHandleLike)
}

// EventHandleLike is implemented by sim.EventHandle.
type EventHandleLike interface{ Valid() bool }

// Transceiver binds a node to a Channel. It owns its interference
// Ledger and StateHelper exclusively.
type Transceiver struct {
	NodeID  uint32
	Addr    Addr
	Channel *Channel
	Ledger  *Ledger
	State   *StateHelper
	Sched   Scheduler
	rng     *rand.Rand

	TxPowerDbm                  float64
	TxGainDb                    float64
	RxGainDb                    float64
	EnergyDetectionThresholdDbm float64
	CCAMode1ThresholdDbm        float64

	mac Listener

	// TraceStartTx, if set, observes every frame this transceiver
	// hands to the channel. Used by tests and metric collectors.
	TraceStartTx func(Frame)

	pendingEnd EventHandleLike
}

// NewTransceiver builds a Transceiver with default parameters. seed
// parameterizes this node's private PRNG stream; the transceiver
// consumes exactly one stream.
func NewTransceiver(nodeID uint32, addr Addr, sched Scheduler, seed int64) *Transceiver {
	t := &Transceiver{
		NodeID:                      nodeID,
		Addr:                        addr,
		Ledger:                      NewLedger(),
		Sched:                       sched,
		rng:                         rand.New(rand.NewSource(seed)),
		TxPowerDbm:                  DefaultTxPowerDbm,
		TxGainDb:                    DefaultTxGainDb,
		RxGainDb:                    DefaultRxGainDb,
		EnergyDetectionThresholdDbm: DefaultEnergyDetectionThresholdDbm,
		CCAMode1ThresholdDbm:        DefaultCCAMode1ThresholdDbm,
	}
	t.State = NewStateHelper(sched.Now)
	return t
}

// BindMAC registers the MAC listening to this PHY's state transitions.
func (t *Transceiver) BindMAC(mac Listener) {
	t.mac = mac
	t.State.AddListener(mac)
}

// StreamsConsumed reports how many PRNG streams this PHY has consumed
// (always 1), so callers can advance a shared starting seed.
func (t *Transceiver) StreamsConsumed() int { return 1 }

// StartSend begins transmitting frame: if currently RX, the
// in-progress reception is canceled and the ledger informed; the TX
// duration is size/bit_rate + preamble_duration; the state switches to
// TX; the channel broadcasts at tx_power_dBm + tx_gain_dB.
func (t *Transceiver) StartSend(frame Frame, preamble Preamble) {
	wire, err := frame.Marshal()
	if err != nil {
		panic("csmaca: refusing to send an unmarshalable frame: " + err.Error())
	}
	if t.State.GetState() == StateRX {
		t.cancelPendingReceive()
	}
	duration := time.Duration(preamble.AirTime(len(wire)) * float64(time.Second))
	t.State.SwitchToTX(duration)
	if t.TraceStartTx != nil {
		t.TraceStartTx(frame)
	}
	if t.Channel != nil {
		t.Channel.Send(frame, preamble, t.TxPowerDbm+t.TxGainDb, t)
	}
}

func (t *Transceiver) cancelPendingReceive() {
	if t.pendingEnd != nil && t.pendingEnd.Valid() {
		t.Sched.Cancel(t.pendingEnd)
	}
	t.pendingEnd = nil
	t.Ledger.NotifyRxEnd(t.Sched.Now())
}

// StartReceive handles a signal arriving from the channel. The event
// is always added to the ledger, even when not decoded, so it still
// contributes as interference. Reception is only attempted when the
// PHY is IDLE or CCA_BUSY and the received power clears the energy
// detection threshold; otherwise the medium is at most marked busy.
func (t *Transceiver) StartReceive(frame Frame, preamble Preamble, rxPowerDbm float64) {
	rxPowerW := DbmToW(rxPowerDbm + t.RxGainDb)
	wire, err := frame.Marshal()
	if err != nil {
		panic("csmaca: received an unmarshalable frame: " + err.Error())
	}
	now := t.Sched.Now()
	duration := time.Duration(preamble.AirTime(len(wire)) * float64(time.Second))
	ev := PHYEvent{
		SizeBytes: len(wire),
		StartTime: now.Seconds(),
		EndTime:   now.Seconds() + duration.Seconds(),
		RxPowerW:  rxPowerW,
		Preamble:  preamble,
	}
	rxing := t.State.IsRxing()
	t.Ledger.Add(ev, now.Seconds(), rxing)

	state := t.State.GetState()
	if state == StateRX || state == StateTX {
		t.maybeMarkCCABusy()
		return
	}
	if rxPowerW > DbmToW(t.EnergyDetectionThresholdDbm) {
		t.State.SwitchToRX(duration)
		handle := t.Sched.Schedule(duration, func() {
			t.endReceive(frame, ev)
		})
		t.pendingEnd = handle
		return
	}
	t.maybeMarkCCABusy()
}

// maybeMarkCCABusy marks the medium busy for the ledger's full
// remaining energy-above-threshold duration, uncapped by the
// just-arrived event's own air time: overlapping interferers can keep
// the medium busy longer than any single event's duration.
func (t *Transceiver) maybeMarkCCABusy() {
	ccaThresholdW := DbmToW(t.CCAMode1ThresholdDbm)
	wait := t.Ledger.EnergyDuration(t.Sched.Now(), ccaThresholdW)
	if wait <= 0 {
		return
	}
	t.State.SwitchMaybeCCABusy(wait)
}

// endReceive finalizes a reception: compute the packet error rate from
// the ledger, let the ledger collapse history now that reception is
// over, draw u ~ Uniform[0,1), and deliver success or error to
// listeners. Deterministic given this PHY's stream seed.
func (t *Transceiver) endReceive(frame Frame, ev PHYEvent) {
	per := t.Ledger.Per(ev)
	t.Ledger.NotifyRxEnd(t.Sched.Now())
	t.pendingEnd = nil

	u := t.rng.Float64()
	if u > per {
		t.State.EndReceiveOK(frame)
	} else {
		t.State.EndReceiveError()
	}
}
