package csmaca

import (
	"fmt"
	"time"
)

// State is one of the four PHY states.
type State uint8

const (
	StateIdle State = iota
	StateCCABusy
	StateRX
	StateTX
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCCABusy:
		return "CCA_BUSY"
	case StateRX:
		return "RX"
	case StateTX:
		return "TX"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Listener is the capability set a PHY notifies its owning MAC
// through. One MAC listens to one PHY in practice.
type Listener interface {
	NotifyRxStart(duration time.Duration)
	NotifyTxStart(duration time.Duration)
	NotifyCCABusyStart(duration time.Duration)
	NotifyRxEndOK(frame Frame)
	NotifyRxEndError()
}

// StateHelper tracks the scalar endpoints that derive PHY state:
// end_tx, end_rx, end_cca_busy and the rxing flag. GetState is the
// single source of truth for the derived state; every other method
// only ever mutates these four fields (plus the busy-period start
// ccaStart) and notifies listeners.
type StateHelper struct {
	clock func() time.Duration

	endTX      time.Duration
	endRX      time.Duration
	endCCABusy time.Duration
	ccaStart   time.Duration
	rxing      bool

	listeners []Listener
}

// NewStateHelper builds a StateHelper. clock reports the current
// simulated time (normally sim.Scheduler.Now).
func NewStateHelper(clock func() time.Duration) *StateHelper {
	return &StateHelper{clock: clock}
}

// AddListener registers l to receive state-transition notifications.
func (h *StateHelper) AddListener(l Listener) { h.listeners = append(h.listeners, l) }

// GetState derives the current PHY state from (end_tx, end_rx,
// end_cca_busy, rxing): if now < end_tx -> TX; else if rxing -> RX;
// else if now < end_cca_busy -> CCA_BUSY; else IDLE.
func (h *StateHelper) GetState() State {
	now := h.clock()
	switch {
	case now < h.endTX:
		return StateTX
	case h.rxing:
		return StateRX
	case now < h.endCCABusy:
		return StateCCABusy
	default:
		return StateIdle
	}
}

// IsRxing reports the raw rxing flag (needed by the ledger's Add to
// decide whether to collapse history).
func (h *StateHelper) IsRxing() bool { return h.rxing }

// SwitchToRX requires ¬rxing and transitions to RX for duration,
// notifying listeners of the scheduled duration.
func (h *StateHelper) SwitchToRX(duration time.Duration) {
	if h.rxing {
		panic("csmaca: SwitchToRX called while already rxing")
	}
	if duration < 0 {
		panic("csmaca: negative RX duration")
	}
	now := h.clock()
	h.rxing = true
	h.endRX = now + duration
	for _, l := range h.listeners {
		l.NotifyRxStart(duration)
	}
}

// EndReceiveOK transitions out of RX on successful decode, delivering
// frame to listeners.
func (h *StateHelper) EndReceiveOK(frame Frame) {
	h.endReceiveCommon()
	for _, l := range h.listeners {
		l.NotifyRxEndOK(frame)
	}
}

// EndReceiveError transitions out of RX on a decode failure.
func (h *StateHelper) EndReceiveError() {
	h.endReceiveCommon()
	for _, l := range h.listeners {
		l.NotifyRxEndError()
	}
}

func (h *StateHelper) endReceiveCommon() {
	now := h.clock()
	h.rxing = false
	h.endRX = now
}

// SwitchToTX transitions to TX for duration from any state. If
// previously RX, it cancels the in-progress reception: rxing <- false,
// end_rx <- now. The caller is still responsible for telling the
// ledger about the canceled reception and for canceling the scheduled
// end-of-reception callback.
func (h *StateHelper) SwitchToTX(duration time.Duration) {
	if duration < 0 {
		panic("csmaca: negative TX duration")
	}
	now := h.clock()
	if h.rxing {
		h.rxing = false
		h.endRX = now
	}
	h.endTX = now + duration
	for _, l := range h.listeners {
		l.NotifyTxStart(duration)
	}
}

// SwitchMaybeCCABusy extends end_cca_busy to max(old, now+duration); if
// the PHY was not already CCA_BUSY it records the new busy-period start
// and notifies listeners.
func (h *StateHelper) SwitchMaybeCCABusy(duration time.Duration) {
	if duration <= 0 {
		return
	}
	now := h.clock()
	wasBusy := h.GetState() == StateCCABusy
	candidate := now + duration
	if candidate > h.endCCABusy {
		h.endCCABusy = candidate
	}
	if !wasBusy {
		h.ccaStart = now
		for _, l := range h.listeners {
			l.NotifyCCABusyStart(duration)
		}
	}
}

// EndTX, EndRX, EndCCABusy expose the raw scalar endpoints. The MAC's
// grant computation does not read them; it keeps its own copies from
// listener notifications.
func (h *StateHelper) EndTX() time.Duration      { return h.endTX }
func (h *StateHelper) EndRX() time.Duration      { return h.endRX }
func (h *StateHelper) EndCCABusy() time.Duration { return h.endCCABusy }
