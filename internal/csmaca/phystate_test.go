package csmaca

import (
	"testing"
	"time"
)

type fakeListener struct {
	rxStarts, txStarts, ccaStarts int
	okFrames                      []Frame
	errCount                      int
}

func (f *fakeListener) NotifyRxStart(time.Duration)      { f.rxStarts++ }
func (f *fakeListener) NotifyTxStart(time.Duration)      { f.txStarts++ }
func (f *fakeListener) NotifyCCABusyStart(time.Duration) { f.ccaStarts++ }
func (f *fakeListener) NotifyRxEndOK(fr Frame)           { f.okFrames = append(f.okFrames, fr) }
func (f *fakeListener) NotifyRxEndError()                { f.errCount++ }

func TestStateDerivation(t *testing.T) {
	var now time.Duration
	h := NewStateHelper(func() time.Duration { return now })

	if got := h.GetState(); got != StateIdle {
		t.Fatalf("expected IDLE initially, got %s", got)
	}

	h.SwitchToRX(100)
	if got := h.GetState(); got != StateRX {
		t.Fatalf("expected RX during reception, got %s", got)
	}

	now = 50
	h.SwitchToTX(10)
	if got := h.GetState(); got != StateTX {
		t.Fatalf("expected TX to preempt RX, got %s", got)
	}
	if h.IsRxing() {
		t.Fatal("expected rxing cleared by SwitchToTX")
	}

	now = 60
	if got := h.GetState(); got != StateIdle {
		t.Fatalf("expected IDLE after TX ends with no CCA busy, got %s", got)
	}

	h.SwitchMaybeCCABusy(20)
	if got := h.GetState(); got != StateCCABusy {
		t.Fatalf("expected CCA_BUSY, got %s", got)
	}
	now = 81
	if got := h.GetState(); got != StateIdle {
		t.Fatalf("expected IDLE after CCA busy window elapses, got %s", got)
	}
}

func TestSwitchToRXPanicsIfAlreadyRxing(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling SwitchToRX while already rxing")
		}
	}()
	var now time.Duration
	h := NewStateHelper(func() time.Duration { return now })
	h.SwitchToRX(10)
	h.SwitchToRX(10)
}

func TestListenersNotifiedOnTransitions(t *testing.T) {
	var now time.Duration
	h := NewStateHelper(func() time.Duration { return now })
	l := &fakeListener{}
	h.AddListener(l)

	h.SwitchToRX(10)
	h.EndReceiveOK(NewAckFrame(BroadcastAddr))
	h.SwitchToTX(5)
	h.SwitchMaybeCCABusy(5)

	if l.rxStarts != 1 || l.txStarts != 1 || l.ccaStarts != 1 || len(l.okFrames) != 1 {
		t.Fatalf("unexpected listener notification counts: %+v", l)
	}
}
