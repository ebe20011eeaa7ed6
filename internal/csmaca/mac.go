package csmaca

import (
	"log/slog"
	"math/rand"
	"time"
)

// Default MAC timing constants, all in microseconds unless noted.
const (
	DefaultSIFSUs            = 16
	DefaultDIFSUs            = 34
	DefaultSlotUs            = 9
	DefaultCWMin             = 15
	DefaultCWMax             = 1023
	DefaultRTSThresholdBytes = 1000
	DefaultMaxRetriesRTS     = 7
	DefaultMaxRetriesData    = 7
	maxPropagationDistanceM  = 1000.0
)

// DeliverFunc receives a payload handed up from the MAC, with the
// frame's source and destination addresses for classification by the
// net device.
type DeliverFunc func(payload []byte, dst, src Addr)

// MAC implements the CSMA/CA access state machine: defer, DIFS wait,
// backoff slot countdown, the optional RTS/CTS exchange, DATA
// transmission, ACK handling, retry and contention-window update, and
// NAV bookkeeping. It exclusively owns its Queue and its pending
// timers; exactly one of {sending a frame, awaiting CTS, awaiting ACK,
// counting down backoff, idle} holds for a station at any instant.
type MAC struct {
	Addr  Addr
	PHY   *Transceiver
	Queue *Queue
	Sched Scheduler
	Log   *slog.Logger

	Preamble Preamble

	SIFS, DIFS, Slot    time.Duration
	CWMin, CWMax        int
	RTSThresholdBytes   int
	MaxRetriesRTS       int
	MaxRetriesData      int
	MaxPropagationDelay time.Duration

	rtsSifsTime time.Duration
	ctsSifsTime time.Duration
	ackSifsTime time.Duration

	// timing state: latest (start, duration) pair observed for each
	// category, plus the two timeout end timestamps.
	rxStart, rxDur      time.Duration
	txStart, txDur      time.Duration
	busyStart, busyDur  time.Duration
	navStart, navDur    time.Duration
	latestAckTimeoutEnd time.Duration
	latestCtsTimeoutEnd time.Duration

	mCW              int
	backoffSlots     int
	backoffStartTime time.Duration
	resendRTSN       int
	resendDataN      int
	backoffArmed     bool

	current *QueueItem

	backoffGrantHandle   EventHandleLike
	backoffTimeoutHandle EventHandleLike
	ctsTimeoutHandle     EventHandleLike
	ackTimeoutHandle     EventHandleLike
	sendCtsHandle        EventHandleLike
	sendDataHandle       EventHandleLike
	sendAckHandle        EventHandleLike

	rng *rand.Rand

	Deliver DeliverFunc

	// Metrics, if set, is notified of frame transmissions, decodes,
	// retries and drops for external observability (internal/metrics).
	Metrics MetricsSink
}

// MetricsSink receives MAC-level counting events. It is satisfied by
// *metrics.Station without internal/csmaca importing the metrics
// package directly.
type MetricsSink interface {
	TxFrame(frameType string)
	RxFrame(frameType string)
	Retry()
	Drop(reason string)
}

// NewMAC builds a MAC with the default timing/retry parameters. seed
// parameterizes this station's private PRNG, used only for backoff
// slot draws; the MAC consumes exactly one stream.
func NewMAC(addr Addr, phy *Transceiver, sched Scheduler, seed int64) *MAC {
	maxPropagationDistanceM := float64(maxPropagationDistanceM)
	m := &MAC{
		Addr:                addr,
		PHY:                 phy,
		Queue:               NewQueue(DefaultQueueMaxSize),
		Sched:               sched,
		Preamble:            DefaultPreamble(),
		SIFS:                time.Duration(DefaultSIFSUs) * time.Microsecond,
		DIFS:                time.Duration(DefaultDIFSUs) * time.Microsecond,
		Slot:                time.Duration(DefaultSlotUs) * time.Microsecond,
		CWMin:               DefaultCWMin,
		CWMax:               DefaultCWMax,
		RTSThresholdBytes:   DefaultRTSThresholdBytes,
		MaxRetriesRTS:       DefaultMaxRetriesRTS,
		MaxRetriesData:      DefaultMaxRetriesData,
		MaxPropagationDelay: time.Duration(maxPropagationDistanceM / propagationSpeedMPerS * float64(time.Second)),
		mCW:                 DefaultCWMin,
		rng:                 rand.New(rand.NewSource(seed)),
		Log:                 slog.Default(),
	}
	m.recomputeAirTimes()
	phy.BindMAC(m)
	return m
}

const propagationSpeedMPerS = 299_792_458.0

func (m *MAC) recomputeAirTimes() {
	rtsAirTime := m.Preamble.AirTime(headerSizeLong + fcsSize)
	ctsAirTime := m.Preamble.AirTime(headerSizeShort + fcsSize)
	ackAirTime := m.Preamble.AirTime(headerSizeShort + fcsSize)
	prop := m.MaxPropagationDelay

	toDur := func(secs float64) time.Duration { return time.Duration(secs * float64(time.Second)) }
	m.rtsSifsTime = toDur(rtsAirTime) + prop + m.SIFS
	m.ctsSifsTime = toDur(ctsAirTime) + prop + m.SIFS
	m.ackSifsTime = toDur(ackAirTime) + prop + m.SIFS
}

func durationToUs(d time.Duration) uint16 {
	us := d / time.Microsecond
	if us < 0 {
		us = 0
	}
	if us > MaxDurationUs {
		panic("csmaca: duration field overflow")
	}
	return uint16(us)
}

func usToDuration(us uint16) time.Duration { return time.Duration(us) * time.Microsecond }

// StreamsConsumed reports the number of PRNG streams this MAC has
// consumed (always 1).
func (m *MAC) StreamsConsumed() int { return 1 }

// Enqueue submits payload for transmission to dst. The caller (net
// device) supplies the addressing; the MAC fills in the duration field
// appropriate to whether the destination is a broadcast/group address.
func (m *MAC) Enqueue(payload []byte, dst Addr) {
	var dur uint16
	if !dst.IsGroup() {
		dur = durationToUs(m.ackSifsTime)
	}
	frame := NewDataFrame(dst, m.Addr, dur, payload)
	ref := m.Queue.Enqueue(frame, m.Sched.Now())
	if ref == 0 {
		m.Log.Warn("csmaca: MAC queue full, dropping frame", "addr", m.Addr)
		m.dropMetric("queue_full")
		return
	}
	m.startBackoffIfNeeded()
}

// --- Access state machine ---

func (m *MAC) now() time.Duration { return m.Sched.Now() }

func (m *MAC) endpoints() (rxEnd, txEnd, busyEnd, navEnd time.Duration) {
	return m.rxStart + m.rxDur, m.txStart + m.txDur, m.busyStart + m.busyDur, m.navStart + m.navDur
}

// backoffGrant is the earliest instant the MAC may begin counting down
// backoff slots: every busy source (rx, tx, cca busy, NAV, the two
// timeout classes) must have ended, plus a DIFS.
func (m *MAC) backoffGrant() time.Duration {
	return m.sendGrant() + m.DIFS
}

// sendGrant is the earliest instant an already-armed transmission may
// fire: the same maximum as backoffGrant without the DIFS term.
func (m *MAC) sendGrant() time.Duration {
	rxEnd, txEnd, busyEnd, navEnd := m.endpoints()
	return max(rxEnd, txEnd, busyEnd, navEnd, m.latestAckTimeoutEnd, m.latestCtsTimeoutEnd)
}

func (m *MAC) startBackoffIfNeeded() {
	if m.current != nil || m.Queue.IsEmpty() || m.backoffArmed {
		return
	}
	item, ok := m.Queue.Dequeue()
	if !ok {
		return
	}
	m.current = &item
	m.backoffArmed = true
	m.backoffGrantStart()
}

func (m *MAC) backoffGrantStart() {
	now := m.now()
	bg := m.backoffGrant()
	if bg <= now {
		m.startBackoff()
		return
	}
	m.backoffGrantHandle = m.Sched.Schedule(bg-now, m.backoffGrantStart)
}

func (m *MAC) startBackoff() {
	now := m.now()
	m.backoffSlots = m.rng.Intn(m.mCW + 1)
	m.backoffStartTime = now
	delay := time.Duration(m.backoffSlots) * m.Slot
	m.backoffTimeoutHandle = m.Sched.Schedule(delay, m.backoffTimeout)
}

// backoffTimeout fires when the slot countdown elapses. If the medium
// became busy again in the meantime the station re-enters the grant
// wait; otherwise it picks the transmit path: broadcast DATA with no
// ACK, RTS for payloads at or above the threshold, or direct DATA
// (treated as if a CTS had just been received) for short unicast.
func (m *MAC) backoffTimeout() {
	now := m.now()
	if m.sendGrant() > now {
		m.backoffGrantStart()
		return
	}
	dst := m.current.Frame.Header.Addr1
	switch {
	case dst.IsGroup():
		m.sendDataNoAck()
	case len(m.current.Frame.Payload) >= m.RTSThresholdBytes:
		m.sendRTS()
	default:
		m.sendDataAfterCTS()
	}
}

// sendRTS emits an RTS whose duration reserves the full cts+data+ack
// budget, and arms the CTS timeout. The timeout end is recorded
// immediately so backoffGrant defers until it, then pulled back to now
// should the CTS actually arrive.
func (m *MAC) sendRTS() {
	ctsDelay := m.rtsSifsTime + m.ctsSifsTime
	m.ctsTimeoutHandle = m.Sched.Schedule(ctsDelay, m.ctsTimeout)
	m.latestCtsTimeoutEnd = m.now() + ctsDelay
	dataAirTime := m.dataSendTime()
	dur := m.ctsSifsTime + dataAirTime + m.ackSifsTime
	rts := NewRTSFrame(m.current.Frame.Header.Addr1, m.Addr, durationToUs(dur))
	m.txMetric("RTS")
	m.PHY.StartSend(rts, m.Preamble)
}

// dataSendTime is the current frame's air time plus the worst-case
// propagation delay, the interval budgeted for the DATA leg of an
// exchange.
func (m *MAC) dataSendTime() time.Duration {
	air := time.Duration(m.Preamble.AirTime(m.current.Frame.SerializedSize()) * float64(time.Second))
	return air + m.MaxPropagationDelay
}

func (m *MAC) sendDataNoAck() {
	m.txMetric("DATA")
	m.PHY.StartSend(m.current.Frame, m.Preamble)
	m.initSend()
	m.startBackoffIfNeeded()
}

func (m *MAC) sendDataAfterCTS() {
	ackDelay := m.dataSendTime() + m.ackSifsTime
	m.ackTimeoutHandle = m.Sched.Schedule(ackDelay, m.ackTimeout)
	m.latestAckTimeoutEnd = m.now() + ackDelay
	m.txMetric("DATA")
	m.PHY.StartSend(m.current.Frame, m.Preamble)
}

func (m *MAC) ctsTimeout() {
	if m.resendRTSN < m.MaxRetriesRTS {
		m.resendRTSN++
		m.retryMetric()
		m.updateCW()
		m.backoffGrantStart()
		return
	}
	m.dropMetric("rts_retries_exhausted")
	m.initSend()
	m.startBackoffIfNeeded()
}

func (m *MAC) ackTimeout() {
	if m.resendDataN < m.MaxRetriesData {
		m.resendDataN++
		m.retryMetric()
		m.updateCW()
		m.backoffGrantStart()
		return
	}
	m.dropMetric("data_retries_exhausted")
	m.initSend()
	m.startBackoffIfNeeded()
}

func (m *MAC) updateCW() {
	m.mCW = min(2*(m.mCW+1)-1, m.CWMax)
}

// initSend resets the per-frame send cycle: retry counters, the
// current frame, and the contention window.
func (m *MAC) initSend() {
	m.resendRTSN = 0
	m.resendDataN = 0
	m.current = nil
	m.mCW = m.CWMin
	m.backoffArmed = false
}

func (m *MAC) txMetric(frameType string) {
	if m.Metrics != nil {
		m.Metrics.TxFrame(frameType)
	}
}

func (m *MAC) rxMetric(frameType string) {
	if m.Metrics != nil {
		m.Metrics.RxFrame(frameType)
	}
}

func (m *MAC) retryMetric() {
	if m.Metrics != nil {
		m.Metrics.Retry()
	}
}

func (m *MAC) dropMetric(reason string) {
	if m.Metrics != nil {
		m.Metrics.Drop(reason)
	}
}

// setNav only updates (nav_start, nav_dur) when the new deadline
// now + dur exceeds the one currently stored, so overlapping shorter
// reservations never shorten an existing NAV.
func (m *MAC) setNav(durationUs uint16) {
	now := m.now()
	newEnd := now + usToDuration(durationUs)
	if newEnd > m.navStart+m.navDur {
		m.navStart = now
		m.navDur = usToDuration(durationUs)
	}
}

// --- PHY Listener implementation ---

func (m *MAC) NotifyRxStart(duration time.Duration) {
	m.rxStart = m.now()
	m.rxDur = duration
}

func (m *MAC) NotifyTxStart(duration time.Duration) {
	m.txStart = m.now()
	m.txDur = duration
}

func (m *MAC) NotifyCCABusyStart(duration time.Duration) {
	m.busyStart = m.now()
	m.busyDur = duration
}

func (m *MAC) NotifyRxEndError() {
	// rxing already cleared by the PHY state helper; no further MAC
	// state changes on a decode failure.
}

// NotifyRxEndOK processes a successfully decoded frame. NAV is updated
// for every frame not literally self-addressed, including broadcasts
// (whose duration field is always 0, so the update is a harmless no-op
// there); the self-addressed actions below are evaluated in addition
// to, not instead of, that NAV update.
func (m *MAC) NotifyRxEndOK(frame Frame) {
	now := m.now()
	h := frame.Header
	if h.Addr1 != m.Addr {
		m.setNav(h.DurationUs)
	}

	selfAddressed := h.Addr1 == m.Addr
	broadcastData := h.Type == FrameTypeData && h.Addr1.IsGroup()
	if !selfAddressed && !broadcastData {
		return
	}

	switch h.Type {
	case FrameTypeData:
		m.rxMetric("DATA")
		if broadcastData {
			m.deliverUp(frame)
			return
		}
		dst := h.Addr2
		m.sendAckHandle = m.Sched.Schedule(m.SIFS, func() { m.sendAckAfterData(dst) })
		m.deliverUp(frame)
	case FrameTypeRTS:
		m.rxMetric("RTS")
		residual := h.DurationUs
		if residual > uint16(m.ctsSifsTime/time.Microsecond) {
			residual -= uint16(m.ctsSifsTime / time.Microsecond)
		} else {
			residual = 0
		}
		src := h.Addr2
		m.sendCtsHandle = m.Sched.Schedule(m.SIFS, func() { m.sendCtsAfterRTS(src, residual) })
	case FrameTypeCTS:
		m.rxMetric("CTS")
		m.Sched.Cancel(m.ctsTimeoutHandle)
		m.latestCtsTimeoutEnd = now
		m.sendDataHandle = m.Sched.Schedule(m.SIFS, m.sendDataAfterCTS)
	case FrameTypeAck:
		m.rxMetric("ACK")
		m.Sched.Cancel(m.ackTimeoutHandle)
		m.latestAckTimeoutEnd = now
		m.initSend()
		m.startBackoffIfNeeded()
	}
}

func (m *MAC) sendCtsAfterRTS(dst Addr, residualUs uint16) {
	cts := NewCTSFrame(dst, residualUs)
	m.txMetric("CTS")
	m.PHY.StartSend(cts, m.Preamble)
}

func (m *MAC) sendAckAfterData(dst Addr) {
	ack := NewAckFrame(dst)
	m.txMetric("ACK")
	m.PHY.StartSend(ack, m.Preamble)
}

func (m *MAC) deliverUp(frame Frame) {
	if m.Deliver != nil {
		m.Deliver(frame.Payload, frame.Header.Addr1, frame.Header.Addr2)
	}
}
