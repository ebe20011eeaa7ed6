package csmaca

import (
	"math"
	"sort"
	"time"

	"github.com/google/btree"
)

// Boltzmann's constant, J/K.
const boltzmannK = 1.3803e-23

// Thermal reference temperature, K.
const referenceTemperatureK = 290.0

// DefaultNoiseFigureDB is the default receiver noise figure.
const DefaultNoiseFigureDB = 7.0

// PHYEvent is an immutable record of a signal arriving at a receiver.
// It lives from the moment the signal begins arriving until the
// end-of-reception handler fires.
type PHYEvent struct {
	SizeBytes int
	StartTime float64 // seconds
	EndTime   float64 // seconds
	RxPowerW  float64
	Preamble  Preamble
}

// ledgerChange is a single (time, Δpower) point in the interference
// ledger. seq breaks ties between changes scheduled for the same
// instant so the btree ordering stays a strict weak order even though
// many additions can share a timestamp.
type ledgerChange struct {
	t     float64
	seq   uint64
	delta float64
}

func lessChange(a, b ledgerChange) bool {
	if a.t != b.t {
		return a.t < b.t
	}
	return a.seq < b.seq
}

// Ledger is the time-ordered interference change-point list a receiver
// consults to decide decode success. Each PHY exclusively owns one
// Ledger. Every Add pairs a (start, +power) point with an equal and
// opposite (end, -power) point, so firstPower plus every point at or
// before t equals the ambient power at t (see ambientAt).
type Ledger struct {
	tree          *btree.BTreeG[ledgerChange]
	firstPower    float64 // rolling collapsed power from points before "now"
	seq           uint64
	noiseFigureDB float64
}

// NewLedger returns an empty ledger at zero ambient power.
func NewLedger() *Ledger {
	return &Ledger{
		tree:          btree.NewG(32, lessChange),
		noiseFigureDB: DefaultNoiseFigureDB,
	}
}

// Add inserts ev's (start, +power) and (end, -power) change points. If
// rxing is false (no reception currently in progress on this PHY), it
// first collapses every change strictly before now into the rolling
// firstPower accumulator so the ledger stays bounded during idle
// stretches; while rxing is true, history is preserved so Per can walk
// the overlapping power for the active event.
func (l *Ledger) Add(ev PHYEvent, now float64, rxing bool) {
	l.seq++
	l.tree.ReplaceOrInsert(ledgerChange{t: ev.StartTime, seq: l.seq, delta: ev.RxPowerW})
	l.seq++
	l.tree.ReplaceOrInsert(ledgerChange{t: ev.EndTime, seq: l.seq, delta: -ev.RxPowerW})
	if !rxing {
		l.collapseBefore(now)
	}
}

// NotifyRxEnd tells the ledger a reception just concluded, so history
// older than now can be collapsed again.
func (l *Ledger) NotifyRxEnd(now time.Duration) {
	l.collapseBefore(now.Seconds())
}

func (l *Ledger) collapseBefore(now float64) {
	var stale []ledgerChange
	l.tree.Ascend(func(item ledgerChange) bool {
		if item.t < now {
			stale = append(stale, item)
			return true
		}
		return false
	})
	for _, item := range stale {
		l.firstPower += item.delta
		l.tree.Delete(item)
	}
}

// ambientAt returns the total ambient power (firstPower plus every
// change at or before t) as of simulated time t.
func (l *Ledger) ambientAt(t float64) float64 {
	sum := l.firstPower
	l.tree.Ascend(func(item ledgerChange) bool {
		if item.t <= t {
			sum += item.delta
			return true
		}
		return false
	})
	return sum
}

// SNR returns signal / (F·k·T·B + noise), where noise is the aggregate
// *other* interference power in watts, not including the signal whose
// SNR is being computed.
func (l *Ledger) SNR(signalW, noiseW float64, preamble Preamble) float64 {
	thermal := dbToRatio(l.noiseFigureDB) * boltzmannK * referenceTemperatureK * preamble.BandwidthHz
	denom := thermal + noiseW
	if denom <= 0 {
		return math.Inf(1)
	}
	return signalW / denom
}

// Per computes the deterministic packet error rate for ev: walk every
// change point overlapping [ev.StartTime, ev.EndTime], split the event
// into a preamble segment (evaluated with the reference preamble) and
// a payload segment (evaluated with the event's own preamble), and for
// every sub-segment of constant interference test whether Shannon
// capacity during that sub-segment carries fewer bits than the nominal
// rate would attempt to send. Any failing sub-segment makes the whole
// frame a loss (PER 1.0); otherwise PER is 0.0.
func (l *Ledger) Per(ev PHYEvent) float64 {
	refPreamble := DefaultPreamble()
	preambleEnd := ev.StartTime + ev.Preamble.PreambleDuration
	if preambleEnd > ev.EndTime {
		preambleEnd = ev.EndTime
	}

	bounds := map[float64]struct{}{ev.StartTime: {}, preambleEnd: {}, ev.EndTime: {}}
	l.tree.Ascend(func(item ledgerChange) bool {
		if item.t > ev.StartTime && item.t < ev.EndTime {
			bounds[item.t] = struct{}{}
		}
		return item.t <= ev.EndTime
	})
	pts := make([]float64, 0, len(bounds))
	for t := range bounds {
		pts = append(pts, t)
	}
	sort.Float64s(pts)

	for i := 0; i+1 < len(pts); i++ {
		segStart, segEnd := pts[i], pts[i+1]
		dt := segEnd - segStart
		if dt <= 0 {
			continue
		}
		mid := (segStart + segEnd) / 2
		total := l.ambientAt(mid)
		otherInterference := total - ev.RxPowerW
		if otherInterference < 0 {
			otherInterference = 0
		}
		segPreamble := ev.Preamble
		if segEnd <= preambleEnd {
			segPreamble = refPreamble
		}
		snr := l.SNR(ev.RxPowerW, otherInterference, segPreamble)
		capacityBitsPerSec := segPreamble.BandwidthHz * math.Log2(1+snr)

		nominalBits := segPreamble.BitRateBps * dt
		capacityBits := capacityBitsPerSec * dt
		if nominalBits > capacityBits {
			return 1.0
		}
	}
	return 0.0
}

// EnergyDuration reports how long from now the ambient power stays at
// or above thresholdW: starting from firstPower plus the accumulated
// deltas, it finds the earliest future time at which the running sum
// drops below the threshold and returns that time as an offset from
// now. It returns 0 if the ambient power is already below threshold.
func (l *Ledger) EnergyDuration(now time.Duration, thresholdW float64) time.Duration {
	nowS := now.Seconds()
	running := l.ambientAt(nowS)
	if running < thresholdW {
		return 0
	}

	var crossing float64
	found := false
	l.tree.Ascend(func(item ledgerChange) bool {
		if item.t <= nowS {
			return true
		}
		running += item.delta
		if !found && running < thresholdW {
			crossing = item.t
			found = true
			return false
		}
		return true
	})
	if !found {
		return 0
	}
	return time.Duration((crossing - nowS) * float64(time.Second))
}

// dbToRatio converts a value in decibels to a linear ratio.
func dbToRatio(db float64) float64 { return math.Pow(10, db/10) }

// DbmToW converts dBm to watts.
func DbmToW(dbm float64) float64 { return math.Pow(10, dbm/10) / 1000 }

// WToDbm converts watts to dBm.
func WToDbm(w float64) float64 { return 10 * math.Log10(w*1000) }
