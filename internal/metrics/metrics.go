// Package metrics counts per-station MAC/PHY events as Prometheus
// counters: a small set of labeled counters registered against a
// private registry so a batch run's scenarios do not collide.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Station is the counter set for a single simulated node.
type Station struct {
	addr string

	framesTx   *prometheus.CounterVec
	framesRx   *prometheus.CounterVec
	framesDrop *prometheus.CounterVec
	retries    prometheus.Counter
}

// Registry owns the private prometheus.Registerer for one simulation
// run and hands out per-station counter sets, keeping concurrent
// scenarios (run via golang.org/x/sync/errgroup in cmd/csmaca-sim)
// from sharing global counter state.
type Registry struct {
	reg        *prometheus.Registry
	framesTx   *prometheus.CounterVec
	framesRx   *prometheus.CounterVec
	framesDrop *prometheus.CounterVec
	retries    *prometheus.CounterVec
}

// NewRegistry builds an empty metrics registry for one run.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		framesTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csmaca_frames_tx_total",
			Help: "MAC frames transmitted, by station and frame type.",
		}, []string{"station", "type"}),
		framesRx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csmaca_frames_rx_total",
			Help: "MAC frames successfully decoded, by station and frame type.",
		}, []string{"station", "type"}),
		framesDrop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csmaca_frames_dropped_total",
			Help: "Queued payloads dropped after exhausting retries or a full queue, by station.",
		}, []string{"station", "reason"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csmaca_retries_total",
			Help: "RTS/DATA retransmissions, by station.",
		}, []string{"station"}),
	}
	reg.MustRegister(r.framesTx, r.framesRx, r.framesDrop, r.retries)
	return r
}

// Station returns the counter set labeled for addr.
func (r *Registry) Station(addr string) *Station {
	return &Station{
		addr:       addr,
		framesTx:   r.framesTx,
		framesRx:   r.framesRx,
		framesDrop: r.framesDrop,
		retries:    r.retries.WithLabelValues(addr),
	}
}

func (s *Station) TxFrame(frameType string) { s.framesTx.WithLabelValues(s.addr, frameType).Inc() }
func (s *Station) RxFrame(frameType string) { s.framesRx.WithLabelValues(s.addr, frameType).Inc() }
func (s *Station) Drop(reason string)       { s.framesDrop.WithLabelValues(s.addr, reason).Inc() }
func (s *Station) Retry()                   { s.retries.Inc() }

// Gather returns the registry's current metric families, suitable for
// a text-format dump at the end of a batch run.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
