// Package harness wires internal/sim's concrete scheduler to the
// csmaca model's Scheduler/EventHandleLike interfaces and assembles a
// runnable topology (mobility + propagation + channel + per-station
// PHY/MAC/NetDevice/Generator) from a simconfig.Scenario.
package harness

import (
	"fmt"
	"time"

	"github.com/arnet/csmaca/internal/csmaca"
	"github.com/arnet/csmaca/internal/metrics"
	"github.com/arnet/csmaca/internal/mobility"
	"github.com/arnet/csmaca/internal/sim"
	"github.com/arnet/csmaca/internal/simconfig"
)

// schedAdapter makes *sim.Scheduler satisfy csmaca.Scheduler. It is
// the only non-test code in this module that bridges the two
// packages' independent event-handle types (the csmaca tests carry
// their own copy).
type schedAdapter struct{ s *sim.Scheduler }

func (a schedAdapter) Now() time.Duration { return a.s.Now() }

func (a schedAdapter) Schedule(delay time.Duration, fn func()) csmaca.EventHandleLike {
	return a.s.Schedule(delay, fn)
}

func (a schedAdapter) Cancel(h csmaca.EventHandleLike) {
	if h == nil {
		return
	}
	he, ok := h.(sim.EventHandle)
	if !ok {
		return
	}
	a.s.Cancel(he)
}

// Node is one assembled station: its addressing, PHY, MAC, net device
// and (optional) traffic generator.
type Node struct {
	Name string
	Addr csmaca.Addr

	PHY *csmaca.Transceiver
	MAC *csmaca.MAC
	Dev *csmaca.NetDevice
	Gen *csmaca.Generator

	Metrics *metrics.Station
}

// Topology is a fully wired scenario ready to run on Scheduler.
type Topology struct {
	Scheduler *sim.Scheduler
	Channel   *csmaca.Channel
	Metrics   *metrics.Registry
	Nodes     []*Node
	byName    map[string]*Node
}

// Build assembles a Topology from sc. Station order in sc.Stations
// assigns node IDs 0..N-1, in file order, so PRNG stream assignment
// stays stable across otherwise-identical scenario files.
func Build(sc *simconfig.Scenario) (*Topology, error) {
	s := sim.NewScheduler()
	sched := schedAdapter{s}

	positions := make(map[mobility.NodeID]mobility.Position, len(sc.Stations))
	for i, st := range sc.Stations {
		positions[mobility.NodeID(i)] = mobility.Position{X: st.X, Y: st.Y}
	}
	mob := mobility.NewStatic(positions)
	ch := csmaca.NewChannel(mob)
	reg := metrics.NewRegistry()

	top := &Topology{Scheduler: s, Channel: ch, Metrics: reg, byName: make(map[string]*Node, len(sc.Stations))}

	for i, st := range sc.Stations {
		addr := nodeAddr(i)
		streamBase := sc.Seed + int64(i)*3
		phy := csmaca.NewTransceiver(uint32(i), addr, sched, streamBase+1)
		ch.Attach(phy)
		mac := csmaca.NewMAC(addr, phy, sched, streamBase+2)
		dev := csmaca.NewNetDevice(addr, mac)

		node := &Node{Name: st.Name, Addr: addr, PHY: phy, MAC: mac, Dev: dev, Metrics: reg.Station(st.Name)}
		mac.Metrics = node.Metrics
		top.Nodes = append(top.Nodes, node)
		top.byName[st.Name] = node
	}

	for i, st := range sc.Stations {
		if st.Traffic == nil {
			continue
		}
		node := top.Nodes[i]
		dest := csmaca.BroadcastAddr
		if st.Traffic.Dest != "broadcast" {
			target, ok := top.byName[st.Traffic.Dest]
			if !ok {
				return nil, fmt.Errorf("harness: station %q traffic references unknown dest %q", st.Name, st.Traffic.Dest)
			}
			dest = target.Addr
		}
		node.Gen = csmaca.NewGenerator(node.Dev, dest, 0x0800, st.Traffic.PayloadSize, st.Traffic.Interval, sched, sc.Seed+int64(i)*3+3)
		node.Gen.Start(st.Traffic.StartAt)
	}

	return top, nil
}

func nodeAddr(i int) csmaca.Addr {
	var a csmaca.Addr
	a[5] = byte(i)
	a[4] = byte(i >> 8)
	return a
}

// Run drains the topology's scheduler up to duration.
func (t *Topology) Run(duration time.Duration) {
	t.Scheduler.Run(duration)
}

// ByName looks up an assembled node by its scenario station name.
func (t *Topology) ByName(name string) (*Node, bool) {
	n, ok := t.byName[name]
	return n, ok
}
