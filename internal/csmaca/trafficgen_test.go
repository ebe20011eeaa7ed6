package csmaca

import (
	"testing"
	"time"

	"github.com/arnet/csmaca/internal/mobility"
	"github.com/arnet/csmaca/internal/sim"
)

func TestGeneratorSendsAndReschedules(t *testing.T) {
	s := sim.NewScheduler()
	positions := map[mobility.NodeID]mobility.Position{
		0: {X: 0, Y: 0},
		1: {X: 10, Y: 0},
	}
	_, stations := newTestTopology(t, s, positions)
	a, b := byID(stations, 0), byID(stations, 1)

	g := NewGenerator(a.dev, b.addr, 0x0800, 64, 2*time.Millisecond, schedAdapter{s}, 42)
	g.Start(0)

	s.Run(20 * time.Millisecond)

	if g.Sent() == 0 {
		t.Fatal("expected generator to have sent at least one packet")
	}
	if len(b.rx) == 0 {
		t.Fatal("expected receiver to have decoded at least one generated packet")
	}
}

func TestGeneratorStopCancelsFurtherSends(t *testing.T) {
	s := sim.NewScheduler()
	positions := map[mobility.NodeID]mobility.Position{
		0: {X: 0, Y: 0},
		1: {X: 10, Y: 0},
	}
	_, stations := newTestTopology(t, s, positions)
	a, b := byID(stations, 0), byID(stations, 1)

	g := NewGenerator(a.dev, b.addr, 0x0800, 64, 2*time.Millisecond, schedAdapter{s}, 7)
	g.Start(5 * time.Millisecond)
	g.Stop()

	s.Run(20 * time.Millisecond)

	if g.Sent() != 0 {
		t.Fatalf("expected no sends after Stop before the first fire, got %d", g.Sent())
	}
}
