// Package simconfig loads scenario definitions for csmaca-sim. A
// scenario is a YAML document describing node placement, traffic
// generators and run length; a topology cannot reasonably fit on a
// command line, so the CLI only points at scenario files.
package simconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Station describes one simulated node.
type Station struct {
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`

	// Traffic, if set, makes this station generate offered load
	// destined for Traffic.Dest.
	Traffic *Traffic `yaml:"traffic,omitempty"`
}

// Traffic configures a unicast or broadcast generator bound to a
// station (see internal/csmaca/trafficgen.go). Interval is the mean of
// the exponentially distributed gaps between sends.
type Traffic struct {
	Dest        string        `yaml:"dest"` // station name, or "broadcast"
	PayloadSize int           `yaml:"payload_size"`
	Interval    time.Duration `yaml:"interval"`
	StartAt     time.Duration `yaml:"start_at"`
}

// Scenario is the top-level document loaded from a scenario file.
type Scenario struct {
	Name     string        `yaml:"name"`
	Duration time.Duration `yaml:"duration"`
	Seed     int64         `yaml:"seed"`
	Stations []Station     `yaml:"stations"`
}

// Load parses and validates a scenario from a YAML file at path.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("simconfig: open %s: %w", path, err)
	}
	defer f.Close()

	var sc Scenario
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("simconfig: parse %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("simconfig: %s: %w", path, err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", sc.Duration)
	}
	if len(sc.Stations) < 2 {
		return fmt.Errorf("need at least 2 stations, got %d", len(sc.Stations))
	}
	seen := make(map[string]bool, len(sc.Stations))
	for _, st := range sc.Stations {
		if st.Name == "" {
			return fmt.Errorf("station missing name")
		}
		if seen[st.Name] {
			return fmt.Errorf("duplicate station name %q", st.Name)
		}
		seen[st.Name] = true
	}
	for _, st := range sc.Stations {
		if st.Traffic == nil || st.Traffic.Dest == "broadcast" {
			continue
		}
		if !seen[st.Traffic.Dest] {
			return fmt.Errorf("station %q traffic dest %q is not a declared station", st.Name, st.Traffic.Dest)
		}
	}
	return nil
}

// ResolveDest finds the named destination station, or reports ok=false
// for "broadcast" (handled specially by the caller).
func (sc *Scenario) ResolveDest(name string) (Station, bool) {
	for _, st := range sc.Stations {
		if st.Name == name {
			return st, true
		}
	}
	return Station{}, false
}
