package simconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidScenario(t *testing.T) {
	path := writeScenario(t, `
name: two-node
duration: 1s
seed: 7
stations:
  - name: a
    x: 0
    y: 0
    traffic:
      dest: b
      payload_size: 200
      interval: 10ms
  - name: b
    x: 47
    y: 0
`)
	sc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "two-node" || sc.Duration != time.Second || len(sc.Stations) != 2 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	if sc.Stations[0].Traffic == nil || sc.Stations[0].Traffic.Dest != "b" {
		t.Fatalf("expected station a to carry traffic to b, got %+v", sc.Stations[0].Traffic)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeScenario(t, `
name: x
duration: 1s
stations:
  - name: a
    x: 0
    y: 0
  - name: b
    x: 1
    y: 0
bogus_field: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown top-level field")
	}
}

func TestLoadRejectsDuplicateStationNames(t *testing.T) {
	path := writeScenario(t, `
name: x
duration: 1s
stations:
  - name: a
    x: 0
    y: 0
  - name: a
    x: 1
    y: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for duplicate station names")
	}
}

func TestLoadRejectsUnresolvedTrafficDest(t *testing.T) {
	path := writeScenario(t, `
name: x
duration: 1s
stations:
  - name: a
    x: 0
    y: 0
    traffic:
      dest: nope
      payload_size: 10
      interval: 1ms
  - name: b
    x: 1
    y: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unresolved traffic destination")
	}
}

func TestLoadRejectsTooFewStations(t *testing.T) {
	path := writeScenario(t, `
name: x
duration: 1s
stations:
  - name: a
    x: 0
    y: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for fewer than 2 stations")
	}
}
