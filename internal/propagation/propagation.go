// Package propagation supplies the loss and delay models the channel
// consults on every send: given two positions, a received power and a
// one-way delay.
package propagation

import (
	"math"
	"time"

	"github.com/arnet/csmaca/internal/mobility"
)

// SpeedOfLightMPerS is c, used by the default delay model.
const SpeedOfLightMPerS = 299_792_458.0

// LossModel computes the received power, in dBm, at b when a transmits
// at txPowerDbm from a.
type LossModel interface {
	ReceivedPowerDbm(txPowerDbm float64, a, b mobility.Position) float64
}

// DelayModel computes the one-way propagation delay between a and b.
type DelayModel interface {
	Delay(a, b mobility.Position) time.Duration
}

// LogDistance is the default loss model: free-space loss at a reference
// distance, extended by a configurable path-loss exponent beyond it.
// This is the standard log-distance model used throughout 802.11
// link-layer simulators.
type LogDistance struct {
	Exponent        float64 // default 3.0
	ReferenceDistM  float64 // default 1.0 m
	ReferenceLossDB float64 // default 46.6777 dB, free-space loss at 1 m / 5.15 GHz
}

// NewLogDistance returns a LogDistance model with the defaults named
// above.
func NewLogDistance() *LogDistance {
	return &LogDistance{
		Exponent:        3.0,
		ReferenceDistM:  1.0,
		ReferenceLossDB: 46.6777,
	}
}

// ReceivedPowerDbm implements LossModel.
func (l *LogDistance) ReceivedPowerDbm(txPowerDbm float64, a, b mobility.Position) float64 {
	d := mobility.Distance(a, b)
	if d <= l.ReferenceDistM {
		return txPowerDbm - l.ReferenceLossDB
	}
	pathLossDb := l.ReferenceLossDB + 10*l.Exponent*math.Log10(d/l.ReferenceDistM)
	return txPowerDbm - pathLossDb
}

// ConstantSpeed computes propagation delay as distance / c.
type ConstantSpeed struct {
	SpeedMPerS float64 // default SpeedOfLightMPerS
}

// NewConstantSpeed returns a ConstantSpeed delay model using c.
func NewConstantSpeed() *ConstantSpeed {
	return &ConstantSpeed{SpeedMPerS: SpeedOfLightMPerS}
}

// Delay implements DelayModel.
func (c *ConstantSpeed) Delay(a, b mobility.Position) time.Duration {
	d := mobility.Distance(a, b)
	secs := d / c.SpeedMPerS
	return time.Duration(secs * float64(time.Second))
}
