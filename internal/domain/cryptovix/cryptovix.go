// Package cryptovix simulates a crypto volatility index for demos.
// Its five-zone scale is independent of the evaluator's four-zone scale.
package cryptovix

import (
	"math"
	"math/rand"
	"sync"
)

// Zone is a Crypto VIX band
type Zone string

const (
	ZoneDormant Zone = "dormant"
	ZoneQuiet   Zone = "quiet"
	ZoneActive  Zone = "active"
	ZoneHeated  Zone = "heated"
	ZoneFrenzy  Zone = "frenzy"
)

// ZoneFor maps a value to its band: Dormant <=20, Quiet <=40, Active <=60, Heated <=80, Frenzy above
func ZoneFor(v float64) Zone {
	switch {
	case v <= 20:
		return ZoneDormant
	case v <= 40:
		return ZoneQuiet
	case v <= 60:
		return ZoneActive
	case v <= 80:
		return ZoneHeated
	default:
		return ZoneFrenzy
	}
}

// Reading is one simulated index value
type Reading struct {
	Value float64 `json:"value"`
	Zone  Zone    `json:"zone"`
}

// Simulator is a bounded random walk over [0,100]. Safe for concurrent use.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	value   float64
	maxStep float64
}

// NewSimulator starts the walk at start. The same seed always yields the same sequence.
func NewSimulator(seed int64, start, maxStep float64) *Simulator {
	if maxStep <= 0 {
		maxStep = 8
	}
	return &Simulator{
		rng:     rand.New(rand.NewSource(seed)),
		value:   clamp(start),
		maxStep: maxStep,
	}
}

// Current returns the last value without advancing
func (s *Simulator) Current() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reading{Value: s.value, Zone: ZoneFor(s.value)}
}

// Next advances the walk by one step of at most maxStep in either direction
func (s *Simulator) Next() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := (s.rng.Float64()*2 - 1) * s.maxStep
	s.value = clamp(math.Round((s.value+step)*10) / 10)
	return Reading{Value: s.value, Zone: ZoneFor(s.value)}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
