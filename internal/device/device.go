package device

import (
	"math/rand"
	"sync"
)

// Input is the local analog reading, e.g. a potentiometer angle. ReadValue
// must return quickly; it is called once per poll turn.
type Input interface {
	ReadValue() float64
}

// Output drives the actuator with a value received from the partner. Apply
// must not block beyond a bounded duration.
type Output interface {
	Apply(value float64) error
}

// SimKnob simulates a potentiometer being slowly turned: a random walk with
// momentum, bounded to [Min, Max]. Deterministic for a given seed.
type SimKnob struct {
	mu       sync.Mutex
	rng      *rand.Rand
	value    float64
	velocity float64
	min, max float64
}

// NewSimKnob creates a simulated knob starting at the middle of its range
func NewSimKnob(min, max float64, seed int64) *SimKnob {
	if max <= min {
		min, max = 0, 180
	}
	return &SimKnob{
		rng:   rand.New(rand.NewSource(seed)),
		value: (min + max) / 2,
		min:   min,
		max:   max,
	}
}

// ReadValue advances the walk one step and returns the new position
func (k *SimKnob) ReadValue() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	// Momentum keeps the knob moving in sweeps instead of jittering
	k.velocity += (k.rng.Float64() - 0.5) * 2
	if k.velocity > 4 {
		k.velocity = 4
	}
	if k.velocity < -4 {
		k.velocity = -4
	}

	k.value += k.velocity
	if k.value < k.min {
		k.value = k.min
		k.velocity = -k.velocity / 2
	}
	if k.value > k.max {
		k.value = k.max
		k.velocity = -k.velocity / 2
	}
	return k.value
}

// ScriptedInput replays a fixed sequence of readings, then repeats the last
// one forever. Used by tests that need exact value transitions.
type ScriptedInput struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewScriptedInput creates an input that yields the given values in order
func NewScriptedInput(values ...float64) *ScriptedInput {
	return &ScriptedInput{values: values}
}

// ReadValue returns the next scripted reading
func (s *ScriptedInput) ReadValue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v
}

// SimServo records every value applied to it, standing in for a servo on a
// development host. Safe for concurrent use: tests read it while the
// connection loop writes.
type SimServo struct {
	mu      sync.Mutex
	applied []float64
}

// NewSimServo creates a servo simulation with no recorded positions
func NewSimServo() *SimServo {
	return &SimServo{}
}

// Apply records the commanded position
func (s *SimServo) Apply(value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, value)
	return nil
}

// Current returns the last commanded position; ok is false before the first
func (s *SimServo) Current() (value float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.applied) == 0 {
		return 0, false
	}
	return s.applied[len(s.applied)-1], true
}

// Applied returns a copy of every position commanded so far
func (s *SimServo) Applied() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.applied))
	copy(out, s.applied)
	return out
}

// NullOutput discards applied values; for controller-only devices
type NullOutput struct{}

// Apply does nothing
func (NullOutput) Apply(float64) error { return nil }

// EchoInput reads back the last position applied to a servo so a receiver
// can publish confirmations of what it actually did. Before anything has
// been applied it reports the fallback position.
type EchoInput struct {
	servo    *SimServo
	fallback float64
}

// NewEchoInput creates an echo input over the given servo
func NewEchoInput(servo *SimServo, fallback float64) *EchoInput {
	return &EchoInput{servo: servo, fallback: fallback}
}

// ReadValue returns the servo's last applied position
func (e *EchoInput) ReadValue() float64 {
	if v, ok := e.servo.Current(); ok {
		return v
	}
	return e.fallback
}
