// Package device defines the hardware collaborator interface and provides
// simulated implementations for development and testing.
//
// The sync core only ever calls two things: Input.ReadValue to sample the
// local analog reading, and Output.Apply to drive the actuator with a
// remote value. Both must be fast and non-blocking; they are called
// synchronously from the connection loop. On a real device these map to an
// ADC read and a servo PWM write. On a development host the simulations
// stand in: SimKnob produces a smoothed random walk, SimServo records what
// it is told, and ScriptedInput replays a fixed sequence for deterministic
// tests.
package device
