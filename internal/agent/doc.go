// Package agent runs one device's end of a SmartMotor pair: it owns the
// relay connection, drives the sync protocol, and shuttles values between
// the hardware and the wire.
//
// The Supervisor is a single cooperative loop. It dials the relay with
// exponential backoff, feeds received bytes through the frame assembler and
// envelope layer into the sync protocol, polls the local input, and writes
// whatever the protocol decides to publish. There are no reader/writer
// goroutines; one loop owns the socket and all protocol state, which keeps
// the failure modes simple on single-core device hardware.
//
// A front panel (or any other observer) watches the agent through
// Snapshot(), which returns a copy of the current status without touching
// protocol state.
package agent
