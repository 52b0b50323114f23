// Package peersync keeps two devices' state consistent across a lossy relay
// link.
//
// A Protocol instance owns everything the sync layer knows: sequence
// counters, the last value sent and applied, partner liveness, and the
// outbound rate window. It is a pure state machine; the supervisor owns the
// socket and drives the protocol from a single loop.
//
// # Lifecycle
//
//	Idle → AwaitingResync → Synced
//
// Every fresh connection, reconnects included, enters AwaitingResync. The
// machine leaves it only after the current local value has been published at
// least once past the settle delay, which guarantees the partner never acts
// on pre-disconnect stale data. The settle delay keeps a flaky link from
// turning every reconnect flap into a resync storm.
//
// # Send Conditions
//
// A value is published when it moved by at least the change threshold, when
// a resync is pending and settled, or when nothing has been sent for a full
// partner timeout. Below the threshold the value is suppressed and the
// heartbeat timer carries liveness instead. This is what bounds network
// traffic while still guaranteeing eventual convergence.
//
// # Rate Limiting
//
// All outbound events, heartbeats included, consume a slot in a sliding
// RateWindow. A denied send is a deferral the caller retries on its next
// poll, never a silent drop.
package peersync
