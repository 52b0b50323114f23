package peersync

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/channel"
	"github.com/tuftsceeo/smartmotor/internal/logging"
)

// HeartbeatValue is the value published when nothing has changed but the
// partner needs proof the device is still there
const HeartbeatValue = "heartbeat"

// State is the sync machine's position in its lifecycle
type State int

const (
	// StateIdle means no relay connection; nothing is sent or received
	StateIdle State = iota
	// StateAwaitingResync means a fresh connection exists and the current
	// local value must be re-sent before the partner can be trusted with it
	StateAwaitingResync
	// StateSynced means the partner has seen the current value at least once
	// this connection epoch
	StateSynced
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResync:
		return "awaiting_resync"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// Config holds the tunable constants of the sync protocol. Zero values are
// replaced by conservative defaults in NewProtocol.
type Config struct {
	PublishTopic string // where this device publishes, e.g. /controller/status
	ListenTopic  string // the partner's publish topic

	ChangeThreshold   float64       // minimum |Δvalue| that forces a publish
	HeartbeatInterval time.Duration // max silence before a heartbeat publish
	PartnerTimeout    time.Duration // silence from the partner before it is stale
	SettleDelay       time.Duration // wait after reconnect before resync counts

	ValueMin    float64 // clamp floor for values in either direction
	ValueMax    float64 // clamp ceiling
	ValueCenter float64 // safe position commanded at shutdown

	MaxPerWindow int           // outbound send cap per window
	WindowLength time.Duration // rate window length
}

// normalize fills unset config fields with defaults matching a classroom
// servo setup
func (c *Config) normalize() {
	if c.ChangeThreshold <= 0 {
		c.ChangeThreshold = 3
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.PartnerTimeout <= 0 {
		c.PartnerTimeout = 15 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.ValueMax <= c.ValueMin {
		c.ValueMin = 0
		c.ValueMax = 180
	}
	if c.ValueCenter < c.ValueMin || c.ValueCenter > c.ValueMax {
		c.ValueCenter = (c.ValueMin + c.ValueMax) / 2
	}
	if c.WindowLength <= 0 {
		c.WindowLength = time.Second
	}
}

// ApplyFunc drives the hardware collaborator with a remote value. It must be
// fast and non-blocking; it is called synchronously from the event path.
type ApplyFunc func(value float64) error

// Protocol is the synchronization state machine. It decides what to publish
// and when, tracks the partner's liveness, and enforces the outbound rate
// cap. It owns all its state and must only be driven from one goroutine.
//
// The protocol never touches the socket. Callers ask it for events to send
// (OnLocalValue, HeartbeatDue) and feed it events received (OnRemoteEvent);
// the supervisor owns the wire.
type Protocol struct {
	cfg    Config
	apply  ApplyFunc
	window RateWindow

	state    State
	resyncAt time.Time // resync may complete once now >= resyncAt

	localSeq  uint32
	remoteSeq uint32

	lastSentValue float64
	haveSent      bool // false until the first value publish ever
	lastSentAt    time.Time

	lastReceivedAt time.Time
	lastApplied    float64
	haveApplied    bool
	partnerAlive   bool
}

// NewProtocol creates an idle protocol instance. apply may be nil for a
// device that only publishes.
func NewProtocol(cfg Config, apply ApplyFunc) *Protocol {
	cfg.normalize()
	return &Protocol{
		cfg:    cfg,
		apply:  apply,
		window: NewRateWindow(cfg.MaxPerWindow, cfg.WindowLength),
		state:  StateIdle,
	}
}

// ConnectionEstablished is called by the supervisor after every successful
// handshake, first connection and reconnects alike. The sequence counter
// restarts for the new epoch and the machine enters AwaitingResync so the
// partner is guaranteed a fresh value before anything else matters.
func (p *Protocol) ConnectionEstablished(now time.Time) {
	p.state = StateAwaitingResync
	p.resyncAt = now.Add(p.cfg.SettleDelay)
	p.localSeq = 0
	p.window.Reset(now)
	logging.Debug("Sync epoch started",
		zap.Time("resync_ready_at", p.resyncAt),
	)
}

// ConnectionLost returns the machine to idle. Received-side state is kept:
// partner liveness keeps aging on its own clock rather than resetting.
func (p *Protocol) ConnectionLost() {
	p.state = StateIdle
}

// ForceResync re-arms an immediate resync on a live connection; wired to the
// front panel's manual resync key
func (p *Protocol) ForceResync(now time.Time) {
	if p.state == StateIdle {
		return
	}
	p.state = StateAwaitingResync
	p.resyncAt = now
}

// OnLocalValue offers the current hardware reading. It returns an event to
// publish when one of the send conditions holds:
//
//   - the value moved by at least the change threshold since the last send
//   - a resync is pending and the settle delay has elapsed
//   - nothing has been sent for a full partner timeout (keep-alive-by-data)
//
// A false return means nothing needs to go out, or the rate window denied
// the slot; the caller re-offers on its next poll either way.
func (p *Protocol) OnLocalValue(now time.Time, value float64) (channel.TopicEvent, bool) {
	if p.state == StateIdle {
		return channel.TopicEvent{}, false
	}

	v := p.Clamp(value)

	emit := false
	if p.haveSent && math.Abs(v-p.lastSentValue) >= p.cfg.ChangeThreshold {
		emit = true
	}
	if p.state == StateAwaitingResync && !now.Before(p.resyncAt) {
		emit = true
	}
	if p.haveSent && now.Sub(p.lastSentAt) >= p.cfg.PartnerTimeout {
		emit = true
	}
	if !emit {
		return channel.TopicEvent{}, false
	}

	if !p.TrySend(now) {
		logging.Debug("Send deferred by rate window",
			zap.Float64("value", v),
		)
		return channel.TopicEvent{}, false
	}

	p.localSeq++
	p.lastSentValue = v
	p.haveSent = true
	p.lastSentAt = now
	if p.state == StateAwaitingResync && !now.Before(p.resyncAt) {
		p.state = StateSynced
		logging.Info("Resync complete",
			zap.Float64("value", v),
			zap.Uint32("local_seq", p.localSeq),
		)
	}

	return channel.TopicEvent{Topic: p.cfg.PublishTopic, Value: v}, true
}

// HeartbeatDue emits a heartbeat when nothing has gone out for a full
// heartbeat interval. Heartbeats ride the same rate window as data.
func (p *Protocol) HeartbeatDue(now time.Time) (channel.TopicEvent, bool) {
	if p.state == StateIdle {
		return channel.TopicEvent{}, false
	}

	last := p.lastSentAt
	if last.IsZero() {
		// Nothing sent this process lifetime; measure from resync arming
		last = p.resyncAt
	}
	if now.Sub(last) < p.cfg.HeartbeatInterval {
		return channel.TopicEvent{}, false
	}

	if !p.TrySend(now) {
		return channel.TopicEvent{}, false
	}

	p.localSeq++
	p.lastSentAt = now
	return channel.TopicEvent{Topic: p.cfg.PublishTopic, Value: HeartbeatValue}, true
}

// OnRemoteEvent feeds one unwrapped topic event from the relay. Every event
// proves the partner is alive. Numeric values on the listen topic are
// clamped and handed to the hardware callback; anything else (heartbeats,
// foreign topics, malformed values) only refreshes liveness.
func (p *Protocol) OnRemoteEvent(now time.Time, ev channel.TopicEvent) {
	p.remoteSeq++
	p.partnerAlive = true
	p.lastReceivedAt = now

	if ev.Topic != p.cfg.ListenTopic {
		return
	}
	value, ok := channel.NumericValue(ev.Value)
	if !ok {
		return
	}

	v := p.Clamp(value)
	p.lastApplied = v
	p.haveApplied = true
	if p.apply == nil {
		return
	}
	if err := p.apply(v); err != nil {
		logging.Warn("Hardware apply failed",
			zap.Float64("value", v),
			zap.Error(err),
		)
	}
}

// CheckPartner recomputes partner liveness. Staleness never disconnects
// anything by itself; the display and downstream decisions react to it.
func (p *Protocol) CheckPartner(now time.Time) {
	if !p.partnerAlive {
		return
	}
	if p.lastReceivedAt.IsZero() || now.Sub(p.lastReceivedAt) > p.cfg.PartnerTimeout {
		p.partnerAlive = false
		logging.Info("Partner went stale",
			zap.Duration("timeout", p.cfg.PartnerTimeout),
		)
	}
}

// TrySend consumes one rate-window slot. A false return is a deferral, not
// an error: the caller holds the event and offers it again later.
func (p *Protocol) TrySend(now time.Time) bool {
	return p.window.Allow(now)
}

// Clamp bounds a value to the configured range. Out-of-range values from a
// corrupted message are pulled to the nearest bound, never rejected, so the
// actuator stays in a safe position.
func (p *Protocol) Clamp(value float64) float64 {
	if value < p.cfg.ValueMin {
		return p.cfg.ValueMin
	}
	if value > p.cfg.ValueMax {
		return p.cfg.ValueMax
	}
	return value
}

// Center returns the configured safe position for shutdown
func (p *Protocol) Center() float64 {
	return p.cfg.ValueCenter
}

// Park drives the actuator to its center position. Called on shutdown so
// the hardware never stays wherever the last message put it. No-op for a
// device without an apply function.
func (p *Protocol) Park() error {
	if p.apply == nil {
		return nil
	}
	return p.apply(p.cfg.ValueCenter)
}

// State returns the machine's current lifecycle state
func (p *Protocol) State() State {
	return p.state
}

// PartnerAlive reports whether the partner has been heard from within the
// partner timeout
func (p *Protocol) PartnerAlive() bool {
	return p.partnerAlive
}

// Sequences returns the local and remote sequence counters
func (p *Protocol) Sequences() (local, remote uint32) {
	return p.localSeq, p.remoteSeq
}

// LastSent returns the last published value; ok is false before the first
// publish
func (p *Protocol) LastSent() (value float64, ok bool) {
	return p.lastSentValue, p.haveSent
}

// LastApplied returns the last value handed to the hardware callback; ok is
// false before the first one
func (p *Protocol) LastApplied() (value float64, ok bool) {
	return p.lastApplied, p.haveApplied
}

// RateUsage exposes the rate window's consumed slots and cap for display
func (p *Protocol) RateUsage() (used, capacity int) {
	return p.window.Usage()
}
