package agent

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/channel"
	"github.com/tuftsceeo/smartmotor/internal/config"
	"github.com/tuftsceeo/smartmotor/internal/device"
	"github.com/tuftsceeo/smartmotor/internal/logging"
	"github.com/tuftsceeo/smartmotor/internal/peersync"
	"github.com/tuftsceeo/smartmotor/internal/protocol"
)

// maxBackoff caps the exponential reconnect delay
const maxBackoff = 30 * time.Second

// stableSessionDuration is how long a session must stay up before the
// reconnect budget is forgiven. A relay that accepts the upgrade and then
// drops the link burns attempts like a failed dial, so it cannot produce a
// zero-delay redial storm.
const stableSessionDuration = 30 * time.Second

// readBufferSize is the per-read chunk size; frames larger than this just
// take multiple reads to assemble
const readBufferSize = 4096

// ConnState is the supervisor's connection lifecycle state
type ConnState int

const (
	// StateDisconnected means no relay link exists
	StateDisconnected ConnState = iota
	// StateConnecting means a dial or upgrade is in flight
	StateConnecting
	// StateConnected means the relay link is established
	StateConnected
)

// String returns a human-readable name for the connection state
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Status is a point-in-time copy of the agent's externally visible state,
// safe to hand to another goroutine
type Status struct {
	Conn         ConnState
	ClientID     string
	RemoteAddr   string
	Sync         peersync.State
	PartnerAlive bool
	LocalSeq     uint32
	RemoteSeq    uint32
	LastSent     float64
	HaveSent     bool
	LastApplied  float64
	HaveApplied  bool
	RateUsed     int
	RateCapacity int
	DialAttempt  int
	LastError    string
}

// Supervisor owns one device's relay connection and sync protocol. Create
// it with New and drive it with Run; everything else is observation.
type Supervisor struct {
	settings *config.Settings
	input    device.Input // nil for a listen-only device
	sync     *peersync.Protocol

	parkOnce sync.Once

	mu           sync.Mutex
	status       Status
	resyncWanted bool
}

// New builds a supervisor for the given settings. input may be nil when the
// device has no local value source (a receiver publishes only heartbeats);
// output may be nil when nothing drives hardware.
func New(settings *config.Settings, input device.Input, output device.Output) *Supervisor {
	var apply peersync.ApplyFunc
	if output != nil {
		apply = output.Apply
	}

	sp := peersync.NewProtocol(peersync.Config{
		PublishTopic:      settings.PublishTopic(),
		ListenTopic:       settings.ListenTopic(),
		ChangeThreshold:   settings.Sync.ChangeThreshold,
		HeartbeatInterval: settings.Sync.HeartbeatInterval(),
		PartnerTimeout:    settings.Sync.PartnerTimeout(),
		SettleDelay:       settings.Sync.SettleDelay(),
		ValueMin:          settings.Device.ValueMin,
		ValueMax:          settings.Device.ValueMax,
		ValueCenter:       settings.Device.ValueCenter,
		MaxPerWindow:      settings.Sync.MaxMessagesPerWindow,
		WindowLength:      settings.Sync.WindowLength(),
	}, apply)

	return &Supervisor{
		settings: settings,
		input:    input,
		sync:     sp,
	}
}

// RequestResync asks the running supervisor to republish its value on the
// next loop tick. Safe from any goroutine; wired to the front panel's r key.
func (s *Supervisor) RequestResync() {
	s.mu.Lock()
	s.resyncWanted = true
	s.mu.Unlock()
}

// Snapshot returns a copy of the current agent status
func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run connects to the relay and services the link until ctx is cancelled or
// the reconnect attempt budget is spent. On the way out the actuator is
// parked at its center position so a crash or shutdown never leaves the
// hardware wherever the last message put it.
func (s *Supervisor) Run(ctx context.Context) error {
	defer func() {
		s.park()
		s.setConn(StateDisconnected)
	}()

	dialCfg := protocol.DialConfig{
		Host:   s.settings.Relay.Host,
		Port:   s.settings.Relay.Port,
		Path:   s.settings.Relay.Path,
		TLS:    s.settings.Relay.TLS,
		Origin: s.settings.Relay.Origin,
	}

	backoff := s.settings.Sync.ReconnectBackoff()
	attempts := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.setConn(StateConnecting)
		s.setAttempt(attempts + 1)

		conn, leftover, err := protocol.Handshake(ctx, dialCfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempts++
			s.noteError(err)
			logging.Warn("Relay dial failed",
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", s.settings.Sync.MaxReconnectAttempts),
				zap.String("relay", dialCfg.URL()),
				zap.String("cause", protocol.GetShortErrorMessage(err)),
			)
			if attempts >= s.settings.Sync.MaxReconnectAttempts {
				s.setConn(StateDisconnected)
				exhausted := protocol.NewReconnectExhaustedError(attempts, err)
				logging.Error("Reconnect budget spent",
					zap.Error(exhausted),
					zap.String("hint", protocol.GetTroubleshootingHint(err)),
				)
				return exhausted
			}
			if !s.sleepBackoff(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}

		remoteAddr := conn.RemoteAddr().String()
		logging.LogConnection(remoteAddr, "established")
		s.setRemote(remoteAddr)

		sessionStart := time.Now()
		err = s.session(ctx, conn, leftover)

		if ctx.Err() != nil {
			// Shutdown: the actuator is commanded to center while the link
			// is still open, then the socket closes
			s.park()
			_ = conn.Close()
			s.sync.ConnectionLost()
			return nil
		}

		_ = conn.Close()
		s.sync.ConnectionLost()
		s.setConn(StateDisconnected)
		s.publishStatus()

		if err != nil {
			s.noteError(err)
			logging.LogConnection(remoteAddr, "lost")
			logging.Warn("Relay link lost, reconnecting",
				zap.String("cause", protocol.GetShortErrorMessage(err)),
			)
		} else {
			logging.LogConnection(remoteAddr, "closed")
		}

		// Only a session that stayed up earns a fresh budget. Short-lived
		// sessions count against it, and every redial waits out the backoff
		// first; without that a relay dropping the link right after the
		// upgrade would be redialed in a tight loop forever.
		if time.Since(sessionStart) >= stableSessionDuration {
			attempts = 0
			backoff = s.settings.Sync.ReconnectBackoff()
		} else {
			attempts++
			if attempts >= s.settings.Sync.MaxReconnectAttempts {
				cause := err
				if cause == nil {
					cause = fmt.Errorf("relay closed the link %d times in a row", attempts)
				}
				exhausted := protocol.NewReconnectExhaustedError(attempts, cause)
				logging.Error("Reconnect budget spent",
					zap.Error(exhausted),
					zap.String("hint", protocol.GetTroubleshootingHint(exhausted)),
				)
				return exhausted
			}
		}
		if !s.sleepBackoff(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff)
	}
}

// sleepBackoff waits out one backoff delay; false means ctx was cancelled
func (s *Supervisor) sleepBackoff(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// park drives the actuator to center exactly once per Run
func (s *Supervisor) park() {
	s.parkOnce.Do(func() {
		if err := s.sync.Park(); err != nil {
			logging.Warn("Failed to park actuator at center", zap.Error(err))
		}
	})
}

// session services one established connection until the link fails, the
// relay closes, the idle timeout fires, or ctx is cancelled. A nil return
// means an orderly close; errors mean the link dropped mid-stream.
func (s *Supervisor) session(ctx context.Context, conn net.Conn, leftover []byte) error {
	maxMsg := s.settings.Sync.MaxMessageSize
	asm := protocol.NewAssembler(maxMsg, 4*maxMsg)

	now := time.Now()
	s.sync.ConnectionEstablished(now)
	s.setConn(StateConnected)
	lastInbound := now

	// Bytes that rode in on the same segment as the 101 response are
	// already frame stream, usually the relay's welcome
	if len(leftover) > 0 {
		s.dispatchFrames(asm.Feed(leftover), &lastInbound)
	}

	buf := make([]byte, readBufferSize)
	poll := s.settings.Sync.PollInterval()
	idleLimit := s.settings.Sync.MessageTimeout()

	for {
		if ctx.Err() != nil {
			s.writeFrame(conn, protocol.OpcodeClose, nil)
			return nil
		}

		if s.takeResyncRequest() {
			s.sync.ForceResync(time.Now())
		}

		// Bounded poll: a deadline expiry just means no bytes this tick
		_ = conn.SetReadDeadline(time.Now().Add(poll))
		n, err := conn.Read(buf)
		if n > 0 {
			lastInbound = time.Now()
			s.dispatchFrames(asm.Feed(buf[:n]), &lastInbound)
		}
		if err != nil && !protocol.IsWouldBlock(err) {
			return protocol.NewTransientIOError("read", err)
		}

		// A Close from the relay latches teardown: nothing further is
		// written, not even pongs for pings that rode in the same read
		if asm.CloseReceived() {
			return nil
		}

		// Answer pings promptly so the relay never times us out
		for _, payload := range asm.PendingPongs() {
			if werr := s.writeFrame(conn, protocol.OpcodePong, payload); werr != nil {
				return werr
			}
		}

		now = time.Now()
		if now.Sub(lastInbound) > idleLimit {
			return protocol.NewIdleTimeoutError(idleLimit)
		}

		if s.input != nil {
			if ev, ok := s.sync.OnLocalValue(now, s.input.ReadValue()); ok {
				if werr := s.publish(conn, ev); werr != nil {
					return werr
				}
			}
		}

		if ev, ok := s.sync.HeartbeatDue(now); ok {
			if werr := s.publish(conn, ev); werr != nil {
				return werr
			}
		}

		s.sync.CheckPartner(now)
		s.publishStatus()
	}
}

// dispatchFrames routes assembled data frames through the envelope layer
// into the sync protocol
func (s *Supervisor) dispatchFrames(frames []protocol.Frame, lastInbound *time.Time) {
	for _, frame := range frames {
		ev := channel.Unwrap(frame)
		switch ev.Kind {
		case channel.EventWelcome:
			*lastInbound = time.Now()
			s.setClientID(ev.ClientID)
			logging.Info("Relay assigned client id",
				zap.String("client_id", ev.ClientID),
			)
		case channel.EventTopic:
			*lastInbound = time.Now()
			s.sync.OnRemoteEvent(time.Now(), ev.Topic)
		case channel.EventIgnored:
			// Nothing usable; already logged at debug by the envelope layer
		}
	}
}

// publish wraps and writes one topic event
func (s *Supervisor) publish(conn net.Conn, ev channel.TopicEvent) error {
	payload, err := channel.Wrap(ev.Topic, ev.Value)
	if err != nil {
		return err
	}
	logging.LogTopicEvent("publish", ev.Topic, ev.Value)
	return s.writeFrame(conn, protocol.OpcodeText, payload)
}

// writeFrame encodes and writes one masked frame. Write failures surface as
// transient I/O errors so the outer loop reconnects.
func (s *Supervisor) writeFrame(conn net.Conn, opcode byte, payload []byte) error {
	frame, err := protocol.EncodeFrame(opcode, payload, true, s.settings.Sync.MaxMessageSize)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.settings.Sync.MessageTimeout()))
	if _, err := conn.Write(frame); err != nil {
		return protocol.NewTransientIOError("write", err)
	}
	return nil
}

func (s *Supervisor) takeResyncRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := s.resyncWanted
	s.resyncWanted = false
	return wanted
}

// publishStatus refreshes the sync-protocol half of the status snapshot.
// Only the supervisor loop calls this, so reading the protocol is safe.
func (s *Supervisor) publishStatus() {
	localSeq, remoteSeq := s.sync.Sequences()
	lastSent, haveSent := s.sync.LastSent()
	lastApplied, haveApplied := s.sync.LastApplied()
	used, capacity := s.sync.RateUsage()

	s.mu.Lock()
	s.status.Sync = s.sync.State()
	s.status.PartnerAlive = s.sync.PartnerAlive()
	s.status.LocalSeq = localSeq
	s.status.RemoteSeq = remoteSeq
	s.status.LastSent = lastSent
	s.status.HaveSent = haveSent
	s.status.LastApplied = lastApplied
	s.status.HaveApplied = haveApplied
	s.status.RateUsed = used
	s.status.RateCapacity = capacity
	s.mu.Unlock()
}

func (s *Supervisor) setConn(state ConnState) {
	s.mu.Lock()
	s.status.Conn = state
	s.mu.Unlock()
}

func (s *Supervisor) setRemote(addr string) {
	s.mu.Lock()
	s.status.RemoteAddr = addr
	s.mu.Unlock()
}

func (s *Supervisor) setClientID(id string) {
	s.mu.Lock()
	s.status.ClientID = id
	s.mu.Unlock()
}

func (s *Supervisor) setAttempt(n int) {
	s.mu.Lock()
	s.status.DialAttempt = n
	s.mu.Unlock()
}

func (s *Supervisor) noteError(err error) {
	s.mu.Lock()
	s.status.LastError = protocol.GetShortErrorMessage(err)
	s.mu.Unlock()
}
