package peersync

import (
	"testing"
	"time"

	"github.com/tuftsceeo/smartmotor/internal/channel"
)

func testConfig() Config {
	return Config{
		PublishTopic:      "/controller/status",
		ListenTopic:       "/receiver/status",
		ChangeThreshold:   3,
		HeartbeatInterval: 5 * time.Second,
		PartnerTimeout:    15 * time.Second,
		SettleDelay:       500 * time.Millisecond,
		ValueMin:          0,
		ValueMax:          180,
		ValueCenter:       90,
		MaxPerWindow:      0, // unlimited unless a test sets it
		WindowLength:      time.Second,
	}
}

// settle brings a fresh protocol through its initial resync so threshold
// tests start from a known last-sent value
func settle(t *testing.T, p *Protocol, now time.Time, value float64) time.Time {
	t.Helper()
	p.ConnectionEstablished(now)
	now = now.Add(501 * time.Millisecond)
	ev, ok := p.OnLocalValue(now, value)
	if !ok {
		t.Fatalf("resync publish did not fire after settle delay")
	}
	if ev.Value.(float64) != value {
		t.Fatalf("resync published %v, want %v", ev.Value, value)
	}
	return now
}

func TestOnLocalValue_Threshold(t *testing.T) {
	base := time.Now()

	tests := []struct {
		name     string
		value    float64
		wantSend bool
	}{
		{"no change", 90, false},
		{"below threshold", 92, false},
		{"just below", 92.9, false},
		{"exactly threshold", 93, true},
		{"above threshold", 100, true},
		{"down exactly threshold", 87, true},
		{"down below threshold", 88, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProtocol(testConfig(), nil)
			now := settle(t, p, base, 90)

			ev, ok := p.OnLocalValue(now.Add(10*time.Millisecond), tt.value)
			if ok != tt.wantSend {
				t.Fatalf("OnLocalValue(%v) sent=%v, want %v", tt.value, ok, tt.wantSend)
			}
			if ok && ev.Topic != "/controller/status" {
				t.Errorf("published to %q, want /controller/status", ev.Topic)
			}
			if ok && ev.Value.(float64) != tt.value {
				t.Errorf("published value %v, want %v", ev.Value, tt.value)
			}
		})
	}
}

// TestOnLocalValue_RepeatedIdenticalValues verifies the suppression that
// keeps an untouched knob off the network: one send per change, no matter
// how often the same reading is offered.
func TestOnLocalValue_RepeatedIdenticalValues(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	now := settle(t, p, time.Now(), 90)

	sends := 0
	for i := 0; i < 50; i++ {
		now = now.Add(50 * time.Millisecond)
		if _, ok := p.OnLocalValue(now, 93); ok {
			sends++
		}
	}
	if sends != 1 {
		t.Fatalf("50 identical offers produced %d sends, want 1", sends)
	}
}

func TestOnLocalValue_IdleNeverSends(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	if _, ok := p.OnLocalValue(time.Now(), 90); ok {
		t.Fatal("idle protocol published a value")
	}
	if _, ok := p.HeartbeatDue(time.Now().Add(time.Hour)); ok {
		t.Fatal("idle protocol published a heartbeat")
	}
}

// TestResyncAfterReconnect: a reconnect must push the current value to the
// partner once settled, even when the value never changed.
func TestResyncAfterReconnect(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	now := settle(t, p, time.Now(), 90)

	// Steady state: unchanged value stays quiet
	now = now.Add(time.Second)
	if _, ok := p.OnLocalValue(now, 90); ok {
		t.Fatal("unchanged value published in steady state")
	}

	// Drop and reconnect
	p.ConnectionLost()
	if p.State() != StateIdle {
		t.Fatalf("state after loss = %v, want idle", p.State())
	}
	now = now.Add(2 * time.Second)
	p.ConnectionEstablished(now)
	if p.State() != StateAwaitingResync {
		t.Fatalf("state after reconnect = %v, want awaiting_resync", p.State())
	}

	// Inside the settle delay the unchanged value still waits
	if _, ok := p.OnLocalValue(now.Add(100*time.Millisecond), 90); ok {
		t.Fatal("resync published before the settle delay elapsed")
	}

	// Past the settle delay it goes out despite no change
	now = now.Add(501 * time.Millisecond)
	ev, ok := p.OnLocalValue(now, 90)
	if !ok {
		t.Fatal("resync publish missing after settle delay")
	}
	if ev.Value.(float64) != 90 {
		t.Errorf("resync value = %v, want 90", ev.Value)
	}
	if p.State() != StateSynced {
		t.Errorf("state after resync = %v, want synced", p.State())
	}
}

// TestSequenceResetPerEpoch: the local counter restarts on every new
// connection and increases strictly within one.
func TestSequenceResetPerEpoch(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	now := settle(t, p, time.Now(), 90)

	for i, v := range []float64{100, 110, 120} {
		now = now.Add(20 * time.Millisecond)
		if _, ok := p.OnLocalValue(now, v); !ok {
			t.Fatalf("send %d suppressed", i)
		}
	}
	local, _ := p.Sequences()
	if local != 4 { // resync + three changes
		t.Fatalf("local seq = %d, want 4", local)
	}

	p.ConnectionLost()
	p.ConnectionEstablished(now.Add(time.Second))
	local, _ = p.Sequences()
	if local != 0 {
		t.Fatalf("local seq after reconnect = %d, want 0", local)
	}
}

// TestKeepAliveByData: even a quiet value is re-sent once a full partner
// timeout has passed since the last send.
func TestKeepAliveByData(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	now := settle(t, p, time.Now(), 90)

	if _, ok := p.OnLocalValue(now.Add(14*time.Second), 90); ok {
		t.Fatal("keep-alive fired before the partner timeout")
	}
	ev, ok := p.OnLocalValue(now.Add(15*time.Second), 90)
	if !ok {
		t.Fatal("keep-alive publish missing after partner timeout")
	}
	if ev.Value.(float64) != 90 {
		t.Errorf("keep-alive value = %v, want 90", ev.Value)
	}
}

// TestHeartbeat_ExactlyTwoInTwoIntervals matches the silence scenario: no
// value traffic for two heartbeat intervals produces exactly two heartbeats.
func TestHeartbeat_ExactlyTwoInTwoIntervals(t *testing.T) {
	cfg := testConfig()
	cfg.PartnerTimeout = time.Hour // keep the data keep-alive out of the way
	p := NewProtocol(cfg, nil)

	p.ConnectionEstablished(time.Now())
	start := time.Now().Add(501 * time.Millisecond)
	now := start
	if _, ok := p.OnLocalValue(now, 90); !ok {
		t.Fatal("resync publish missing")
	}

	heartbeats := 0
	for elapsed := time.Duration(0); elapsed <= 10*time.Second; elapsed += 100 * time.Millisecond {
		now = start.Add(elapsed)
		if _, ok := p.OnLocalValue(now, 90); ok {
			t.Fatalf("value publish at %v with unchanged value", elapsed)
		}
		if ev, ok := p.HeartbeatDue(now); ok {
			heartbeats++
			if ev.Value != HeartbeatValue {
				t.Fatalf("heartbeat value = %v, want %q", ev.Value, HeartbeatValue)
			}
		}
	}
	if heartbeats != 2 {
		t.Fatalf("got %d heartbeats in 2 intervals, want 2", heartbeats)
	}
}

func TestHeartbeat_SuppressedByDataTraffic(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	now := settle(t, p, time.Now(), 90)

	// Data every 4 seconds keeps the 5-second heartbeat timer from firing
	for i := 0; i < 5; i++ {
		now = now.Add(4 * time.Second)
		if _, ok := p.OnLocalValue(now, 90+float64((i+1)*10)); !ok {
			t.Fatalf("data send %d suppressed", i)
		}
		if _, ok := p.HeartbeatDue(now); ok {
			t.Fatalf("heartbeat fired despite data traffic at round %d", i)
		}
	}
}

func TestOnRemoteEvent_AppliesListenTopicOnly(t *testing.T) {
	var applied []float64
	p := NewProtocol(testConfig(), func(v float64) error {
		applied = append(applied, v)
		return nil
	})
	now := time.Now()
	p.ConnectionEstablished(now)

	tests := []struct {
		name      string
		ev        channel.TopicEvent
		wantApply []float64
	}{
		{"numeric on listen topic", channel.TopicEvent{Topic: "/receiver/status", Value: float64(93)}, []float64{93}},
		{"own topic ignored", channel.TopicEvent{Topic: "/controller/status", Value: float64(45)}, nil},
		{"heartbeat not applied", channel.TopicEvent{Topic: "/receiver/status", Value: "heartbeat"}, nil},
		{"object not applied", channel.TopicEvent{Topic: "/receiver/status", Value: map[string]any{"v": 1}}, nil},
		{"nil not applied", channel.TopicEvent{Topic: "/receiver/status", Value: nil}, nil},
		{"out of range clamped", channel.TopicEvent{Topic: "/receiver/status", Value: float64(720)}, []float64{180}},
		{"negative clamped", channel.TopicEvent{Topic: "/receiver/status", Value: float64(-40)}, []float64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied = nil
			p.OnRemoteEvent(now, tt.ev)

			if len(applied) != len(tt.wantApply) {
				t.Fatalf("apply called %d times, want %d", len(applied), len(tt.wantApply))
			}
			for i := range applied {
				if applied[i] != tt.wantApply[i] {
					t.Errorf("applied[%d] = %v, want %v", i, applied[i], tt.wantApply[i])
				}
			}
		})
	}
}

// TestPartnerLiveness: any event from the partner marks it alive; silence
// past the partner timeout marks it stale without disconnecting anything.
func TestPartnerLiveness(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	now := time.Now()
	p.ConnectionEstablished(now)

	if p.PartnerAlive() {
		t.Fatal("partner alive before any event")
	}

	// Even a heartbeat on a foreign topic proves the link carries traffic
	p.OnRemoteEvent(now, channel.TopicEvent{Topic: "/receiver/status", Value: "heartbeat"})
	if !p.PartnerAlive() {
		t.Fatal("partner not alive after receiving an event")
	}

	p.CheckPartner(now.Add(14 * time.Second))
	if !p.PartnerAlive() {
		t.Fatal("partner stale before the timeout")
	}

	p.CheckPartner(now.Add(16 * time.Second))
	if p.PartnerAlive() {
		t.Fatal("partner still alive after the timeout")
	}
	if p.State() == StateIdle {
		t.Fatal("partner staleness must not tear down the connection state")
	}

	// The next event revives it
	p.OnRemoteEvent(now.Add(17*time.Second), channel.TopicEvent{Topic: "/receiver/status", Value: float64(10)})
	if !p.PartnerAlive() {
		t.Fatal("partner not revived by a new event")
	}

	_, remote := p.Sequences()
	if remote != 2 {
		t.Errorf("remote seq = %d, want 2", remote)
	}
}

// TestRateWindowCapsAllSends: data and heartbeats together never exceed the
// per-window cap, and denied sends are deferred rather than lost.
func TestRateWindowCapsAllSends(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerWindow = 3
	cfg.WindowLength = time.Second
	p := NewProtocol(cfg, nil)

	now := settle(t, p, time.Now(), 0) // consumes slot 1

	sends := 1
	for i := 0; i < 10; i++ {
		now = now.Add(10 * time.Millisecond)
		if _, ok := p.OnLocalValue(now, float64((i+1)*10)); ok {
			sends++
		}
	}
	if sends != 3 {
		t.Fatalf("window allowed %d sends, cap is 3", sends)
	}

	// The suppressed value goes out as soon as a fresh window opens
	now = now.Add(time.Second)
	if _, ok := p.OnLocalValue(now, 170); !ok {
		t.Fatal("deferred send did not fire in the next window")
	}
}

func TestForceResync(t *testing.T) {
	p := NewProtocol(testConfig(), nil)
	now := settle(t, p, time.Now(), 90)

	now = now.Add(time.Second)
	if _, ok := p.OnLocalValue(now, 90); ok {
		t.Fatal("unchanged value published before forced resync")
	}

	p.ForceResync(now)
	ev, ok := p.OnLocalValue(now.Add(time.Millisecond), 90)
	if !ok {
		t.Fatal("forced resync did not publish")
	}
	if ev.Value.(float64) != 90 {
		t.Errorf("forced resync value = %v, want 90", ev.Value)
	}
}

func TestClampAndCenter(t *testing.T) {
	p := NewProtocol(testConfig(), nil)

	tests := []struct {
		in   float64
		want float64
	}{
		{-1, 0},
		{0, 0},
		{90, 90},
		{180, 180},
		{181, 180},
		{99999, 180},
	}
	for _, tt := range tests {
		if got := p.Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if p.Center() != 90 {
		t.Errorf("Center() = %v, want 90", p.Center())
	}
}

func TestConfigDefaults(t *testing.T) {
	p := NewProtocol(Config{PublishTopic: "/a/status", ListenTopic: "/b/status"}, nil)

	if p.Clamp(200) != 180 {
		t.Errorf("default clamp ceiling = %v, want 180", p.Clamp(200))
	}
	if p.Center() != 90 {
		t.Errorf("default center = %v, want 90", p.Center())
	}
}

func TestPark(t *testing.T) {
	var parked []float64
	p := NewProtocol(testConfig(), func(v float64) error {
		parked = append(parked, v)
		return nil
	})

	if err := p.Park(); err != nil {
		t.Fatalf("Park() error = %v", err)
	}
	if len(parked) != 1 || parked[0] != 90 {
		t.Errorf("Park() applied %v, want one apply of 90", parked)
	}

	// A publish-only device parks without an apply function
	publisher := NewProtocol(testConfig(), nil)
	if err := publisher.Park(); err != nil {
		t.Errorf("Park() without apply error = %v", err)
	}
}
