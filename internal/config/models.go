package config

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies which side of the pair a device plays.
type Role string

const (
	// RoleController reads the analog input and publishes it
	RoleController Role = "controller"
	// RoleReceiver listens for the controller's value and drives the actuator
	RoleReceiver Role = "receiver"
)

// Settings represents the entire configuration file for a device agent.
type Settings struct {
	Version int            `yaml:"version"`
	Relay   RelaySettings  `yaml:"relay"`
	Device  DeviceSettings `yaml:"device"`
	Sync    SyncSettings   `yaml:"sync"`
}

// RelaySettings describes the channel relay endpoint.
type RelaySettings struct {
	Host   string `yaml:"host"`             // Relay hostname or IP
	Port   int    `yaml:"port"`             // Relay port (443 for the hosted relay, 8080 for the dev relay)
	Path   string `yaml:"path"`             // Channel path, e.g. /api/channels/classroom
	TLS    bool   `yaml:"tls"`              // Use wss:// (the hosted relay requires it)
	Origin string `yaml:"origin,omitempty"` // Origin header sent during the upgrade
}

// DeviceSettings describes this device's identity and value range.
type DeviceSettings struct {
	Name        string  `yaml:"name"`                   // Device name, used to derive the publish topic
	Role        Role    `yaml:"role"`                   // controller or receiver
	ListenTopic string  `yaml:"listen_topic,omitempty"` // Partner topic; derived from the role when empty
	ValueMin    float64 `yaml:"value_min"`              // Clamp floor (degrees)
	ValueMax    float64 `yaml:"value_max"`              // Clamp ceiling (degrees)
	ValueCenter float64 `yaml:"value_center"`           // Safe position commanded at shutdown
}

// SyncSettings holds the protocol timing and bounding constants. Durations
// are stored as milliseconds so the YAML stays unit-explicit.
type SyncSettings struct {
	ChangeThreshold      float64 `yaml:"change_threshold"`        // Minimum |Δvalue| that forces a publish
	HeartbeatIntervalMS  int     `yaml:"heartbeat_interval_ms"`   // Max outbound silence before a heartbeat
	PartnerTimeoutMS     int     `yaml:"partner_timeout_ms"`      // Partner silence before it shows stale
	SettleDelayMS        int     `yaml:"settle_delay_ms"`         // Wait after reconnect before resync counts
	MessageTimeoutMS     int     `yaml:"message_timeout_ms"`      // Relay-link silence before reconnecting
	PollIntervalMS       int     `yaml:"poll_interval_ms"`        // Socket read poll deadline
	MaxReconnectAttempts int     `yaml:"max_reconnect_attempts"`  // Give up after this many failed dials
	ReconnectBackoffMS   int     `yaml:"reconnect_backoff_ms"`    // Initial backoff, doubled per failure
	MaxMessageSize       int     `yaml:"max_message_size"`        // Frame payload cap in bytes
	MaxMessagesPerWindow int     `yaml:"max_messages_per_window"` // Outbound send cap per window
	WindowLengthMS       int     `yaml:"window_length_ms"`        // Rate window length
}

// NewSettings creates Settings with default values: a local dev relay and
// timing constants suited to a classroom servo pair.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Relay: RelaySettings{
			Host: "localhost",
			Port: 8080,
			Path: "/api/channels/classroom",
			TLS:  false,
		},
		Device: DeviceSettings{
			Name:        "controller",
			Role:        RoleController,
			ValueMin:    0,
			ValueMax:    180,
			ValueCenter: 90,
		},
		Sync: SyncSettings{
			ChangeThreshold:      3,
			HeartbeatIntervalMS:  5000,
			PartnerTimeoutMS:     15000,
			SettleDelayMS:        500,
			MessageTimeoutMS:     30000,
			PollIntervalMS:       50,
			MaxReconnectAttempts: 10,
			ReconnectBackoffMS:   1000,
			MaxMessageSize:       4096,
			MaxMessagesPerWindow: 10,
			WindowLengthMS:       1000,
		},
	}
}

// Validate checks the settings for values the agent cannot run with.
func (s *Settings) Validate() error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", s.Version)
	}
	if s.Relay.Host == "" {
		return fmt.Errorf("relay.host must be set")
	}
	if s.Relay.Port <= 0 || s.Relay.Port > 65535 {
		return fmt.Errorf("relay.port %d is out of range", s.Relay.Port)
	}
	if !strings.HasPrefix(s.Relay.Path, "/") {
		return fmt.Errorf("relay.path %q must start with /", s.Relay.Path)
	}
	if s.Device.Name == "" {
		return fmt.Errorf("device.name must be set")
	}
	if strings.ContainsAny(s.Device.Name, "/ ") {
		return fmt.Errorf("device.name %q must not contain slashes or spaces", s.Device.Name)
	}
	if s.Device.Role != RoleController && s.Device.Role != RoleReceiver {
		return fmt.Errorf("device.role %q must be %q or %q", s.Device.Role, RoleController, RoleReceiver)
	}
	if s.Device.ValueMax <= s.Device.ValueMin {
		return fmt.Errorf("device.value_max (%v) must be greater than value_min (%v)",
			s.Device.ValueMax, s.Device.ValueMin)
	}
	if s.Device.ValueCenter < s.Device.ValueMin || s.Device.ValueCenter > s.Device.ValueMax {
		return fmt.Errorf("device.value_center (%v) must lie within [%v, %v]",
			s.Device.ValueCenter, s.Device.ValueMin, s.Device.ValueMax)
	}
	if s.Sync.ChangeThreshold < 0 {
		return fmt.Errorf("sync.change_threshold must not be negative")
	}
	if s.Sync.MaxMessageSize <= 0 {
		return fmt.Errorf("sync.max_message_size must be positive")
	}
	if s.Sync.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("sync.max_reconnect_attempts must be positive")
	}
	return nil
}

// PublishTopic derives the topic this device publishes on from its name.
// The convention is fixed: /<name>/status.
func (s *Settings) PublishTopic() string {
	return "/" + s.Device.Name + "/status"
}

// ListenTopic returns the partner topic to filter inbound events on. An
// explicit listen_topic wins; otherwise the role implies the partner name
// (a controller listens to /receiver/status and vice versa).
func (s *Settings) ListenTopic() string {
	if s.Device.ListenTopic != "" {
		return s.Device.ListenTopic
	}
	switch s.Device.Role {
	case RoleReceiver:
		return "/" + string(RoleController) + "/status"
	default:
		return "/" + string(RoleReceiver) + "/status"
	}
}

// HeartbeatInterval returns the heartbeat interval as a duration
func (s *SyncSettings) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatIntervalMS) * time.Millisecond
}

// PartnerTimeout returns the partner staleness timeout as a duration
func (s *SyncSettings) PartnerTimeout() time.Duration {
	return time.Duration(s.PartnerTimeoutMS) * time.Millisecond
}

// SettleDelay returns the post-reconnect settle delay as a duration
func (s *SyncSettings) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMS) * time.Millisecond
}

// MessageTimeout returns the relay-link idle timeout as a duration
func (s *SyncSettings) MessageTimeout() time.Duration {
	return time.Duration(s.MessageTimeoutMS) * time.Millisecond
}

// PollInterval returns the socket poll deadline as a duration
func (s *SyncSettings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// ReconnectBackoff returns the initial reconnect backoff as a duration
func (s *SyncSettings) ReconnectBackoff() time.Duration {
	return time.Duration(s.ReconnectBackoffMS) * time.Millisecond
}

// WindowLength returns the rate window length as a duration
func (s *SyncSettings) WindowLength() time.Duration {
	return time.Duration(s.WindowLengthMS) * time.Millisecond
}
