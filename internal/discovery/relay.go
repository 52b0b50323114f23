package discovery

import (
	"fmt"
	"time"
)

// Relay represents a discovered channel relay on the network
type Relay struct {
	// Instance is the announced mDNS instance name (e.g., "smartmotor-relay")
	Instance string

	// Hostname is the mDNS hostname (e.g., "classroom-pi.local.")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.4.16")
	IP string

	// Port is the relay's listen port
	Port int

	// Path is the channel endpoint prefix from the TXT record
	// (e.g., "/api/channels")
	Path string

	// TLS reports whether the relay serves wss://
	TLS bool

	// Metadata contains the raw mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the relay was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the relay
func (r *Relay) String() string {
	return fmt.Sprintf("SmartMotor relay %q at %s:%d%s", r.Instance, r.IP, r.Port, r.Path)
}

// URL returns the ws:// or wss:// base URL for the relay
func (r *Relay) URL() string {
	scheme := "ws"
	if r.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, r.IP, r.Port, r.Path)
}

// GetMetadata retrieves a TXT record value by key, or returns empty string if not found
func (r *Relay) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
