package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type SmartMotor relays advertise
	ServiceType = "_smartmotor-relay._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for relay discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPath is assumed when an announcement carries no path TXT key
	DefaultPath = "/api/channels"
)

// Scanner handles mDNS relay discovery
type Scanner struct {
	// Timeout is the maximum time to wait for relay discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForRelays discovers all channel relays on the local network
// Returns a list of discovered relays or an error
func (s *Scanner) ScanForRelays() ([]*Relay, error) {
	return s.ScanForRelaysWithContext(context.Background())
}

// ScanForRelaysWithContext discovers relays with a custom context
func (s *Scanner) ScanForRelaysWithContext(ctx context.Context) ([]*Relay, error) {
	// Create a context with timeout
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	// Channel to receive service entries
	entries := make(chan *zeroconf.ServiceEntry)
	relays := make([]*Relay, 0)
	done := make(chan struct{})

	// Start the resolver
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	// Collect entries in a goroutine
	go func() {
		defer close(done)
		for entry := range entries {
			relay := parseServiceEntry(entry)
			if relay != nil {
				relays = append(relays, relay)
			}
		}
	}()

	// Start browsing for relay services
	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for the browse to finish (timeout or cancellation)
	<-ctx.Done()
	<-done

	return relays, nil
}

// WaitForRelay waits for the first relay to appear on the network
// Returns the relay or an error if none is found within the timeout
func (s *Scanner) WaitForRelay(ctx context.Context) (*Relay, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	relayChan := make(chan *Relay, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			relay := parseServiceEntry(entry)
			if relay != nil {
				select {
				case relayChan <- relay:
				default:
				}
				cancel() // Found one, stop browsing
				return
			}
		}
	}()

	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case relay := <-relayChan:
		return relay, nil
	case <-ctx.Done():
		// The collector may have cancelled the context itself on a find
		select {
		case relay := <-relayChan:
			return relay, nil
		default:
		}
		return nil, fmt.Errorf("no relay found within %v", s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Relay
// Returns nil if the entry is unusable (no address)
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Relay {
	// Get IP address (prefer IPv4; the devices only do IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	// Parse TXT records into metadata
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		// TXT records are in "key=value" format
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			// Key without value
			metadata[parts[0]] = ""
		}
	}

	path := metadata["path"]
	if path == "" {
		path = DefaultPath
	}

	return &Relay{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Path:         path,
		TLS:          metadata["tls"] == "1",
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForRelays is a convenience function to scan with a custom timeout
func ScanForRelays(timeout time.Duration) ([]*Relay, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForRelays()
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan() ([]*Relay, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.ScanForRelays()
}

// FindRelay waits for the first relay announcement within the timeout
func FindRelay(timeout time.Duration) (*Relay, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.WaitForRelay(context.Background())
}
