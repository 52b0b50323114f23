package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func Test_parseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
		wantPath string
		wantTLS  bool
	}{
		{
			name: "valid relay with IPv4 and TXT records",
			entry: &zeroconf.ServiceEntry{
				HostName: "classroom-pi.local.",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.4.16")},
				Text:     []string{"path=/api/channels", "tls=0"},
			},
			wantNil:  false,
			wantIP:   "192.168.4.16",
			wantPort: 8080,
			wantPath: "/api/channels",
			wantTLS:  false,
		},
		{
			name: "TLS relay",
			entry: &zeroconf.ServiceEntry{
				HostName: "secure-relay.local.",
				Port:     8443,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				Text:     []string{"path=/api/channels", "tls=1"},
			},
			wantNil:  false,
			wantIP:   "10.0.0.5",
			wantPort: 8443,
			wantPath: "/api/channels",
			wantTLS:  true,
		},
		{
			name: "missing path TXT record falls back to default",
			entry: &zeroconf.ServiceEntry{
				HostName: "bare-relay.local.",
				Port:     9090,
				AddrIPv4: []net.IP{net.ParseIP("172.16.0.1")},
				Text:     []string{},
			},
			wantNil:  false,
			wantIP:   "172.16.0.1",
			wantPort: 9090,
			wantPath: DefaultPath,
			wantTLS:  false,
		},
		{
			name: "IPv6-only relay",
			entry: &zeroconf.ServiceEntry{
				HostName: "v6-relay.local.",
				Port:     8080,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
				Text:     []string{"path=/api/channels"},
			},
			wantNil:  false,
			wantIP:   "fe80::1",
			wantPort: 8080,
			wantPath: "/api/channels",
			wantTLS:  false,
		},
		{
			name: "entry with no addresses",
			entry: &zeroconf.ServiceEntry{
				HostName: "phantom.local.",
				Port:     8080,
				Text:     []string{"path=/api/channels"},
			},
			wantNil: true,
		},
		{
			name: "TXT key without value",
			entry: &zeroconf.ServiceEntry{
				HostName: "odd-relay.local.",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
				Text:     []string{"flag"},
			},
			wantNil:  false,
			wantIP:   "192.168.1.1",
			wantPort: 8080,
			wantPath: DefaultPath,
			wantTLS:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if relay != nil {
					t.Errorf("parseServiceEntry() = %+v, want nil", relay)
				}
				return
			}

			if relay == nil {
				t.Fatal("parseServiceEntry() = nil, want relay")
			}
			if relay.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", relay.IP, tt.wantIP)
			}
			if relay.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", relay.Port, tt.wantPort)
			}
			if relay.Path != tt.wantPath {
				t.Errorf("Path = %v, want %v", relay.Path, tt.wantPath)
			}
			if relay.TLS != tt.wantTLS {
				t.Errorf("TLS = %v, want %v", relay.TLS, tt.wantTLS)
			}
			if relay.DiscoveredAt.IsZero() {
				t.Error("DiscoveredAt should be set")
			}
			if time.Since(relay.DiscoveredAt) > time.Minute {
				t.Error("DiscoveredAt should be recent")
			}
		})
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("NewScanner().Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}
