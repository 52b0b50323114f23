package discovery

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
)

// Announce registers this process as a channel relay on the local network.
// The returned stop function withdraws the announcement; callers defer it.
func Announce(port int, path string, tls bool) (func(), error) {
	instance := "smartmotor-relay"
	if host, err := os.Hostname(); err == nil && host != "" {
		instance = fmt.Sprintf("smartmotor-relay on %s", host)
	}

	tlsFlag := "0"
	if tls {
		tlsFlag = "1"
	}
	txt := []string{
		"path=" + path,
		"tls=" + tlsFlag,
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	return server.Shutdown, nil
}
