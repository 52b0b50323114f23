// Package discovery provides mDNS-based relay discovery on the local network.
//
// A development relay announces itself under the "_smartmotor-relay._tcp"
// service type, and agents browse for it so a classroom full of devices can
// find the relay without anyone typing an IP address.
//
// # Discovery Process
//
// The discovery process works as follows:
//  1. Broadcasts mDNS queries on the local network
//  2. Listens for relay service advertisements
//  3. Parses TXT records for the channel path and TLS flag
//  4. Returns discovered relays after the timeout period
//
// # Usage Example
//
//	// Find the first relay on the network
//	relay, err := discovery.FindRelay(5 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Found relay at %s:%d%s\n", relay.IP, relay.Port, relay.Path)
//
// The relay side registers with:
//
//	stop, err := discovery.Announce(8080, "/api/channels", false)
//	defer stop()
//
// # TXT Records
//
// Announcements carry two keys: "path" (the channel endpoint prefix, e.g.
// /api/channels) and "tls" ("1" when the relay serves wss://).
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// This package is safe for concurrent use. Multiple discovery sessions can run
// simultaneously without interference.
package discovery
