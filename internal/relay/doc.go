// Package relay implements the development channel relay the device agents
// connect to when no hosted relay is reachable.
//
// The relay is a plain publish/subscribe fan-out with no server-side topic
// routing: every message published on a channel is rebroadcast to every
// client connected to that channel, sender included, and subscribers filter
// by topic themselves. This mirrors the hosted classroom relay closely
// enough that the agent cannot tell them apart.
//
// # Wire Behavior
//
// A client joins by upgrading GET /api/channels/{channel}. The relay
// answers with a welcome envelope carrying the assigned client id:
//
//	{"type":"welcome","client_id":"6e0c...","channel":"classroom"}
//
// Publishes are single-level {"topic":...,"value":...} text messages,
// validated against a JSON schema; invalid publishes are counted and
// dropped without closing the connection. Valid publishes are rebroadcast
// double-wrapped, with the original document carried as a JSON string:
//
//	{"type":"data","payload":"{\"topic\":\"/controller/status\",\"value\":93}"}
//
// # Operations Surface
//
// Besides the WebSocket endpoint the router serves /healthz, Prometheus
// metrics on /metrics, and per-channel statistics on /api/channels. With a
// capture directory configured every publish is appended to a JSONL file
// for offline analysis, and with announcement enabled the relay registers
// itself via mDNS so agents can find it with --discover.
//
// TLS is optional and tuned for embedded clients when enabled: TLS 1.2
// with the cipher suites MicroPython's mbedtls builds actually offer.
package relay
