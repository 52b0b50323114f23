package protocol

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tuftsceeo/smartmotor/internal/logging"
	"github.com/tuftsceeo/smartmotor/internal/version"
)

// DefaultHandshakeTimeout bounds the whole upgrade exchange: dial, request
// write, and response read
const DefaultHandshakeTimeout = 10 * time.Second

// maxResponseHeaderBytes caps how much of a response we will buffer while
// looking for the header terminator
const maxResponseHeaderBytes = 4096

var headerTerminator = []byte("\r\n\r\n")

// DialConfig describes one relay endpoint
type DialConfig struct {
	Host    string
	Port    int
	Path    string
	TLS     bool
	Origin  string
	Timeout time.Duration
}

// Address returns the host:port dial target
func (c DialConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the ws:// or wss:// form of the endpoint for display
func (c DialConfig) URL() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, c.Host, c.Port, c.Path)
}

// Handshake dials the relay and performs the HTTP Upgrade exchange. On
// success it returns the established connection plus any bytes that arrived
// after the response header terminator: those already belong to the frame
// stream and must be fed to the Assembler, not discarded. All failures are
// typed *LinkError handshake failures.
func Handshake(ctx context.Context, cfg DialConfig) (net.Conn, []byte, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	addr := cfg.Address()

	netDialer := &net.Dialer{Timeout: timeout}
	var conn net.Conn
	var err error
	if cfg.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: netDialer,
			Config: &tls.Config{
				ServerName: cfg.Host,
				MinVersion: tls.VersionTLS12,
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, nil, ClassifyDialError(err, addr)
	}

	// A cancelled context forces the pending read to fail immediately
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		_ = conn.Close()
		return nil, nil, ClassifyDialError(err, addr)
	}

	key, err := generateWebSocketKey()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to generate websocket key: %w", err)
	}

	request := buildUpgradeRequest(cfg, key)
	logging.LogRawBytes("upgrade request", request)
	if _, err := conn.Write(request); err != nil {
		_ = conn.Close()
		return nil, nil, ClassifyDialError(err, addr)
	}

	// Read until the header terminator; the relay may pack the welcome
	// frame into the same segment as the 101 response
	var response []byte
	chunk := make([]byte, 1024)
	for !bytes.Contains(response, headerTerminator) {
		if len(response) > maxResponseHeaderBytes {
			_ = conn.Close()
			return nil, nil, NewNonSwitchingError(firstLine(response), addr)
		}
		n, err := conn.Read(chunk)
		if err != nil {
			_ = conn.Close()
			return nil, nil, ClassifyDialError(err, addr)
		}
		response = append(response, chunk[:n]...)
	}

	idx := bytes.Index(response, headerTerminator)
	header := response[:idx]
	leftover := append([]byte(nil), response[idx+len(headerTerminator):]...)

	statusLine := firstLine(header)
	if !strings.Contains(statusLine, "101") {
		_ = conn.Close()
		return nil, nil, NewNonSwitchingError(statusLine, addr)
	}

	// Steady-state reads use short poll deadlines set by the supervisor
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, nil, ClassifyDialError(err, addr)
	}

	logging.LogConnection(addr, "handshake_complete")
	if len(leftover) > 0 {
		logging.LogRawBytes("bytes after upgrade response", leftover)
	}

	return conn, leftover, nil
}

// generateWebSocketKey returns the random base64 nonce for Sec-WebSocket-Key
func generateWebSocketKey() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(nonce), nil
}

func buildUpgradeRequest(cfg DialConfig, key string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", cfg.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", cfg.Host)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", key)
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	if cfg.Origin != "" {
		fmt.Fprintf(&b, "Origin: %s\r\n", cfg.Origin)
	}
	fmt.Fprintf(&b, "User-Agent: %s\r\n", version.UserAgent())
	b.WriteString("\r\n")
	return []byte(b.String())
}

func firstLine(header []byte) string {
	if idx := bytes.Index(header, []byte("\r\n")); idx >= 0 {
		header = header[:idx]
	}
	return strings.TrimSpace(string(header))
}
