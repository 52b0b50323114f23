package protocol

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/tuftsceeo/smartmotor/internal/urls"
)

// Error types for the relay link

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeTransientIO indicates a recoverable I/O condition (read deadline
	// hit, short write); retried without counting as a failure
	ErrTypeTransientIO ErrorType = iota
	// ErrTypeProtocolViolation indicates a malformed frame (bad header,
	// oversized length field); the accumulator is reset
	ErrTypeProtocolViolation
	// ErrTypeHandshake indicates the WebSocket upgrade could not be completed
	ErrTypeHandshake
	// ErrTypeReconnectExhausted indicates the reconnect attempt budget is
	// spent; fatal, surfaced to the operator
	ErrTypeReconnectExhausted
	// ErrTypeIdleTimeout indicates an established link went silent past the
	// message timeout; the connection is abandoned and redialed
	ErrTypeIdleTimeout
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// HandshakeSubtype provides more specific handshake failure classification
type HandshakeSubtype int

const (
	HandshakeGeneral HandshakeSubtype = iota
	HandshakeDNS
	HandshakeTLS
	HandshakeTimeout
	HandshakeRefused
	HandshakeNonSwitching
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeTransientIO:
		return "Transient IO"
	case ErrTypeProtocolViolation:
		return "Protocol Violation"
	case ErrTypeHandshake:
		return "Handshake Failure"
	case ErrTypeReconnectExhausted:
		return "Reconnect Exhausted"
	case ErrTypeIdleTimeout:
		return "Idle Timeout"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// String returns a human-readable name for the handshake subtype
func (hs HandshakeSubtype) String() string {
	switch hs {
	case HandshakeGeneral:
		return "general"
	case HandshakeDNS:
		return "dns"
	case HandshakeTLS:
		return "tls"
	case HandshakeTimeout:
		return "timeout"
	case HandshakeRefused:
		return "refused"
	case HandshakeNonSwitching:
		return "non_switching"
	default:
		return fmt.Sprintf("HandshakeSubtype(%d)", hs)
	}
}

// LinkError represents an error on the relay link
type LinkError struct {
	Type       ErrorType        // Category of error
	Subtype    HandshakeSubtype // More specific handshake failure type
	Message    string           // Human-readable error message
	StatusLine string           // HTTP status line (for non-switching responses)
	Err        error            // Underlying error (if any)
	RemoteAddr string           // Relay address (for context)
	Retryable  bool             // Whether the supervisor should retry
}

// Error implements the error interface
func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *LinkError) Unwrap() error {
	return e.Err
}

// ClassifyDialError analyzes a dial or upgrade error and returns a typed
// handshake failure
func ClassifyDialError(err error, remoteAddr string) *LinkError {
	if err == nil {
		return nil
	}

	// Check for timeout errors first; deadline errors also satisfy net.Error
	if os.IsTimeout(err) {
		return &LinkError{
			Type:       ErrTypeHandshake,
			Subtype:    HandshakeTimeout,
			Message:    "Relay did not respond in time",
			Err:        err,
			RemoteAddr: remoteAddr,
			Retryable:  true,
		}
	}

	// Check for DNS errors. On a classroom network the relay hostname can
	// legitimately appear after the device boots, so these stay retryable.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &LinkError{
			Type:       ErrTypeHandshake,
			Subtype:    HandshakeDNS,
			Message:    fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:        err,
			RemoteAddr: remoteAddr,
			Retryable:  true,
		}
	}

	// Check for TLS failures
	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var authErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) ||
		errors.As(err, &authErr) || errors.As(err, &hostErr) {
		return &LinkError{
			Type:       ErrTypeHandshake,
			Subtype:    HandshakeTLS,
			Message:    "TLS negotiation with the relay failed",
			Err:        err,
			RemoteAddr: remoteAddr,
			Retryable:  true,
		}
	}

	// Check for connection refused
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &LinkError{
			Type:       ErrTypeHandshake,
			Subtype:    HandshakeRefused,
			Message:    "Relay refused the connection",
			Err:        err,
			RemoteAddr: remoteAddr,
			Retryable:  true,
		}
	}

	// Generic handshake failure
	return &LinkError{
		Type:       ErrTypeHandshake,
		Subtype:    HandshakeGeneral,
		Message:    "Could not reach the relay",
		Err:        err,
		RemoteAddr: remoteAddr,
		Retryable:  true,
	}
}

// NewTransientIOError creates a transient I/O error
func NewTransientIOError(op string, err error) *LinkError {
	return &LinkError{
		Type:      ErrTypeTransientIO,
		Message:   fmt.Sprintf("%s would block", op),
		Err:       err,
		Retryable: true,
	}
}

// NewProtocolViolation creates a frame-level protocol error
func NewProtocolViolation(message string) *LinkError {
	return &LinkError{
		Type:      ErrTypeProtocolViolation,
		Message:   message,
		Retryable: false,
	}
}

// NewNonSwitchingError creates a handshake error for an HTTP response that
// did not switch protocols
func NewNonSwitchingError(statusLine string, remoteAddr string) *LinkError {
	return &LinkError{
		Type:       ErrTypeHandshake,
		Subtype:    HandshakeNonSwitching,
		Message:    fmt.Sprintf("relay answered %q instead of switching protocols", statusLine),
		StatusLine: statusLine,
		RemoteAddr: remoteAddr,
		Retryable:  true,
	}
}

// NewIdleTimeoutError creates the link-went-quiet error the supervisor uses
// to abandon a connection that stopped carrying traffic
func NewIdleTimeoutError(idle time.Duration) *LinkError {
	return &LinkError{
		Type:      ErrTypeIdleTimeout,
		Message:   fmt.Sprintf("nothing received from the relay for %v", idle),
		Retryable: true,
	}
}

// NewReconnectExhaustedError creates the fatal give-up error after the
// reconnect attempt budget is spent
func NewReconnectExhaustedError(attempts int, lastErr error) *LinkError {
	return &LinkError{
		Type:      ErrTypeReconnectExhausted,
		Message:   fmt.Sprintf("gave up after %d reconnect attempts", attempts),
		Err:       lastErr,
		Retryable: false,
	}
}

// IsWouldBlock reports whether err is a read/write deadline expiry, the
// bounded-poll condition the supervisor treats as "no bytes yet"
func IsWouldBlock(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransientIO checks if an error is a transient I/O condition
func IsTransientIO(err error) bool {
	if linkErr, ok := err.(*LinkError); ok {
		return linkErr.Type == ErrTypeTransientIO
	}
	return false
}

// IsProtocolViolation checks if an error is a frame-level protocol violation
func IsProtocolViolation(err error) bool {
	if linkErr, ok := err.(*LinkError); ok {
		return linkErr.Type == ErrTypeProtocolViolation
	}
	return false
}

// IsHandshakeFailure checks if an error is a handshake failure
func IsHandshakeFailure(err error) bool {
	if linkErr, ok := err.(*LinkError); ok {
		return linkErr.Type == ErrTypeHandshake
	}
	return false
}

// IsIdleTimeout checks if an error is the link-went-quiet condition
func IsIdleTimeout(err error) bool {
	if linkErr, ok := err.(*LinkError); ok {
		return linkErr.Type == ErrTypeIdleTimeout
	}
	return false
}

// IsReconnectExhausted checks if an error is the fatal reconnect give-up
func IsReconnectExhausted(err error) bool {
	if linkErr, ok := err.(*LinkError); ok {
		return linkErr.Type == ErrTypeReconnectExhausted
	}
	return false
}

// IsRetryable checks if the supervisor should retry after this error
func IsRetryable(err error) bool {
	if linkErr, ok := err.(*LinkError); ok {
		return linkErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	linkErr, ok := err.(*LinkError)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch linkErr.Type {
	case ErrTypeHandshake:
		switch linkErr.Subtype {
		case HandshakeTimeout:
			return strings.Join([]string{
				"The relay did not respond in time.",
				"Troubleshooting:",
				"  • Check that the relay address and port are correct",
				"  • Verify the device has network connectivity",
				"  • A firewall may be dropping WebSocket upgrades",
			}, "\n")

		case HandshakeDNS:
			return strings.Join([]string{
				"Could not resolve the relay hostname.",
				"Troubleshooting:",
				"  • Use the relay's IP address instead of its hostname",
				"  • Try --discover to find relays announced on the local network",
				"  • Check your network DNS settings",
			}, "\n")

		case HandshakeTLS:
			return strings.Join([]string{
				"TLS negotiation with the relay failed.",
				"Troubleshooting:",
				"  • A local dev relay usually runs without TLS: pass --tls=false",
				"  • The relay certificate may be self-signed or expired",
				"  • See " + urls.RelaySetup,
			}, "\n")

		case HandshakeRefused:
			return strings.Join([]string{
				"The relay refused the connection.",
				"Troubleshooting:",
				"  • Check that the relay is running and listening on that port",
				"  • Verify the port number (the dev relay defaults to 8080)",
				"  • See " + urls.RelaySetup,
			}, "\n")

		case HandshakeNonSwitching:
			return strings.Join([]string{
				"The relay answered the upgrade request with a plain HTTP response.",
				"Troubleshooting:",
				"  • Check the channel path (the dev relay expects /api/channels/<name>)",
				"  • The address may point at a web server that is not a channel relay",
				"  • See " + urls.ChannelProtocol,
			}, "\n")

		default:
			return strings.Join([]string{
				"Could not reach the relay.",
				"Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the relay address, port, and path",
				"  • See " + urls.Troubleshooting,
			}, "\n")
		}

	case ErrTypeReconnectExhausted:
		return strings.Join([]string{
			"The device gave up reconnecting to the relay.",
			"Troubleshooting:",
			"  • Confirm the relay is up, then restart the agent",
			"  • Raise max_reconnect_attempts for flaky networks",
			"  • See " + urls.Troubleshooting,
		}, "\n")

	case ErrTypeIdleTimeout:
		return strings.Join([]string{
			"The relay link went quiet and was abandoned.",
			"Troubleshooting:",
			"  • The relay may have hung or lost its own network link",
			"  • Raise message_timeout_ms if the channel is legitimately quiet",
			"  • See " + urls.Troubleshooting,
		}, "\n")

	case ErrTypeProtocolViolation:
		return "The relay sent bytes that do not parse as WebSocket frames. Check that the address points at a channel relay."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	linkErr, ok := err.(*LinkError)
	if !ok {
		if err == nil {
			return ""
		}
		return err.Error()
	}

	switch linkErr.Type {
	case ErrTypeHandshake:
		switch linkErr.Subtype {
		case HandshakeTimeout:
			return "Relay not responding (timeout)"
		case HandshakeDNS:
			return "Cannot resolve relay hostname"
		case HandshakeTLS:
			return "TLS failure - wrong scheme or bad certificate"
		case HandshakeRefused:
			return "Relay refused connection - is it running?"
		case HandshakeNonSwitching:
			return "Relay did not switch protocols - check the path"
		default:
			return "Cannot reach relay - check address"
		}
	case ErrTypeReconnectExhausted:
		return "Gave up reconnecting - relay unreachable"
	case ErrTypeProtocolViolation:
		return "Relay sent malformed frames"
	case ErrTypeIdleTimeout:
		return "Relay link went quiet - reconnecting"
	case ErrTypeTransientIO:
		return "Waiting for relay data"
	default:
		return linkErr.Message
	}
}
