package protocol

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"
)

// timeoutError satisfies net.Error with Timeout() == true
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantSubtype HandshakeSubtype
	}{
		{
			name:        "deadline expiry",
			err:         &net.OpError{Op: "dial", Err: timeoutError{}},
			wantSubtype: HandshakeTimeout,
		},
		{
			name:        "dns failure",
			err:         &net.DNSError{Err: "no such host", Name: "relay.invalid"},
			wantSubtype: HandshakeDNS,
		},
		{
			name:        "connection refused",
			err:         &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			wantSubtype: HandshakeRefused,
		},
		{
			name:        "anything else",
			err:         errors.New("network is unreachable"),
			wantSubtype: HandshakeGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linkErr := ClassifyDialError(tt.err, "192.168.4.1:8080")

			if linkErr.Type != ErrTypeHandshake {
				t.Errorf("Type = %v, want %v", linkErr.Type, ErrTypeHandshake)
			}
			if linkErr.Subtype != tt.wantSubtype {
				t.Errorf("Subtype = %v, want %v", linkErr.Subtype, tt.wantSubtype)
			}
			if !linkErr.Retryable {
				t.Error("dial failures must be retryable")
			}
			if linkErr.RemoteAddr != "192.168.4.1:8080" {
				t.Errorf("RemoteAddr = %q, want the dial target", linkErr.RemoteAddr)
			}
			if !errors.Is(linkErr, tt.err) {
				t.Error("classified error must wrap the original")
			}
		})
	}

	t.Run("nil error", func(t *testing.T) {
		if got := ClassifyDialError(nil, "x"); got != nil {
			t.Errorf("ClassifyDialError(nil) = %v, want nil", got)
		}
	})
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantViolation bool
		wantHandshake bool
		wantExhausted bool
		wantIdle      bool
		wantRetryable bool
	}{
		{
			name:          "transient io",
			err:           NewTransientIOError("read", timeoutError{}),
			wantTransient: true,
			wantRetryable: true,
		},
		{
			name:          "protocol violation",
			err:           NewProtocolViolation("oversized length field"),
			wantViolation: true,
		},
		{
			name:          "non-switching response",
			err:           NewNonSwitchingError("HTTP/1.1 404 Not Found", "10.0.0.5:8080"),
			wantHandshake: true,
			wantRetryable: true,
		},
		{
			name:          "reconnect exhausted",
			err:           NewReconnectExhaustedError(10, timeoutError{}),
			wantExhausted: true,
		},
		{
			name:          "idle timeout",
			err:           NewIdleTimeoutError(30 * time.Second),
			wantIdle:      true,
			wantRetryable: true,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("something else"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientIO(tt.err); got != tt.wantTransient {
				t.Errorf("IsTransientIO() = %v, want %v", got, tt.wantTransient)
			}
			if got := IsProtocolViolation(tt.err); got != tt.wantViolation {
				t.Errorf("IsProtocolViolation() = %v, want %v", got, tt.wantViolation)
			}
			if got := IsHandshakeFailure(tt.err); got != tt.wantHandshake {
				t.Errorf("IsHandshakeFailure() = %v, want %v", got, tt.wantHandshake)
			}
			if got := IsReconnectExhausted(tt.err); got != tt.wantExhausted {
				t.Errorf("IsReconnectExhausted() = %v, want %v", got, tt.wantExhausted)
			}
			if got := IsIdleTimeout(tt.err); got != tt.wantIdle {
				t.Errorf("IsIdleTimeout() = %v, want %v", got, tt.wantIdle)
			}
			if got := IsRetryable(tt.err); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}

func TestIsWouldBlock(t *testing.T) {
	deadline := &net.OpError{Op: "read", Err: timeoutError{}}
	if !IsWouldBlock(deadline) {
		t.Error("IsWouldBlock() = false for a deadline expiry")
	}
	if IsWouldBlock(errors.New("connection reset")) {
		t.Error("IsWouldBlock() = true for a non-timeout error")
	}
	if IsWouldBlock(nil) {
		t.Error("IsWouldBlock(nil) = true")
	}
}

func TestLinkError_Error(t *testing.T) {
	withCause := NewTransientIOError("read", timeoutError{})
	if !strings.Contains(withCause.Error(), "caused by") {
		t.Errorf("Error() = %q, want the cause included", withCause.Error())
	}

	withoutCause := NewProtocolViolation("bad header")
	if strings.Contains(withoutCause.Error(), "caused by") {
		t.Errorf("Error() = %q, want no cause suffix", withoutCause.Error())
	}
	if !strings.Contains(withoutCause.Error(), "bad header") {
		t.Errorf("Error() = %q, want the message included", withoutCause.Error())
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "refused",
			err:  ClassifyDialError(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "x"),
			want: "Relay refused connection - is it running?",
		},
		{
			name: "non-switching",
			err:  NewNonSwitchingError("HTTP/1.1 404 Not Found", "x"),
			want: "Relay did not switch protocols - check the path",
		},
		{
			name: "idle timeout is not mistaken for a quiet poll",
			err:  NewIdleTimeoutError(30 * time.Second),
			want: "Relay link went quiet - reconnecting",
		},
		{
			name: "plain error passes through",
			err:  errors.New("plain"),
			want: "plain",
		},
		{
			name: "nil",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetShortErrorMessage(tt.err); got != tt.want {
				t.Errorf("GetShortErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	// Every typed error must produce actionable advice, not a shrug
	hints := []error{
		ClassifyDialError(&net.OpError{Op: "dial", Err: timeoutError{}}, "x"),
		ClassifyDialError(&net.DNSError{Err: "no such host", Name: "r"}, "x"),
		ClassifyDialError(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "x"),
		NewNonSwitchingError("HTTP/1.1 200 OK", "x"),
		NewReconnectExhaustedError(10, nil),
		NewIdleTimeoutError(30 * time.Second),
	}
	for _, err := range hints {
		hint := GetTroubleshootingHint(err)
		if !strings.Contains(hint, "Troubleshooting:") {
			t.Errorf("hint for %v lacks a troubleshooting section:\n%s", err, hint)
		}
	}
}

// Guards against the deadline poisoning trick in Handshake regressing: a
// context cancellation must read as a timeout on the poisoned conn.
func TestDeadlineExpiryIsWouldBlock(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	_ = client.SetDeadline(time.Unix(1, 0))
	buf := make([]byte, 1)
	_, err := client.Read(buf)
	if err == nil {
		t.Fatal("read on a poisoned conn succeeded")
	}
	if !IsWouldBlock(err) {
		t.Errorf("IsWouldBlock(%v) = false, want true", err)
	}
}
