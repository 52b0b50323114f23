// Package logging provides structured logging for the SmartMotor agent and relay.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the project. It provides both general logging
// functions and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, frame decoding, ping/pong)
//   - Info: Normal operations (connections, topic events, state changes)
//   - Warn: Non-fatal issues (connection drops, retries, dropped envelopes)
//   - Error: Fatal issues (startup failures, reconnect exhaustion)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Relay connected",
//	    zap.String("remote_addr", "10.0.0.17:8080"),
//	    zap.String("client_id", "6e0c…"),
//	    zap.String("channel", "hackathon"),
//	)
//
// # Specialized Logging
//
// Connection logging:
//
//	logging.LogConnection(remoteAddr, "handshake_complete")
//	logging.LogConnection(remoteAddr, "close_received")
//
// Frame and topic logging:
//
//	logging.LogFrame("received", opcode, payload)
//	logging.LogTopicEvent("published", "/controller/status", 93)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given and SMARTMOTOR_LOG_LEVEL is unset the logger is a
// no-op, which keeps CLI output clean and keeps log lines off the terminal
// while the front panel is drawing. InitializeWithFile redirects output to a
// file for that case.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
