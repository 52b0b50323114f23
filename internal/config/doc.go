// Package config provides user configuration management for the SmartMotor project.
//
// This package manages a YAML-based settings file describing which relay a
// device agent connects to, which role it plays (controller or receiver),
// and the sync protocol's timing and bounding constants. The configuration
// follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/smartmotor/config.yaml or $HOME/.config/smartmotor/config.yaml
//   - macOS: $HOME/.config/smartmotor/config.yaml
//   - Windows: %LOCALAPPDATA%\smartmotor\config.yaml
//
// A missing file yields working defaults (a local dev relay on port 8080),
// so a device can be pointed at a classroom relay with flags alone.
//
// # Security
//
// IMPORTANT: This package NEVER stores WiFi credentials. Network
// association happens outside the agent entirely.
//
// # Usage Example
//
//	settings, err := config.Load("") // platform default location
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	settings.Relay.Host = "relay.example.edu"
//	settings.Relay.TLS = true
//	settings.Device.Role = config.RoleReceiver
//
//	// Save changes atomically
//	if err := settings.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// Topics are derived, not stored: a device named "controller" publishes on
// /controller/status, and its listen topic defaults to the partner role's
// publish topic unless overridden.
//
// # Thread Safety
//
// File operations are protected by a mutex to ensure atomic writes.
package config
