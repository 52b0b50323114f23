// Smartmotor-relay is a development channel relay for SmartMotor devices.
//
// It stands in for the hosted channel service on a classroom network:
// devices join named channels over WebSocket, and every publish on a
// channel is rebroadcast to all of its members. The relay validates
// publishes, exposes prometheus metrics, and can capture traffic for
// protocol analysis.
//
// Usage:
//
//	smartmotor-relay serve [flags]
//
// See 'smartmotor-relay serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuftsceeo/smartmotor/internal/relay"
	"github.com/tuftsceeo/smartmotor/internal/urls"
	"github.com/tuftsceeo/smartmotor/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "smartmotor-relay",
	Short: "SmartMotor Channel Relay",
	Long: `A development channel relay for SmartMotor devices.

Devices join a channel at /api/channels/<name> and every publish on the
channel is rebroadcast to all members. Run one relay per classroom network;
point devices at it with --host/--port or let them find it with --discover.

Relay setup guide: ` + urls.RelaySetup,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	host       string
	port       int
	certPath   string
	keyPath    string
	logLevel   string
	captureDir string
	announce   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the channel relay",
	Long: `Start the relay and serve channels until interrupted.

Plain ws:// by default. Provide --cert and --key together to serve wss://
with a TLS configuration the devices' embedded TLS stacks accept.

To capture channel traffic for protocol analysis, use --capture-dir; one
JSONL record is written per relayed message. Analyze captures with
'go run tools/analyze-captures.go <file>'.`,
	Example: `  # Plain relay on the default port
  smartmotor-relay serve

  # Announce via mDNS so agents can use --discover
  smartmotor-relay serve --announce

  # TLS relay with traffic capture
  smartmotor-relay serve --cert cert.pem --key key.pem --capture-dir ./captures

  # Debug logging on a custom port
  smartmotor-relay serve --port 9090 --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Listen host (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 8080, "Listen port")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Directory for traffic captures (disabled if not specified)")
	serveCmd.Flags().BoolVar(&announce, "announce", false, "Announce the relay via mDNS")
}

func runServe(cmd *cobra.Command, args []string) error {
	if (certPath != "") != (keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	if certPath != "" {
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", certPath)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", keyPath)
		}
	}

	srv, err := relay.New(&relay.Config{
		Host:       host,
		Port:       port,
		CertPath:   certPath,
		KeyPath:    keyPath,
		LogLevel:   logLevel,
		CaptureDir: captureDir,
		Announce:   announce,
	})
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	return srv.Start()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smartmotor-relay %s\n", version.Full())
	},
}
