package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tuftsceeo/smartmotor/internal/agent"
	"github.com/tuftsceeo/smartmotor/internal/config"
	"github.com/tuftsceeo/smartmotor/internal/device"
	"github.com/tuftsceeo/smartmotor/internal/discovery"
	"github.com/tuftsceeo/smartmotor/internal/logging"
	"github.com/tuftsceeo/smartmotor/internal/protocol"
	"github.com/tuftsceeo/smartmotor/internal/tui"
	"github.com/tuftsceeo/smartmotor/internal/urls"
)

// Agent command flags
var (
	configPath  string
	relayHost   string
	relayPort   int
	relayPath   string
	relayTLS    bool
	channelName string
	deviceName  string
	discover    bool
	logLevel    string
	logFile     string
	noPanel     bool
	scanTimeout int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: platform config dir)")

	for _, cmd := range []*cobra.Command{controllerCmd, receiverCmd} {
		cmd.Flags().StringVar(&relayHost, "host", "", "Relay hostname or IP (overrides config)")
		cmd.Flags().IntVar(&relayPort, "port", 0, "Relay port (overrides config)")
		cmd.Flags().StringVar(&relayPath, "path", "", "Full channel path, e.g. /api/channels/classroom")
		cmd.Flags().BoolVar(&relayTLS, "tls", false, "Connect with wss:// (overrides config)")
		cmd.Flags().StringVar(&channelName, "channel", "", "Channel name (shorthand for --path /api/channels/<name>)")
		cmd.Flags().StringVar(&deviceName, "name", "", "Device name; the publish topic is /<name>/status")
		cmd.Flags().BoolVar(&discover, "discover", false, "Find the relay via mDNS instead of host/port")
		cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; silent when empty)")
		cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to a file instead of the terminal")
		cmd.Flags().BoolVar(&noPanel, "no-panel", false, "Disable the front panel even on a TTY")
		rootCmd.AddCommand(cmd)
	}

	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(initConfigCmd)
}

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run as the controller (publish the knob position)",
	Long: `Run the agent as a controller.

The controller samples its knob, publishes position changes past the change
threshold to its channel topic, and sends heartbeats while the knob is
still. On a development host the knob is simulated with a smooth random
walk.`,
	Example: `  # Connect to a local dev relay
  smartmotor controller --host localhost --port 8080

  # Find the relay via mDNS and join channel "room-3"
  smartmotor controller --discover --channel room-3

  # Headless with debug logging
  smartmotor controller --no-panel --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, config.RoleController)
	},
}

var receiverCmd = &cobra.Command{
	Use:   "receiver",
	Short: "Run as the receiver (drive the servo from the controller)",
	Long: `Run the agent as a receiver.

The receiver listens for its controller's topic, clamps each received
position to the configured range, and drives the servo to match. Applied
positions are echoed back on the receiver's own topic as confirmations.
On shutdown the servo is parked at its center position.`,
	Example: `  # Connect to a local dev relay
  smartmotor receiver --host localhost --port 8080

  # Find the relay via mDNS
  smartmotor receiver --discover

  # Use the hosted relay over TLS
  smartmotor receiver --host relay.example.org --port 443 --tls`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, config.RoleReceiver)
	},
}

func runAgent(cmd *cobra.Command, role config.Role) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	settings.Device.Role = role
	applyFlagOverrides(cmd, settings, role)

	if discover {
		fmt.Println("Searching for a relay via mDNS...")
		relay, err := discovery.FindRelay(discovery.DefaultScanTimeout)
		if err != nil {
			return fmt.Errorf("relay discovery failed: %w\n\nRelay setup guide: %s", err, urls.RelaySetup)
		}
		fmt.Printf("Found %s\n", relay)
		settings.Relay.Host = relay.IP
		settings.Relay.Port = relay.Port
		settings.Relay.TLS = relay.TLS
		name := channelName
		if name == "" {
			name = "classroom"
		}
		settings.Relay.Path = relay.Path + "/" + name
	}

	if err := settings.Validate(); err != nil {
		return err
	}

	usePanel := !noPanel && term.IsTerminal(int(os.Stdout.Fd()))
	if err := initLogging(usePanel); err != nil {
		return err
	}
	defer logging.Sync()

	input, output := buildHardware(settings, role)
	supervisor := agent.New(settings, input, output)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var runErr error
	if usePanel {
		errChan := make(chan error, 1)
		go func() {
			errChan <- supervisor.Run(ctx)
			cancel()
		}()
		if err := tui.Run(settings, supervisor); err != nil {
			return fmt.Errorf("front panel failed: %w", err)
		}
		cancel()
		runErr = <-errChan
	} else {
		runErr = supervisor.Run(ctx)
	}

	if runErr != nil {
		if protocol.IsReconnectExhausted(runErr) {
			return fmt.Errorf("%s\n\n%s\n\nTroubleshooting guide: %s",
				protocol.GetShortErrorMessage(runErr),
				protocol.GetTroubleshootingHint(runErr),
				urls.Troubleshooting)
		}
		return runErr
	}
	return nil
}

// applyFlagOverrides layers explicit flags over whatever the config file said
func applyFlagOverrides(cmd *cobra.Command, settings *config.Settings, role config.Role) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		settings.Relay.Host = relayHost
	}
	if flags.Changed("port") {
		settings.Relay.Port = relayPort
	}
	if flags.Changed("path") {
		settings.Relay.Path = relayPath
	}
	if flags.Changed("tls") {
		settings.Relay.TLS = relayTLS
	}
	if flags.Changed("channel") && !flags.Changed("path") {
		settings.Relay.Path = "/api/channels/" + channelName
	}

	if flags.Changed("name") {
		settings.Device.Name = deviceName
	} else if settings.Device.Name == "controller" && role == config.RoleReceiver {
		// The stock name tracks the role so a fresh pair just works
		settings.Device.Name = "receiver"
	}
}

// initLogging routes logs away from a terminal the front panel owns
func initLogging(usePanel bool) error {
	if usePanel && logFile == "" {
		// Silent unless SMARTMOTOR_LOG_LEVEL forces a level; stray log lines
		// would corrupt the panel
		return logging.Initialize("")
	}
	if logFile != "" {
		return logging.InitializeWithFile(logLevel, logFile)
	}
	return logging.Initialize(logLevel)
}

// buildHardware wires the simulated hardware for a role: controllers sample
// a knob, receivers drive a servo and echo what they applied
func buildHardware(settings *config.Settings, role config.Role) (device.Input, device.Output) {
	if role == config.RoleReceiver {
		servo := device.NewSimServo()
		echo := device.NewEchoInput(servo, settings.Device.ValueCenter)
		return echo, servo
	}
	knob := device.NewSimKnob(settings.Device.ValueMin, settings.Device.ValueMax, time.Now().UnixNano())
	return knob, device.NullOutput{}
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for channel relays on the network",
	Long: `Scan for SmartMotor relays using mDNS/DNS-SD discovery.

Lists every relay announcing itself on the local network with its address,
channel path, and TLS mode.`,
	Example: `  # Scan for 10 seconds (default)
  smartmotor scan

  # Quick 3-second scan
  smartmotor scan --timeout 3`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for relays (timeout: %ds)...\n\n", scanTimeout)

	relays, err := discovery.ScanForRelays(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(relays) == 0 {
		fmt.Println("No relays found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the relay is running with --announce")
		fmt.Println("  - Check that this machine is on the same network as the relay")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --host/--port to connect directly if discovery fails")
		fmt.Printf("\nRelay setup guide: %s\n", urls.RelaySetup)
		return nil
	}

	fmt.Printf("Found %d relay(s):\n\n", len(relays))
	for i, relay := range relays {
		fmt.Printf("%d. %s\n", i+1, relay.Instance)
		fmt.Printf("   URL:      %s\n", relay.URL())
		fmt.Printf("   Hostname: %s\n", relay.Hostname)
		if len(relay.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", relay.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'smartmotor controller --discover' to connect automatically")
	return nil
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long: `Write a default configuration file to the platform config directory.

The file documents every setting; edit it to point at your relay and tune
the sync timing. Re-running resets the file to defaults.`,
	Example: `  smartmotor init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfig(); err != nil {
			return err
		}
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Printf("Config file ready at %s\n", path)
		return nil
	},
}
