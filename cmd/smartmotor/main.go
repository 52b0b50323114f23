// Smartmotor is the device agent for a SmartMotor controller/receiver pair.
//
// A controller reads its knob and publishes position changes through a
// channel relay; a receiver listens for the controller's topic and drives
// its servo to match. Both roles keep each other alive with heartbeats and
// resynchronize automatically after a reconnect.
//
// Usage:
//
//	smartmotor controller [flags]
//	smartmotor receiver [flags]
//
// See 'smartmotor --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

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
	Use:   "smartmotor",
	Short: "SmartMotor Device Agent",
	Long: `The device agent for a SmartMotor controller/receiver pair.

Run as a controller to publish a knob position, or as a receiver to drive
a servo from a controller's position. Both devices meet on a shared channel
relay and stay synchronized through reconnects.

Getting started guide: ` + urls.GettingStarted,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smartmotor %s\n", version.Full())
	},
}
