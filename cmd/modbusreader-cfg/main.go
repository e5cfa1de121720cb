// Modbusreader-cfg is the operator console for modbusreader configuration
// services.
//
// It discovers services over mDNS, shows device information and the runtime
// register map, and edits the reader's runtime configuration either through
// direct commands or the interactive console.
//
// Usage:
//
//	modbusreader-cfg [command] [flags]
//
// Running without arguments launches the interactive console.
// See 'modbusreader-cfg --help' for available commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	deviceFlag string
	username   string
	password   string
	timeout    time.Duration
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "modbusreader-cfg",
	Short: "Modbus RFID reader configuration console",
	Long: `Configure Modbus RFID readers through their configuration service.

Provides service discovery, device information, the runtime register map,
and runtime configuration editing (memory selector flags and data lengths).

If no command is specified, the interactive console launches.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runConsole,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "", "Service URL, host[:port], serial number or nickname (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "url", "", "Alias for --device")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", "", "Username for configuration writes (default from preferences)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password for configuration writes (or MODBUSREADER_PASSWORD)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (default from preferences)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty (or "+logging.LogLevelEnvVar+")")
	_ = rootCmd.PersistentFlags().MarkHidden("url")

	rootCmd.AddCommand(versionCmd)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionJSON {
			data, err := json.MarshalIndent(version.Get(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			_, _ = fmt.Fprintln(out, string(data))
			return nil
		}
		_, _ = fmt.Fprintf(out, "modbusreader-cfg %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}
