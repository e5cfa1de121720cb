// Modbusreader-server is the device configuration service for a Modbus RFID
// reader.
//
// It talks to the reader over Modbus TCP or RTU and exposes device
// information, the runtime configuration and the runtime register map as a
// REST API, with a websocket stream of notifications. The service can
// advertise itself over mDNS so modbusreader-cfg finds it without an address.
//
// Usage:
//
//	modbusreader-server serve [flags]
//
// Settings come from modbusreader.yaml, MODBUSREADER_* environment variables
// (a .env file in the working directory is loaded first) and flags, in
// increasing priority.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/config"
	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/reader"
	"github.com/muurk/modbusreader/internal/server"
	"github.com/muurk/modbusreader/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "modbusreader-server",
	Short: "Modbus RFID reader configuration service",
	Long: `A REST service in front of a Modbus RFID reader's register map.

Serves device information, the runtime configuration (read and write) and
the runtime register list under ` + "/rest/app/modbusreader" + `.

Note: for interactive configuration, use the separate 'modbusreader-cfg' utility.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	configPath    string
	envFile       string
	host          string
	port          int
	logLevel      string
	readerMode    string
	readerAddress string
	slaveID       uint8
	noAdvertise   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the configuration service",
	Long: `Start the configuration service.

Configuration writes require HTTP basic auth when server.username is set.
Setting server.cert_path and server.key_path serves HTTPS.`,
	Example: `  # Modbus TCP reader, defaults from modbusreader.yaml if present
  modbusreader-server serve --reader-address 192.168.1.60:502

  # Modbus RTU reader on a serial port
  modbusreader-server serve --reader-mode rtu --reader-address /dev/ttyUSB0

  # Explicit config file and debug logging
  modbusreader-server serve --config /etc/modbusreader/modbusreader.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Path to modbusreader.yaml (default: search . and the user config dir)")
	f.StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration (ignored if missing)")
	f.StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	f.IntVarP(&port, "port", "p", 0, "Listen port")
	f.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&readerMode, "reader-mode", "", "Modbus transport (tcp, rtu)")
	f.StringVar(&readerAddress, "reader-address", "", "Reader address (host:port for tcp, serial device for rtu)")
	f.Uint8Var(&slaveID, "slave-id", 0, "Modbus slave/unit id")
	f.BoolVar(&noAdvertise, "no-advertise", false, "Do not advertise the service over mDNS")
}

// loadConfig reads the .env file, the config file and the environment, then
// applies flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.ServiceConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := config.LoadServiceConfig(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("reader-mode") {
		cfg.Reader.Mode = readerMode
	}
	if flags.Changed("reader-address") {
		cfg.Reader.Address = readerAddress
	}
	if flags.Changed("slave-id") {
		cfg.Reader.SlaveID = slaveID
	}
	if noAdvertise {
		cfg.Server.Advertise = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serverConfig(cfg *config.ServiceConfig) *server.Config {
	return &server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Username:        cfg.Server.Username,
		Password:        cfg.Server.Password,
		CertPath:        cfg.Server.CertPath,
		KeyPath:         cfg.Server.KeyPath,
		Advertise:       cfg.Server.Advertise,
		Instance:        cfg.Server.Instance,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logging.Sync()

	logging.Info("modbusreader-server starting",
		zap.String("version", version.Full()),
		zap.String("reader_mode", cfg.Reader.Mode),
		zap.String("reader_address", cfg.Reader.Address),
		zap.Uint8("slave_id", cfg.Reader.SlaveID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(serverConfig(cfg), reader.NewDevice(cfg.Reader))
	return srv.Start(ctx)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "modbusreader-server %s\n", version.Full())
	},
}
