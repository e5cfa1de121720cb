package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/console"
	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/discovery"
	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/notify"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
	"github.com/muurk/modbusreader/internal/ui"
)

// Command flags
var (
	scanTimeout  time.Duration
	outputFormat string
	exportOutput string
	exportDir    string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(registersCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(consoleCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func troubleshoot(err error) []string {
	if hint := deviceconfig.GetTroubleshootingHint(err); hint != "" {
		return []string{hint}
	}
	return nil
}

// fail prints a failure box and returns err for the exit status.
func fail(p *ui.Printer, title string, err error) error {
	p.PrintError(title, err, troubleshoot(err)...)
	return err
}

// scanCmd discovers configuration services on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for configuration services on the network",
	Long: `Scan for modbusreader configuration services using mDNS/DNS-SD.

Services advertise themselves as ` + discovery.ServiceType + ` with the reader
serial number and product code in their TXT records.`,
	Example: `  # Scan for 10 seconds (default)
  modbusreader-cfg scan

  # Quick scan
  modbusreader-cfg scan --scan-timeout 3s`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "How long to listen for services")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	reg := loadRegistry()
	_, _ = fmt.Fprintf(out, "Scanning for configuration services (timeout: %s)...\n\n", scanTimeout)

	s := discovery.NewScanner()
	s.Timeout = scanTimeout
	devices, err := s.ScanForDevices(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		_, _ = fmt.Fprintln(out, "No services found.")
		_, _ = fmt.Fprintln(out, "\nTroubleshooting:")
		_, _ = fmt.Fprintln(out, "  - Ensure modbusreader-server is running with advertising enabled")
		_, _ = fmt.Fprintln(out, "  - mDNS needs UDP port 5353 and the same network segment")
		_, _ = fmt.Fprintln(out, "  - Try increasing --scan-timeout for slower networks")
		_, _ = fmt.Fprintln(out, "  - Use --device to specify the service URL directly")
		return nil
	}

	_, _ = fmt.Fprintf(out, "Found %d service(s):\n\n", len(devices))
	for i, d := range devices {
		name := d.Hostname
		if _, known := reg.Resolve(d.Serial); known != nil && known.Nickname != "" {
			name = known.Nickname + " (" + d.Hostname + ")"
		}
		_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, name)
		_, _ = fmt.Fprintf(out, "   Serial:  %s\n", d.Serial)
		if product := d.GetMetadata(discovery.TxtProduct); product != "" {
			_, _ = fmt.Fprintf(out, "   Product: %s\n", product)
		}
		_, _ = fmt.Fprintf(out, "   URL:     %s\n\n", d.BaseURL())
	}

	_, _ = fmt.Fprintln(out, "Use 'modbusreader-cfg show --device <url>' to view the runtime configuration")
	_, _ = fmt.Fprintln(out, "Use 'modbusreader-cfg console' for interactive configuration")
	return nil
}

// infoCmd displays device information
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information",
	Example: `  modbusreader-cfg info --device 192.168.1.50
  modbusreader-cfg info --device dock-door`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	p := ui.NewPrinter(cmd.OutOrStdout())
	reg := loadRegistry()
	t, client, err := connect(ctx, reg, p.Writer())
	if err != nil {
		return err
	}

	info, err := client.GetDeviceInfo(ctx)
	if err != nil {
		return fail(p, "Failed to read device information", err)
	}
	remember(reg, t, info)

	if outputFormat == "json" {
		return printJSON(p, info)
	}
	p.Println(deviceconfig.FormatDeviceInfo(info))
	return nil
}

// showCmd displays the runtime configuration
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the runtime configuration",
	Long: `Display device information and the runtime configuration of a reader:
the memory selector flags and every data length.`,
	Example: `  # Show with auto-discovery
  modbusreader-cfg show

  # Compact output
  modbusreader-cfg show --device 192.168.1.50 --format compact

  # JSON output for scripting
  modbusreader-cfg show --device 192.168.1.50 --format json`,
	RunE: runShow,
}

func init() {
	for _, c := range []*cobra.Command{showCmd, infoCmd, registersCmd} {
		c.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	p := ui.NewPrinter(cmd.OutOrStdout())
	reg := loadRegistry()
	t, client, err := connect(ctx, reg, p.Writer())
	if err != nil {
		return err
	}

	info, err := client.GetDeviceInfo(ctx)
	if err != nil {
		return fail(p, "Failed to read device information", err)
	}
	remember(reg, t, info)

	shape, err := client.GetRuntimeConfig(ctx)
	if err != nil {
		return fail(p, "Failed to read runtime configuration", err)
	}

	switch outputFormat {
	case "json":
		return printJSON(p, shape)
	case "compact":
		p.Println(deviceconfig.FormatCompact(info, shape))
	default:
		p.Println(deviceconfig.FormatDetailed(info, shape))
	}

	warnings, _ := deviceconfig.SeparateWarningsAndErrors(deviceconfig.ValidateRuntimeConfig(runtimeconfig.New(shape)))
	for _, w := range warnings {
		p.Println(ui.WarningTitleStyle.Render(ui.WarningMarker + " " + w.Error()))
	}
	return nil
}

func printJSON(p *ui.Printer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	p.Println(string(data))
	return nil
}

// registersCmd lists the runtime register map
var registersCmd = &cobra.Command{
	Use:   "registers",
	Short: "List the runtime registers",
	Long: `List the runtime registers the reader exposes for its current runtime
configuration, with hexadecimal and decimal addresses, length in words,
register type and description.`,
	RunE: runRegisters,
}

func runRegisters(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	p := ui.NewPrinter(cmd.OutOrStdout())
	_, client, err := connect(ctx, loadRegistry(), p.Writer())
	if err != nil {
		return err
	}

	items, err := client.GetRuntimeRegisterList(ctx)
	if err != nil {
		return fail(p, "Failed to read runtime registers", err)
	}
	if outputFormat == "json" {
		if items == nil {
			items = []deviceconfig.RuntimeRegisterItem{}
		}
		return printJSON(p, items)
	}
	if len(items) == 0 {
		p.Println("No runtime registers for this configuration.")
		return nil
	}
	p.Println(deviceconfig.FormatRegisterTable(items))
	return nil
}

// exportCmd saves the runtime register export
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the runtime registers as a tab-separated file",
	Example: `  # Writes RuntimeRegister_YYYYMMDD.txt in the current directory
  modbusreader-cfg export --device 192.168.1.50

  # Choose the file name; "-" writes to stdout
  modbusreader-cfg export -o registers.tsv`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default RuntimeRegister_YYYYMMDD.txt)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	p := ui.NewPrinter(cmd.OutOrStdout())
	progress := p.Writer()
	if exportOutput == "-" {
		progress = cmd.ErrOrStderr()
	}
	_, client, err := connect(ctx, loadRegistry(), progress)
	if err != nil {
		return err
	}

	data, err := client.ExportRuntimeConfig(ctx)
	if err != nil {
		return fail(p, "Export failed", err)
	}

	if exportOutput == "-" {
		_, err := fmt.Fprint(p.Writer(), data)
		return err
	}

	path := exportOutput
	if path == "" {
		path = deviceconfig.ExportFileName(time.Now())
	}
	if err := writeExport(path, data); err != nil {
		return fail(p, "Export failed", err)
	}
	p.PrintSuccess("Runtime registers exported", ui.Param{Key: "File", Value: path})
	return nil
}

func writeExport(path, data string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// watchCmd streams service notifications
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream notifications from a configuration service",
	Long: `Print every notification the service broadcasts (configuration updates
and reader failures) until interrupted.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	p := ui.NewPrinter(cmd.OutOrStdout())
	t, client, err := connect(ctx, loadRegistry(), p.Writer())
	if err != nil {
		return err
	}

	p.Println(fmt.Sprintf("Watching %s (Ctrl+C to stop)...", t.Name))
	err = client.WatchNotifications(ctx, func(n notify.Notification) {
		p.Println(formatNotification(n))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fail(p, "Notification stream closed", err)
	}
	return nil
}

func formatNotification(n notify.Notification) string {
	style := ui.StatusInfoStyle
	marker := ui.SuccessMarker
	if n.Kind == notify.KindError {
		style = ui.StatusErrorStyle
		marker = ui.FailureMarker
	}
	return style.Render(fmt.Sprintf("%s %s  %s", n.Time.Local().Format("15:04:05"), marker, n.Message))
}

// consoleCmd launches the interactive console
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Launch the interactive console",
	Long: `Launch the full-screen console.

Without --device it starts on the discovery screen, listing services found
over mDNS together with readers from the device registry. The reader screen
has three tabs: Device Info, Runtime Configuration and Runtime Register.`,
	Example: `  modbusreader-cfg
  modbusreader-cfg console --device 192.168.1.50`,
	RunE: runConsole,
}

func init() {
	for _, c := range []*cobra.Command{consoleCmd, rootCmd} {
		c.Flags().StringVar(&exportDir, "export-dir", ".", "Directory for register exports")
	}
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	// Log output would corrupt the alternate screen.
	if logging.GetLogger().Core().Enabled(zap.ErrorLevel) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Logging is disabled while the console is open")
		logging.SetLogger(zap.NewNop())
	}

	reg := loadRegistry()
	user, pass := credentials(reg)
	opts := console.Options{
		Username:  user,
		Password:  pass,
		Timeout:   timeout,
		ExportDir: exportDir,
		Registry:  reg,
		Scan:      newScanner(reg).ScanForDevices,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = reg.Preferences.RequestDuration()
	}
	if deviceFlag != "" {
		t, err := resolveTarget(ctx, reg, cmd.ErrOrStderr(), newScanner(reg))
		if err != nil {
			return err
		}
		opts.URL, opts.Name = t.URL, t.Name
	}
	return console.Run(ctx, opts)
}
