package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/muurk/modbusreader/internal/config"
	"github.com/muurk/modbusreader/internal/ui"
)

// devicesCmd manages the local device registry
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage known readers",
	Long: `Readers are recorded by serial number with their last service URL
whenever a command reads their device information. A nickname can then be
used with --device in place of a URL.`,
	RunE: runDevicesList,
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known readers",
	RunE:  runDevicesList,
}

var devicesNicknameCmd = &cobra.Command{
	Use:     "nickname <serial|nickname> <new-nickname>",
	Short:   "Set a reader's nickname",
	Example: `  modbusreader-cfg devices nickname 315260240 dock-door`,
	Args:    cobra.ExactArgs(2),
	RunE:    runDevicesNickname,
}

var devicesForgetCmd = &cobra.Command{
	Use:   "forget <serial|nickname>",
	Short: "Remove a reader from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesForget,
}

func init() {
	devicesCmd.AddCommand(devicesListCmd, devicesNicknameCmd, devicesForgetCmd)
	rootCmd.AddCommand(devicesCmd)
}

func openRegistry() (*config.Registry, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load device registry: %w", err)
	}
	return reg, nil
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	listDevices(cmd.OutOrStdout(), reg)
	return nil
}

func listDevices(out io.Writer, reg *config.Registry) {
	serials := reg.Serials()
	if len(serials) == 0 {
		_, _ = fmt.Fprintln(out, "No known readers. Run 'modbusreader-cfg info --device <url>' to record one.")
		return
	}

	rows := make([][]string, 0, len(serials))
	for _, serial := range serials {
		d := reg.GetDevice(serial)
		lastSeen := "-"
		if !d.LastSeen.IsZero() {
			lastSeen = d.LastSeen.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{serial, orDash(d.Nickname), orDash(d.Product), orDash(d.LastURL), lastSeen})
	}
	_, _ = fmt.Fprintln(out, ui.RenderTable([]string{"SERIAL", "NICKNAME", "PRODUCT", "LAST URL", "LAST SEEN"}, rows))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runDevicesNickname(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	serial, err := setNickname(reg, args[0], args[1])
	if err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save device registry: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reader %s is now %q\n", serial, args[1])
	return nil
}

// setNickname names a reader. Unknown serials are added so a reader can be
// named before it is first contacted.
func setNickname(reg *config.Registry, name, nickname string) (string, error) {
	serial, d := reg.Resolve(name)
	if d == nil {
		serial = name
	}
	if other, od := reg.Resolve(nickname); od != nil && other != serial {
		return "", fmt.Errorf("%q already refers to reader %s", nickname, other)
	}
	reg.SetDeviceNickname(serial, nickname)
	return serial, nil
}

func runDevicesForget(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	serial, d := reg.Resolve(args[0])
	if d == nil || !reg.RemoveDevice(serial) {
		return fmt.Errorf("unknown reader %q", args[0])
	}
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save device registry: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Forgot reader %s\n", serial)
	return nil
}
