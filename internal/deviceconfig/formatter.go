package deviceconfig

import (
	"fmt"
	"strings"

	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// FormatDeviceInfo returns a formatted block with device identification information
func FormatDeviceInfo(di *DeviceInfo) string {
	var b strings.Builder

	b.WriteString("=== Device Information ===\n")
	b.WriteString(fmt.Sprintf("Vendor:            %s\n", di.VendorName))
	b.WriteString(fmt.Sprintf("Product Code:      %s\n", di.ProductCode))
	b.WriteString(fmt.Sprintf("Revision:          %s\n", di.MajorMinorRevision))
	b.WriteString(fmt.Sprintf("Serial Number:     %s\n", di.SerialNumber))
	b.WriteString(fmt.Sprintf("Hardware Revision: %s\n", di.HardwareRevision))
	b.WriteString(fmt.Sprintf("Base Firmware:     %s\n", di.BaseFirmware))

	return b.String()
}

func formatLength(rc *runtimeconfig.RuntimeConfiguration, l runtimeconfig.Length) string {
	v, ok := rc.Length(l)
	if !ok {
		return "(unset)"
	}
	return fmt.Sprintf("%d", v)
}

func formatSelector(rc *runtimeconfig.RuntimeConfiguration) string {
	sel, ok := rc.Selector()
	if !ok {
		return "(unset)"
	}
	return fmt.Sprintf("0x%04X (0b%05b)", uint16(sel), uint16(sel&runtimeconfig.FlagMask))
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

// FormatRuntimeConfig returns a formatted block with the runtime configuration
func FormatRuntimeConfig(shape *runtimeconfig.Shape) string {
	rc := runtimeconfig.New(shape)
	var b strings.Builder

	b.WriteString("=== Runtime Configuration ===\n")
	b.WriteString(fmt.Sprintf("%-28s %s\n", runtimeconfig.TagsInField.Label()+":", formatLength(rc, runtimeconfig.TagsInField)))
	b.WriteString(fmt.Sprintf("%-28s %s\n", "Memory selector:", formatSelector(rc)))
	for _, f := range runtimeconfig.Flags() {
		b.WriteString(fmt.Sprintf("  %s Include %s\n", checkbox(rc.Flag(f)), f.Label()))
	}
	for _, l := range runtimeconfig.Lengths()[1:] {
		b.WriteString(fmt.Sprintf("%-28s %s\n", l.Label()+":", formatLength(rc, l)))
	}

	return b.String()
}

// FormatCompact returns a compact multi-line format suitable for terminal display
func FormatCompact(di *DeviceInfo, shape *runtimeconfig.Shape) string {
	rc := runtimeconfig.New(shape)
	var b strings.Builder

	if di != nil {
		b.WriteString(fmt.Sprintf("Device:   %s %s (S/N %s)\n", di.VendorName, di.ProductCode, di.SerialNumber))
		b.WriteString(fmt.Sprintf("Firmware: %s\n", di.BaseFirmware))
	}

	var flags []string
	for _, f := range runtimeconfig.Flags() {
		if rc.Flag(f) {
			flags = append(flags, f.Label())
		}
	}
	if len(flags) == 0 {
		flags = []string{"none"}
	}

	b.WriteString(fmt.Sprintf("Tags:     %s\n", formatLength(rc, runtimeconfig.TagsInField)))
	b.WriteString(fmt.Sprintf("Include:  %s\n", strings.Join(flags, ", ")))
	b.WriteString(fmt.Sprintf("Banks:    EPC %s, TID %s, User %s\n",
		formatLength(rc, runtimeconfig.EPCLength),
		formatLength(rc, runtimeconfig.TIDLength),
		formatLength(rc, runtimeconfig.UserLength)))
	b.WriteString(fmt.Sprintf("Masks:    %s x %s\n",
		formatLength(rc, runtimeconfig.SelectionMaskCount),
		formatLength(rc, runtimeconfig.SelectionMaskMaxLength)))
	b.WriteString(fmt.Sprintf("Custom:   %s\n", formatLength(rc, runtimeconfig.CustomOperationMaxLength)))

	return b.String()
}

// FormatDetailed returns device information and runtime configuration together
func FormatDetailed(di *DeviceInfo, shape *runtimeconfig.Shape) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("╔════════════════════════════════════════════════════════════════╗\n")
	b.WriteString("║              MODBUS READER CONFIGURATION                       ║\n")
	b.WriteString("╚════════════════════════════════════════════════════════════════╝\n")
	b.WriteString("\n")

	if di != nil {
		b.WriteString(FormatDeviceInfo(di))
		b.WriteString("\n")
	}
	b.WriteString(FormatRuntimeConfig(shape))

	return b.String()
}

// FormatRegisterTable renders the runtime register map as an aligned table.
func FormatRegisterTable(items []RuntimeRegisterItem) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%-8s %-6s %-6s %-8s %s\n", "HEX", "DEC", "WORDS", "TYPE", "DESCRIPTION"))
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, r := range items {
		b.WriteString(fmt.Sprintf("%-8s %-6s %-6d %-8s %s\n", r.AddressHex, r.AddressDez, r.Length, r.Type, r.Description))
	}
	if len(items) == 0 {
		b.WriteString("(no runtime registers)\n")
	}

	return b.String()
}

// FormatDiff returns a formatted diff between two runtime configurations
func FormatDiff(old, new *runtimeconfig.Shape) string {
	var b strings.Builder

	b.WriteString("=== Configuration Differences ===\n")

	before := runtimeconfig.New(old)
	after := runtimeconfig.New(new)
	hasChanges := false

	for _, f := range runtimeconfig.Flags() {
		if before.Flag(f) != after.Flag(f) {
			b.WriteString(fmt.Sprintf("  %-28s %v → %v\n", f.String()+":", before.Flag(f), after.Flag(f)))
			hasChanges = true
		}
	}
	for _, l := range runtimeconfig.Lengths() {
		if formatLength(before, l) != formatLength(after, l) {
			b.WriteString(fmt.Sprintf("  %-28s %s → %s\n", l.String()+":", formatLength(before, l), formatLength(after, l)))
			hasChanges = true
		}
	}

	if !hasChanges {
		b.WriteString("\n(no differences detected)\n")
	}

	return b.String()
}
