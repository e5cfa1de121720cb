package deviceconfig

import (
	"fmt"
	"strings"
	"time"
)

// REST paths of the device configuration service, relative to the base URL.
const (
	APIPrefix = "/rest/app/modbusreader"

	PathDeviceInfo    = APIPrefix + "/device/info"
	PathRuntimeConfig = APIPrefix + "/runtime/configuration"
	PathRuntime       = APIPrefix + "/runtime"
	PathRuntimeExport = APIPrefix + "/runtime/export"
	PathEvents        = APIPrefix + "/events"
	PathHealth        = "/health"

	// HeaderClientID carries Client.ID on every request so the service can
	// tag the notifications a request causes.
	HeaderClientID = "X-Modbusreader-Client"
)

// DeviceInfo is the identification block of the reader.
// Every field is a display string; the serial number is the decimal
// rendering of the device's 64-bit serial register.
type DeviceInfo struct {
	VendorName         string `json:"vendorName"`
	ProductCode        string `json:"productCode"`
	MajorMinorRevision string `json:"majorMinorRevision"`
	SerialNumber       string `json:"serialNumber"`
	HardwareRevision   string `json:"hardwareRevision"`
	BaseFirmware       string `json:"baseFirmware"`
}

// String returns a one-line summary of the device.
func (di *DeviceInfo) String() string {
	return fmt.Sprintf("%s %s (S/N %s, Rev %s, FW %s)",
		di.VendorName, di.ProductCode, di.SerialNumber, di.MajorMinorRevision, di.BaseFirmware)
}

// RegisterType is the Modbus table a register lives in.
type RegisterType string

const (
	RegisterHolding RegisterType = "HOLDING"
	RegisterInput   RegisterType = "INPUT"
)

// ParseRegisterType accepts the wire names, case-insensitively.
func ParseRegisterType(s string) (RegisterType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RegisterHolding):
		return RegisterHolding, nil
	case string(RegisterInput):
		return RegisterInput, nil
	default:
		return "", fmt.Errorf("unknown register type %q", s)
	}
}

// RuntimeRegisterItem describes one entry of the runtime register map.
type RuntimeRegisterItem struct {
	AddressHex  string       `json:"addressHex"`
	AddressDez  string       `json:"addressDez"`
	Length      int          `json:"length"`
	Type        RegisterType `json:"type"`
	Description string       `json:"description"`
}

// NewRuntimeRegisterItem builds an item, rendering the address in both bases.
func NewRuntimeRegisterItem(address uint16, length int, typ RegisterType, description string) RuntimeRegisterItem {
	return RuntimeRegisterItem{
		AddressHex:  fmt.Sprintf("0x%04X", address),
		AddressDez:  fmt.Sprintf("%d", address),
		Length:      length,
		Type:        typ,
		Description: description,
	}
}

// ExportHeader is the first line of a runtime register export.
const ExportHeader = "Register address (HEX)\tRegister address (DEC)\tLength (WORD)\tRegister type\tDescription"

// ExportLine renders the item as one tab-separated export line, without newline.
func (r RuntimeRegisterItem) ExportLine() string {
	return fmt.Sprintf("%s\t%s\t%d\t%s\t%s", r.AddressHex, r.AddressDez, r.Length, r.Type, r.Description)
}

// ExportFileName returns the download name for an export taken at t,
// formatted as RuntimeRegister_YYYYMMDD.txt.
func ExportFileName(t time.Time) string {
	return "RuntimeRegister_" + t.Format("20060102") + ".txt"
}

// BuildExport renders the header line followed by one line per item,
// each terminated by a newline.
func BuildExport(items []RuntimeRegisterItem) string {
	var b strings.Builder
	b.WriteString(ExportHeader)
	b.WriteByte('\n')
	for _, r := range items {
		b.WriteString(r.ExportLine())
		b.WriteByte('\n')
	}
	return b.String()
}
