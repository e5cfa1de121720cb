package reader

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// Device is a reader reached over Modbus. Every operation opens its own
// connection and closes it when done; operations are serialised.
type Device struct {
	cfg  Config
	dial DialFunc
	mu   sync.Mutex
}

// NewDevice creates a Device that dials with goburrow/modbus.
func NewDevice(cfg Config) *Device {
	return NewDeviceWithDialer(cfg, Dial)
}

// NewDeviceWithDialer creates a Device using dial to open connections.
func NewDeviceWithDialer(cfg Config, dial DialFunc) *Device {
	return &Device{cfg: cfg, dial: dial}
}

// Config returns the connection settings.
func (d *Device) Config() Config {
	return d.cfg
}

// session runs fn on a fresh connection.
func (d *Device) session(ctx context.Context, fn func(regs Registers) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	regs, closer, err := d.dial(d.cfg)
	if err != nil {
		logging.LogConnection(d.cfg.Address, "modbus_connect_failed")
		return &Error{Op: "connect", Err: err}
	}
	logging.LogConnection(d.cfg.Address, "modbus_connected")
	defer func() {
		if closer != nil {
			_ = closer.Close()
		}
		logging.LogConnection(d.cfg.Address, "modbus_disconnected")
	}()

	return fn(regs)
}

func read(regs Registers, f Field) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if f.Type == deviceconfig.RegisterInput {
		data, err = regs.ReadInputRegisters(f.Address, f.Quantity)
	} else {
		data, err = regs.ReadHoldingRegisters(f.Address, f.Quantity)
	}
	if err != nil {
		return nil, &Error{Op: "read", Field: f.Name, Address: f.Address, Quantity: f.Quantity, Err: err}
	}
	logging.LogRegisterRead(string(f.Type), f.Address, f.Quantity, data)
	if len(data) < int(f.Quantity)*2 {
		return nil, &Error{Op: "read", Field: f.Name, Address: f.Address, Quantity: f.Quantity,
			Err: fmt.Errorf("short response: %d bytes", len(data))}
	}
	return data[:int(f.Quantity)*2], nil
}

// decodeString returns the registers as UTF-8 text up to the first NUL byte.
func decodeString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// decodeSerial renders four registers as a signed 64-bit big-endian decimal.
func decodeSerial(data []byte) string {
	return strconv.FormatInt(int64(binary.BigEndian.Uint64(data)), 10)
}

// DeviceInfo reads the identification block.
func (d *Device) DeviceInfo(ctx context.Context) (*deviceconfig.DeviceInfo, error) {
	var info deviceconfig.DeviceInfo
	err := d.session(ctx, func(regs Registers) error {
		strs := []struct {
			f   Field
			dst *string
		}{
			{FieldVendorName, &info.VendorName},
			{FieldProductCode, &info.ProductCode},
			{FieldMajorMinorRevision, &info.MajorMinorRevision},
			{FieldHardwareRevision, &info.HardwareRevision},
			{FieldBaseFirmware, &info.BaseFirmware},
		}
		for _, s := range strs {
			data, err := read(regs, s.f)
			if err != nil {
				return err
			}
			*s.dst = decodeString(data)
		}

		data, err := read(regs, FieldSerialNumber)
		if err != nil {
			return err
		}
		info.SerialNumber = decodeSerial(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

var runtimeConfigField = Field{
	Name:     "runtime configuration",
	Type:     deviceconfig.RegisterHolding,
	Address:  RuntimeConfigAddress,
	Quantity: RuntimeConfigQuantity,
}

func readRuntimeConfig(regs Registers) (*runtimeconfig.RuntimeConfiguration, error) {
	data, err := read(regs, runtimeConfigField)
	if err != nil {
		return nil, err
	}
	rc := runtimeconfig.New(nil)
	for i, l := range runtimeConfigOrder {
		v := binary.BigEndian.Uint16(data[2*i:])
		if l == selectorSlot {
			rc.SetSelector(runtimeconfig.Selector(v))
			continue
		}
		rc.SetLength(l, v)
	}
	return rc, nil
}

// RuntimeConfig reads the runtime configuration block.
func (d *Device) RuntimeConfig(ctx context.Context) (*runtimeconfig.RuntimeConfiguration, error) {
	var rc *runtimeconfig.RuntimeConfiguration
	err := d.session(ctx, func(regs Registers) error {
		var err error
		rc, err = readRuntimeConfig(regs)
		return err
	})
	return rc, err
}

// EncodeRuntimeConfig packs rc into the register image of the runtime
// configuration block. Absent values are written as zero.
func EncodeRuntimeConfig(rc *runtimeconfig.RuntimeConfiguration) []byte {
	out := make([]byte, 2*len(runtimeConfigOrder))
	for i, l := range runtimeConfigOrder {
		var v uint16
		if l == selectorSlot {
			sel, _ := rc.Selector()
			v = uint16(sel)
		} else {
			v = rc.LengthOrZero(l)
		}
		binary.BigEndian.PutUint16(out[2*i:], v)
	}
	return out
}

// WriteRuntimeConfig writes the whole runtime configuration block in one request.
func (d *Device) WriteRuntimeConfig(ctx context.Context, rc *runtimeconfig.RuntimeConfiguration) error {
	payload := EncodeRuntimeConfig(rc)
	return d.session(ctx, func(regs Registers) error {
		f := runtimeConfigField
		if _, err := regs.WriteMultipleRegisters(f.Address, f.Quantity, payload); err != nil {
			return &Error{Op: "write", Field: f.Name, Address: f.Address, Quantity: f.Quantity, Err: err}
		}
		logging.LogRegisterWrite(f.Address, f.Quantity, payload)
		return nil
	})
}

// RuntimeRegisters reads the current configuration and derives the runtime
// register map from it.
func (d *Device) RuntimeRegisters(ctx context.Context) ([]deviceconfig.RuntimeRegisterItem, error) {
	rc, err := d.RuntimeConfig(ctx)
	if err != nil {
		return nil, err
	}
	return RuntimeRegisters(rc)
}

// Export renders the runtime register map as tab-separated text.
func (d *Device) Export(ctx context.Context) (string, error) {
	items, err := d.RuntimeRegisters(ctx)
	if err != nil {
		return "", err
	}
	return deviceconfig.BuildExport(items), nil
}
