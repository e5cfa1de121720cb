package reader

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// bank is an in-memory register table pair.
type bank struct {
	mu       sync.Mutex
	input    map[uint16]uint16
	holding  map[uint16]uint16
	writes   int
	failRead error
	dials    int
	closes   int
}

func newBank() *bank {
	return &bank{input: map[uint16]uint16{}, holding: map[uint16]uint16{}}
}

func (b *bank) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

func (b *bank) dial(Config) (Registers, io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	return b, b, nil
}

func (b *bank) readTable(t map[uint16]uint16, address, quantity uint16) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRead != nil {
		return nil, b.failRead
	}
	out := make([]byte, 2*int(quantity))
	for i := uint16(0); i < quantity; i++ {
		binary.BigEndian.PutUint16(out[2*i:], t[address+i])
	}
	return out, nil
}

func (b *bank) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return b.readTable(b.input, address, quantity)
}

func (b *bank) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return b.readTable(b.holding, address, quantity)
}

func (b *bank) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	for i := uint16(0); i < quantity; i++ {
		b.holding[address+i] = binary.BigEndian.Uint16(value[2*i:])
	}
	return value[:2], nil
}

func (b *bank) putString(f Field, s string) {
	raw := make([]byte, 2*int(f.Quantity))
	copy(raw, s)
	for i := uint16(0); i < f.Quantity; i++ {
		b.input[f.Address+i] = binary.BigEndian.Uint16(raw[2*i:])
	}
}

func (b *bank) putSerial(v int64) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(v))
	for i := uint16(0); i < 4; i++ {
		b.input[FieldSerialNumber.Address+i] = binary.BigEndian.Uint16(raw[2*i:])
	}
}

func (b *bank) putConfig(values ...uint16) {
	for i, v := range values {
		b.holding[RuntimeConfigAddress+uint16(i)] = v
	}
}

func TestDeviceInfo(t *testing.T) {
	b := newBank()
	b.putString(FieldVendorName, "HARTING")
	b.putString(FieldProductCode, "Ha-VIS RF-R350")
	b.putString(FieldMajorMinorRevision, "1.4")
	b.putString(FieldHardwareRevision, "2")
	b.putString(FieldBaseFirmware, "3.1.0")
	b.putSerial(315260240)

	dev := NewDeviceWithDialer(DefaultConfig(), b.dial)
	info, err := dev.DeviceInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "HARTING", info.VendorName)
	assert.Equal(t, "Ha-VIS RF-R350", info.ProductCode)
	assert.Equal(t, "1.4", info.MajorMinorRevision)
	assert.Equal(t, "315260240", info.SerialNumber)
	assert.Equal(t, "2", info.HardwareRevision)
	assert.Equal(t, "3.1.0", info.BaseFirmware)
	assert.Equal(t, 1, b.dials)
	assert.Equal(t, 1, b.closes)
}

func TestDecodeSerialSigned(t *testing.T) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, 0xFFFFFFFFFFFFFFFE)
	assert.Equal(t, "-2", decodeSerial(raw))
}

func TestDecodeStringStopsAtNUL(t *testing.T) {
	assert.Equal(t, "ab", decodeString([]byte{'a', 'b', 0, 'c'}))
	assert.Equal(t, "", decodeString([]byte{0, 'x'}))
	assert.Equal(t, "full", decodeString([]byte("full")))
}

func TestRuntimeConfigRoundTrip(t *testing.T) {
	b := newBank()
	b.putConfig(2, 0x8015, 12, 0, 4, 1, 8, 0)

	dev := NewDeviceWithDialer(DefaultConfig(), b.dial)
	rc, err := dev.RuntimeConfig(context.Background())
	require.NoError(t, err)

	shape := rc.Flatten()
	require.True(t, shape.Complete())
	assert.Equal(t, uint16(0x8015), *shape.MemorySelector)
	assert.True(t, *shape.IncludeKillPwd)
	assert.True(t, *shape.IncludeXPC)
	assert.Equal(t, uint16(2), *shape.TagsInField)
	assert.Equal(t, uint16(8), *shape.SelectionMaskMaxLength)

	rc.SetFlag(runtimeconfig.IncludePC, true)
	rc.SetLength(runtimeconfig.UserLength, 6)
	require.NoError(t, dev.WriteRuntimeConfig(context.Background(), rc))

	assert.Equal(t, 1, b.writes, "the block is written in a single request")
	assert.Equal(t, uint16(0x801D), b.holding[1], "reserved bit survives the write")
	assert.Equal(t, uint16(6), b.holding[4])
	assert.Equal(t, uint16(2), b.holding[0])
}

func TestEncodeRuntimeConfigAbsentIsZero(t *testing.T) {
	rc := runtimeconfig.New(&runtimeconfig.Shape{EPCLength: runtimeconfig.Uint16(3)})
	out := EncodeRuntimeConfig(rc)

	require.Len(t, out, 16)
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(out[2:]))
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(out[4:]))
}

func TestReadFailure(t *testing.T) {
	b := newBank()
	b.failRead = &modbus.ModbusError{FunctionCode: 0x04, ExceptionCode: 0x02}

	dev := NewDeviceWithDialer(DefaultConfig(), b.dial)
	_, err := dev.DeviceInfo(context.Background())
	require.Error(t, err)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "read", rerr.Op)
	assert.Equal(t, "vendorName", rerr.Field)

	code, ok := ExceptionCode(err)
	assert.True(t, ok)
	assert.Equal(t, byte(0x02), code)
	assert.Equal(t, 1, b.closes, "connection is closed after a failure")
}

func TestConnectFailure(t *testing.T) {
	dev := NewDeviceWithDialer(DefaultConfig(), func(Config) (Registers, io.Closer, error) {
		return nil, nil, errors.New("connection refused")
	})

	err := dev.WriteRuntimeConfig(context.Background(), runtimeconfig.New(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modbus connect failed: connection refused")
}

func TestCancelledContextSkipsDial(t *testing.T) {
	b := newBank()
	dev := NewDeviceWithDialer(DefaultConfig(), b.dial)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dev.RuntimeConfig(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, b.dials)
}

func TestExport(t *testing.T) {
	b := newBank()
	b.putConfig(1, 0, 0, 0, 0, 0, 0, 0)

	dev := NewDeviceWithDialer(DefaultConfig(), b.dial)
	out, err := dev.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		"Register address (HEX)\tRegister address (DEC)\tLength (WORD)\tRegister type\tDescription\n"+
			"0x0100\t256\t1\tINPUT\tNumber of tags in field\n"+
			"0x0101\t257\t1\tINPUT\tLast error code\n"+
			"0x0100\t256\t2\tHOLDING\tAccess password used for tag operations\n"+
			"0x0102\t258\t1\tHOLDING\tAntenna mask\n"+
			"0x0103\t259\t1\tHOLDING\tTag 1: lock operation\n"+
			"0x0104\t260\t2\tHOLDING\tTag 1: kill operation\n",
		out)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	rtu := DefaultConfig()
	rtu.Mode = ModeRTU
	rtu.Address = "/dev/ttyUSB0"
	assert.NoError(t, rtu.Validate())

	rtu.Parity = "X"
	assert.Error(t, rtu.Validate())

	bad := DefaultConfig()
	bad.Mode = "udp"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Address = ""
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Timeout = 0
	assert.Error(t, bad.Validate())
}
