package reader

import (
	"errors"
	"fmt"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// Field is a contiguous block of registers on the reader.
type Field struct {
	Name     string
	Type     deviceconfig.RegisterType
	Address  uint16
	Quantity uint16
}

// Device identification block, input registers.
var (
	FieldVendorName         = Field{"vendorName", deviceconfig.RegisterInput, 0, 16}
	FieldProductCode        = Field{"productCode", deviceconfig.RegisterInput, 16, 16}
	FieldMajorMinorRevision = Field{"majorMinorRevision", deviceconfig.RegisterInput, 32, 16}
	FieldSerialNumber       = Field{"serialNumber", deviceconfig.RegisterInput, 48, 4}
	FieldHardwareRevision   = Field{"hardwareRevision", deviceconfig.RegisterInput, 52, 16}
	FieldBaseFirmware       = Field{"baseFirmware", deviceconfig.RegisterInput, 68, 16}
)

// RuntimeConfigAddress is the first holding register of the runtime
// configuration block. The block holds one word per field in the order of
// runtimeConfigOrder.
const RuntimeConfigAddress uint16 = 0

// runtimeConfigOrder is the register order of the runtime configuration
// block. A negative entry marks the memory selector.
var runtimeConfigOrder = []runtimeconfig.Length{
	runtimeconfig.TagsInField,
	selectorSlot,
	runtimeconfig.EPCLength,
	runtimeconfig.TIDLength,
	runtimeconfig.UserLength,
	runtimeconfig.SelectionMaskCount,
	runtimeconfig.SelectionMaskMaxLength,
	runtimeconfig.CustomOperationMaxLength,
}

const selectorSlot runtimeconfig.Length = -1

// RuntimeConfigQuantity is the size of the runtime configuration block in words.
var RuntimeConfigQuantity = uint16(len(runtimeConfigOrder))

// RuntimeRegisterBase is the first address of the runtime register map in
// both the holding and the input table.
const RuntimeRegisterBase uint16 = 0x0100

// words returns the number of registers needed for n bytes.
func words(n uint16) int {
	return (int(n) + 1) / 2
}

// ErrRegisterMapOverflow is returned when a configuration needs registers
// beyond address 0xFFFF.
var ErrRegisterMapOverflow = errors.New("runtime register map exceeds the 16-bit address space")

// registerSpace is the number of addresses in one register table.
const registerSpace = 1 << 16

type registerAllocator struct {
	next  map[deviceconfig.RegisterType]int
	items []deviceconfig.RuntimeRegisterItem
	err   error
}

func newRegisterAllocator() *registerAllocator {
	return &registerAllocator{next: map[deviceconfig.RegisterType]int{
		deviceconfig.RegisterHolding: int(RuntimeRegisterBase),
		deviceconfig.RegisterInput:   int(RuntimeRegisterBase),
	}}
}

// add appends the next block of typ. Once a block would end past the last
// address the allocator records the overflow and ignores further blocks.
func (a *registerAllocator) add(typ deviceconfig.RegisterType, length int, description string) {
	if a.err != nil {
		return
	}
	addr := a.next[typ]
	if addr+length > registerSpace {
		a.err = fmt.Errorf("%w: %q needs %s 0x%04X+%d", ErrRegisterMapOverflow, description, typ, addr, length)
		return
	}
	a.items = append(a.items, deviceconfig.NewRuntimeRegisterItem(uint16(addr), length, typ, description))
	a.next[typ] = addr + length
}

type tagField struct {
	desc    string
	words   func(rc *runtimeconfig.RuntimeConfiguration) int
	enabled func(rc *runtimeconfig.RuntimeConfiguration) bool
}

func always(*runtimeconfig.RuntimeConfiguration) bool { return true }

func fixed(n int) func(*runtimeconfig.RuntimeConfiguration) int {
	return func(*runtimeconfig.RuntimeConfiguration) int { return n }
}

func flagSet(f runtimeconfig.Flag) func(*runtimeconfig.RuntimeConfiguration) bool {
	return func(rc *runtimeconfig.RuntimeConfiguration) bool { return rc.Flag(f) }
}

func lengthSet(l runtimeconfig.Length) func(*runtimeconfig.RuntimeConfiguration) bool {
	return func(rc *runtimeconfig.RuntimeConfiguration) bool { return rc.LengthOrZero(l) > 0 }
}

func lengthWords(l runtimeconfig.Length) func(*runtimeconfig.RuntimeConfiguration) int {
	return func(rc *runtimeconfig.RuntimeConfiguration) int { return words(rc.LengthOrZero(l)) }
}

// Per-tag block, in register order.
var tagFields = []tagField{
	{"lock operation", fixed(1), always},
	{"kill operation", fixed(2), always},
	{"kill password", fixed(2), flagSet(runtimeconfig.IncludeKillPwd)},
	{"access password", fixed(2), flagSet(runtimeconfig.IncludeAccessPwd)},
	{"CRC", fixed(1), flagSet(runtimeconfig.IncludeCRC)},
	{"PC", fixed(1), flagSet(runtimeconfig.IncludePC)},
	{"EPC", lengthWords(runtimeconfig.EPCLength), lengthSet(runtimeconfig.EPCLength)},
	{"XPC", fixed(2), flagSet(runtimeconfig.IncludeXPC)},
	{"TID bank", lengthWords(runtimeconfig.TIDLength), lengthSet(runtimeconfig.TIDLength)},
	{"user bank", lengthWords(runtimeconfig.UserLength), lengthSet(runtimeconfig.UserLength)},
	{"custom command length", fixed(1), lengthSet(runtimeconfig.CustomOperationMaxLength)},
	{"custom command data", lengthWords(runtimeconfig.CustomOperationMaxLength), lengthSet(runtimeconfig.CustomOperationMaxLength)},
}

// RuntimeRegisters derives the runtime register map from a configuration:
// the fixed runtime fields, one block per selection mask, then one block per
// tag in the field containing the fields the configuration enables. A map
// that does not fit the register table yields ErrRegisterMapOverflow.
func RuntimeRegisters(rc *runtimeconfig.RuntimeConfiguration) ([]deviceconfig.RuntimeRegisterItem, error) {
	a := newRegisterAllocator()

	a.add(deviceconfig.RegisterInput, 1, "Number of tags in field")
	a.add(deviceconfig.RegisterInput, 1, "Last error code")
	a.add(deviceconfig.RegisterHolding, 2, "Access password used for tag operations")
	a.add(deviceconfig.RegisterHolding, 1, "Antenna mask")

	maskWords := words(rc.LengthOrZero(runtimeconfig.SelectionMaskMaxLength))
	for i := 1; i <= int(rc.LengthOrZero(runtimeconfig.SelectionMaskCount)) && a.err == nil; i++ {
		a.add(deviceconfig.RegisterHolding, 1, fmt.Sprintf("Selection mask %d: memory bank", i))
		a.add(deviceconfig.RegisterHolding, 1, fmt.Sprintf("Selection mask %d: mask length", i))
		a.add(deviceconfig.RegisterHolding, 1, fmt.Sprintf("Selection mask %d: bit offset", i))
		a.add(deviceconfig.RegisterHolding, maskWords, fmt.Sprintf("Selection mask %d: mask", i))
	}

	for i := 1; i <= int(rc.LengthOrZero(runtimeconfig.TagsInField)) && a.err == nil; i++ {
		for _, f := range tagFields {
			if f.enabled(rc) {
				a.add(deviceconfig.RegisterHolding, f.words(rc), fmt.Sprintf("Tag %d: %s", i, f.desc))
			}
		}
	}

	if a.err != nil {
		return nil, a.err
	}
	return a.items, nil
}
