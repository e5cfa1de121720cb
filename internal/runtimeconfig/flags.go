package runtimeconfig

import "fmt"

// Selector is the raw value of the memory selector holding register.
// The low five bits select which optional tag fields a read includes;
// the remaining bits are reserved and must survive every flag update.
type Selector uint16

// Flag is a single memory selector bit.
type Flag uint16

// Memory selector bits in protocol order (bit 0 is the lowest).
const (
	IncludeKillPwd   Flag = 0b00001
	IncludeAccessPwd Flag = 0b00010
	IncludeCRC       Flag = 0b00100
	IncludePC        Flag = 0b01000
	IncludeXPC       Flag = 0b10000
)

// FlagMask covers every bit owned by a Flag.
const FlagMask Selector = Selector(IncludeKillPwd | IncludeAccessPwd | IncludeCRC | IncludePC | IncludeXPC)

var flagOrder = []Flag{IncludeKillPwd, IncludeAccessPwd, IncludeCRC, IncludePC, IncludeXPC}

// Flags returns all flags ordered by bit position.
func Flags() []Flag {
	out := make([]Flag, len(flagOrder))
	copy(out, flagOrder)
	return out
}

// String returns the wire name of the flag.
func (f Flag) String() string {
	switch f {
	case IncludeKillPwd:
		return "includeKillPwd"
	case IncludeAccessPwd:
		return "includeAccessPwd"
	case IncludeCRC:
		return "includeCRC"
	case IncludePC:
		return "includePC"
	case IncludeXPC:
		return "includeXPC"
	default:
		return fmt.Sprintf("Flag(0x%04x)", uint16(f))
	}
}

// Label returns a short operator-facing label.
func (f Flag) Label() string {
	switch f {
	case IncludeKillPwd:
		return "Kill password"
	case IncludeAccessPwd:
		return "Access password"
	case IncludeCRC:
		return "CRC"
	case IncludePC:
		return "PC"
	case IncludeXPC:
		return "XPC"
	default:
		return f.String()
	}
}

// ParseFlag resolves a wire name such as "includeCRC".
func ParseFlag(name string) (Flag, error) {
	for _, f := range flagOrder {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown memory selector flag %q", name)
}

// ReadFlag reports whether flag is set in sel.
func ReadFlag(sel Selector, flag Flag) bool {
	return sel&Selector(flag) != 0
}

// WriteFlag returns sel with only the bit of flag set or cleared.
func WriteFlag(sel Selector, flag Flag, on bool) Selector {
	if on {
		return sel | Selector(flag)
	}
	return sel &^ Selector(flag)
}

// Length names one of the scalar runtime configuration fields.
type Length int

const (
	TagsInField Length = iota
	EPCLength
	TIDLength
	UserLength
	SelectionMaskCount
	SelectionMaskMaxLength
	CustomOperationMaxLength

	lengthCount
)

var lengthNames = [lengthCount]string{
	TagsInField:              "tagsInField",
	EPCLength:                "epcLength",
	TIDLength:                "tidLength",
	UserLength:               "userLength",
	SelectionMaskCount:       "selectionMaskCount",
	SelectionMaskMaxLength:   "selectionMaskMaxLength",
	CustomOperationMaxLength: "customOperationMaxLength",
}

var lengthLabels = [lengthCount]string{
	TagsInField:              "Tags in field",
	EPCLength:                "EPC length",
	TIDLength:                "TID length",
	UserLength:               "User memory length",
	SelectionMaskCount:       "Selection masks",
	SelectionMaskMaxLength:   "Selection mask max length",
	CustomOperationMaxLength: "Custom operation max length",
}

// Lengths returns all scalar fields in register order.
func Lengths() []Length {
	out := make([]Length, 0, lengthCount)
	for l := Length(0); l < lengthCount; l++ {
		out = append(out, l)
	}
	return out
}

func (l Length) valid() bool {
	return l >= 0 && l < lengthCount
}

// String returns the wire name of the field.
func (l Length) String() string {
	if !l.valid() {
		return fmt.Sprintf("Length(%d)", int(l))
	}
	return lengthNames[l]
}

// Label returns a short operator-facing label.
func (l Length) Label() string {
	if !l.valid() {
		return l.String()
	}
	return lengthLabels[l]
}

// ParseLength resolves a wire name such as "epcLength".
func ParseLength(name string) (Length, error) {
	for l := Length(0); l < lengthCount; l++ {
		if lengthNames[l] == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown runtime configuration field %q", name)
}
