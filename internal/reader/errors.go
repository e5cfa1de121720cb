package reader

import (
	"errors"
	"fmt"

	"github.com/goburrow/modbus"
)

// Error is a failed register operation.
type Error struct {
	Op       string // connect, read, write
	Field    string
	Address  uint16
	Quantity uint16
	Err      error
}

func (e *Error) Error() string {
	if e.Op == "connect" {
		return fmt.Sprintf("modbus connect failed: %v", e.Err)
	}
	return fmt.Sprintf("modbus %s %s (0x%04X+%d) failed: %v", e.Op, e.Field, e.Address, e.Quantity, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExceptionCode returns the Modbus exception code carried by err, if any.
func ExceptionCode(err error) (byte, bool) {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return mbErr.ExceptionCode, true
	}
	return 0, false
}
