package reader

import (
	"fmt"
	"io"
	"time"

	"github.com/goburrow/modbus"
)

// Transport modes.
const (
	ModeTCP = "tcp"
	ModeRTU = "rtu"
)

// Config describes how to reach the reader.
type Config struct {
	Mode    string        `mapstructure:"mode" yaml:"mode"`
	Address string        `mapstructure:"address" yaml:"address"` // host:port for TCP, device path for RTU
	SlaveID byte          `mapstructure:"slave_id" yaml:"slave_id"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RTU only.
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits int    `mapstructure:"data_bits" yaml:"data_bits"`
	Parity   string `mapstructure:"parity" yaml:"parity"`
	StopBits int    `mapstructure:"stop_bits" yaml:"stop_bits"`
}

// DefaultConfig returns a Modbus TCP configuration for a reader on the local host.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeTCP,
		Address:  "127.0.0.1:502",
		SlaveID:  1,
		Timeout:  2 * time.Second,
		BaudRate: 19200,
		DataBits: 8,
		Parity:   "E",
		StopBits: 1,
	}
}

// Validate checks the configuration before any connection attempt.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("reader: address required")
	}
	switch c.Mode {
	case ModeTCP:
	case ModeRTU:
		if c.BaudRate <= 0 {
			return fmt.Errorf("reader: invalid baud rate %d", c.BaudRate)
		}
		switch c.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("reader: invalid parity %q (want N, E or O)", c.Parity)
		}
	default:
		return fmt.Errorf("reader: unknown mode %q (want %s or %s)", c.Mode, ModeTCP, ModeRTU)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("reader: timeout must be positive")
	}
	return nil
}

// Registers is the register access the reader needs. modbus.Client satisfies it.
type Registers interface {
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// DialFunc opens a connection to the reader.
type DialFunc func(cfg Config) (Registers, io.Closer, error)

// Dial connects with goburrow/modbus over TCP or RTU.
func Dial(cfg Config) (Registers, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	switch cfg.Mode {
	case ModeRTU:
		h := modbus.NewRTUClientHandler(cfg.Address)
		h.BaudRate = cfg.BaudRate
		h.DataBits = cfg.DataBits
		h.Parity = cfg.Parity
		h.StopBits = cfg.StopBits
		h.SlaveId = cfg.SlaveID
		h.Timeout = cfg.Timeout
		if err := h.Connect(); err != nil {
			return nil, nil, err
		}
		return modbus.NewClient(h), h, nil
	default:
		h := modbus.NewTCPClientHandler(cfg.Address)
		h.SlaveId = cfg.SlaveID
		h.Timeout = cfg.Timeout
		if err := h.Connect(); err != nil {
			return nil, nil, err
		}
		return modbus.NewClient(h), h, nil
	}
}
