// Package gpio provides digital pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Mode is the electrical configuration of a pin.
type Mode int

const (
	ModeInput Mode = iota
	ModeInputPullUp
	ModeOutput
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeInputPullUp:
		return "input-pullup"
	case ModeOutput:
		return "output"
	}
	return "unknown"
}

// ErrNotConfigured is returned when a pin is read or written before Configure.
var ErrNotConfigured = errors.New("gpio: pin not configured")

// PinIO reads and drives raw pin levels (true = electrical high).
type PinIO interface {
	// Valid reports whether pin exists on this controller.
	Valid(pin int) bool

	// Configure requests pin in the given mode.
	Configure(pin int, mode Mode) error

	// Read returns the raw level of an input pin.
	Read(pin int) (bool, error)

	// Write drives an output pin to level.
	Write(pin int, level bool) error

	// Close releases all pins.
	Close() error
}

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"
