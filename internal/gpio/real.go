//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPins drives pins through the Linux GPIO character device.
type RealPins struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealPins opens the named chip, e.g. DefaultChip.
func NewRealPins(chipName string) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealPins{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// Valid reports whether pin is a line offset of the chip.
func (r *RealPins) Valid(pin int) bool {
	return pin >= 0 && pin < r.chip.Lines()
}

// Configure requests pin in the given mode, reconfiguring it if already held.
// Outputs start low; the caller drives them to their OFF level.
func (r *RealPins) Configure(pin int, mode Mode) error {
	var opts []gpiocdev.LineReqOption
	switch mode {
	case ModeInput:
		opts = []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithBiasDisabled}
	case ModeInputPullUp:
		opts = []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	case ModeOutput:
		opts = []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	default:
		return fmt.Errorf("configure pin %d: unknown mode %d", pin, mode)
	}

	if l, ok := r.lines[pin]; ok {
		l.Close()
		delete(r.lines, pin)
	}

	line, err := r.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("request pin %d as %s: %w", pin, mode, err)
	}
	r.lines[pin] = line
	return nil
}

// Read returns the raw level of pin.
func (r *RealPins) Read(pin int) (bool, error) {
	line, ok := r.lines[pin]
	if !ok {
		return false, fmt.Errorf("read pin %d: %w", pin, ErrNotConfigured)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v != 0, nil
}

// Write drives pin to level.
func (r *RealPins) Write(pin int, level bool) error {
	line, ok := r.lines[pin]
	if !ok {
		return fmt.Errorf("write pin %d: %w", pin, ErrNotConfigured)
	}
	v := 0
	if level {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealPins) Close() error {
	var errs []error

	for pin, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	r.lines = make(map[int]*gpiocdev.Line)

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
