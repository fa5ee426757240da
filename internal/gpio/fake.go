package gpio

import "fmt"

// FakePins is a test double with settable input levels that records output writes.
type FakePins struct {
	// Lines is the number of valid pins, 0..Lines-1.
	Lines int

	// Levels holds the current level of every pin. Tests set input levels here.
	Levels map[int]bool

	// Modes records how each pin was configured.
	Modes map[int]Mode

	// Written records every level driven per output pin, in order.
	Written map[int][]bool

	// ReadError, if set, will be returned by Read.
	ReadError error

	// WriteError, if set, will be returned by Write.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePins creates FakePins with lines valid pins, all low.
func NewFakePins(lines int) *FakePins {
	return &FakePins{
		Lines:   lines,
		Levels:  make(map[int]bool),
		Modes:   make(map[int]Mode),
		Written: make(map[int][]bool),
	}
}

// Valid reports whether pin is within Lines.
func (f *FakePins) Valid(pin int) bool {
	return pin >= 0 && pin < f.Lines
}

// Configure records mode for pin. A pull-up input idles high.
func (f *FakePins) Configure(pin int, mode Mode) error {
	if !f.Valid(pin) {
		return fmt.Errorf("configure pin %d: out of range", pin)
	}
	f.Modes[pin] = mode
	if mode == ModeInputPullUp {
		if _, ok := f.Levels[pin]; !ok {
			f.Levels[pin] = true
		}
	}
	return nil
}

// Read returns the current level of pin.
func (f *FakePins) Read(pin int) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if _, ok := f.Modes[pin]; !ok {
		return false, fmt.Errorf("read pin %d: %w", pin, ErrNotConfigured)
	}
	return f.Levels[pin], nil
}

// Write records level for pin.
func (f *FakePins) Write(pin int, level bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.Modes[pin] != ModeOutput {
		return fmt.Errorf("write pin %d: %w", pin, ErrNotConfigured)
	}
	f.Levels[pin] = level
	f.Written[pin] = append(f.Written[pin], level)
	return nil
}

// Set changes the level seen by Read, simulating an external input.
func (f *FakePins) Set(pin int, level bool) {
	f.Levels[pin] = level
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}
