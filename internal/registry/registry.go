// Package registry holds the fixed set of input trackers and output timers
// and connects them to pins, the clock and non-volatile storage.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/timed-io/internal/gpio"
	"github.com/sweeney/timed-io/internal/logic"
	"github.com/sweeney/timed-io/internal/nvstore"
)

var (
	ErrFull          = errors.New("registry: capacity reached")
	ErrUnknownSensor = errors.New("registry: unknown sensor")
	ErrDuplicate     = errors.New("registry: duplicate sensor")
)

// Option configures a Registry.
type Option func(*Registry)

// WithObserver installs an observer on every tracker and timer added afterwards.
func WithObserver(o logic.Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithRecordingInterval sets the persistence interval for inputs that do not set their own.
func WithRecordingInterval(d time.Duration) Option {
	return func(r *Registry) { r.interval = d }
}

// Registry owns up to logic.MaxSensors inputs and logic.MaxOutputs outputs.
// It is not safe for concurrent use; the daemon drives it from one goroutine.
type Registry struct {
	pins     gpio.PinIO
	store    *nvstore.Store
	clock    logic.TimeSource
	observer logic.Observer
	interval time.Duration

	inputs   [logic.MaxSensors]*logic.InputTracker
	nInputs  int
	outputs  [logic.MaxOutputs]*logic.OutputTimer
	nOutputs int
}

// New creates an empty Registry.
func New(pins gpio.PinIO, store *nvstore.Store, clock logic.TimeSource, opts ...Option) *Registry {
	r := &Registry{
		pins:  pins,
		store: store,
		clock: clock,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddInput creates a tracker for cfg and configures its pin as an input.
// Nothing is installed when an error is returned.
func (r *Registry) AddInput(cfg logic.InputConfig) (*logic.InputTracker, error) {
	if r.nInputs == len(r.inputs) {
		return nil, fmt.Errorf("add input %q: %w", cfg.Name, ErrFull)
	}
	if !r.pins.Valid(cfg.Pin) {
		return nil, fmt.Errorf("add input %q pin %d: %w", cfg.Name, cfg.Pin, logic.ErrInvalidPin)
	}
	if cfg.Slot >= r.store.Slots() {
		return nil, fmt.Errorf("add input %q slot %d: %w", cfg.Name, cfg.Slot, logic.ErrInvalidSlot)
	}
	name := logic.NewName(cfg.Name).String()
	for _, in := range r.Inputs() {
		if in.Slot() == cfg.Slot {
			return nil, fmt.Errorf("add input %q: slot %d already used by %q: %w", cfg.Name, cfg.Slot, in.Name(), ErrDuplicate)
		}
		if in.Name() == name {
			return nil, fmt.Errorf("add input %q: %w", name, ErrDuplicate)
		}
	}
	if cfg.RecordingInterval == 0 {
		cfg.RecordingInterval = r.interval
	}

	var opts []logic.Option
	if r.observer != nil {
		opts = append(opts, logic.WithObserver(r.observer))
	}
	tracker, err := logic.NewInputTracker(cfg, r.store, r.clock.Now(), opts...)
	if err != nil {
		return nil, err
	}

	mode := gpio.ModeInput
	if cfg.PullUp {
		mode = gpio.ModeInputPullUp
	}
	if err := r.pins.Configure(cfg.Pin, mode); err != nil {
		return nil, fmt.Errorf("add input %q: %w", cfg.Name, err)
	}

	r.inputs[r.nInputs] = tracker
	r.nInputs++
	return tracker, nil
}

// AddOutput creates a timer for cfg, configures its pin as an output and drives it OFF.
func (r *Registry) AddOutput(cfg logic.OutputConfig) (*logic.OutputTimer, error) {
	if r.nOutputs == len(r.outputs) {
		return nil, fmt.Errorf("add output %q: %w", cfg.Name, ErrFull)
	}
	if !r.pins.Valid(cfg.Pin) {
		return nil, fmt.Errorf("add output %q pin %d: %w", cfg.Name, cfg.Pin, logic.ErrInvalidPin)
	}
	name := logic.NewName(cfg.Name).String()
	for _, out := range r.Outputs() {
		if out.Name() == name {
			return nil, fmt.Errorf("add output %q: %w", name, ErrDuplicate)
		}
	}
	if err := r.pins.Configure(cfg.Pin, gpio.ModeOutput); err != nil {
		return nil, fmt.Errorf("add output %q: %w", cfg.Name, err)
	}

	var opts []logic.Option
	if r.observer != nil {
		opts = append(opts, logic.WithObserver(r.observer))
	}
	timer, err := logic.NewOutputTimer(cfg, r.pins, opts...)
	if err != nil {
		return nil, err
	}

	r.outputs[r.nOutputs] = timer
	r.nOutputs++
	return timer, nil
}

// Poll samples every input pin and feeds its tracker, then services every
// output timer. A pin read failure skips that input for this cycle and is
// returned after the remaining sensors are serviced. Storage failures abort
// immediately and are wrapped so callers can tell them apart.
func (r *Registry) Poll() error {
	now := r.clock.Now()
	var readErrs []error

	for _, in := range r.Inputs() {
		level, err := r.pins.Read(in.Pin())
		if err != nil {
			readErrs = append(readErrs, fmt.Errorf("poll %q: %w", in.Name(), err))
			continue
		}
		if err := in.Poll(level, now); err != nil {
			return &StorageError{Sensor: in.Name(), Err: err}
		}
	}

	for _, out := range r.Outputs() {
		if err := out.CheckTimer(now); err != nil {
			readErrs = append(readErrs, fmt.Errorf("check timer %q: %w", out.Name(), err))
		}
	}

	return errors.Join(readErrs...)
}

// StorageError reports a failed non-volatile store access during Poll.
type StorageError struct {
	Sensor string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure on %q: %v", e.Sensor, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Inputs returns the installed trackers in insertion order.
func (r *Registry) Inputs() []*logic.InputTracker {
	return r.inputs[:r.nInputs]
}

// Outputs returns the installed timers in insertion order.
func (r *Registry) Outputs() []*logic.OutputTimer {
	return r.outputs[:r.nOutputs]
}

// Input looks up a tracker by name.
func (r *Registry) Input(name string) (*logic.InputTracker, error) {
	for _, in := range r.Inputs() {
		if in.Name() == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("input %q: %w", name, ErrUnknownSensor)
}

// Output looks up a timer by name.
func (r *Registry) Output(name string) (*logic.OutputTimer, error) {
	for _, out := range r.Outputs() {
		if out.Name() == name {
			return out, nil
		}
	}
	return nil, fmt.Errorf("output %q: %w", name, ErrUnknownSensor)
}

// SetOutput turns the named output ON for d (0 = until turned OFF) or OFF.
func (r *Registry) SetOutput(name string, on bool, d time.Duration) error {
	out, err := r.Output(name)
	if err != nil {
		return err
	}
	now := r.clock.Now()
	if on {
		return out.SetOn(d, now)
	}
	return out.SetOff(now)
}

// Flush persists the monthly total of every input. A failure is returned
// after the remaining inputs have been flushed.
func (r *Registry) Flush() error {
	now := r.clock.Now()
	var errs []error
	for _, in := range r.Inputs() {
		if err := in.Flush(now); err != nil {
			errs = append(errs, &StorageError{Sensor: in.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// AllOff switches every output OFF.
func (r *Registry) AllOff() error {
	now := r.clock.Now()
	var errs []error
	for _, out := range r.Outputs() {
		if out.State() != logic.StateOn {
			continue
		}
		if err := out.SetOff(now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResetCounters clears the ON counter of every input.
func (r *Registry) ResetCounters() {
	for _, in := range r.Inputs() {
		in.ResetCounter()
	}
}

// Snapshot returns the state of every input and output as of now.
func (r *Registry) Snapshot() ([]logic.InputSnapshot, []logic.OutputSnapshot) {
	now := r.clock.Now()
	inputs := make([]logic.InputSnapshot, 0, r.nInputs)
	for _, in := range r.Inputs() {
		inputs = append(inputs, in.Snapshot())
	}
	outputs := make([]logic.OutputSnapshot, 0, r.nOutputs)
	for _, out := range r.Outputs() {
		outputs = append(outputs, out.Snapshot(now))
	}
	return inputs, outputs
}

// MonthlyActivity reads the twelve stored monthly totals of slot. Sensor is
// set when an installed input owns the slot.
func (r *Registry) MonthlyActivity(slot int) (logic.MonthlyRecord, error) {
	months, err := r.store.Months(slot)
	if err != nil {
		return logic.MonthlyRecord{}, fmt.Errorf("monthly activity slot %d: %w", slot, err)
	}
	rec := logic.MonthlyRecord{Slot: slot, Months: months}
	for _, in := range r.Inputs() {
		if in.Slot() == slot {
			rec.Sensor = in.Name()
			break
		}
	}
	return rec, nil
}

// AllMonthlyActivity returns MonthlyActivity for every installed input.
func (r *Registry) AllMonthlyActivity() ([]logic.MonthlyRecord, error) {
	records := make([]logic.MonthlyRecord, 0, r.nInputs)
	for _, in := range r.Inputs() {
		rec, err := r.MonthlyActivity(in.Slot())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
