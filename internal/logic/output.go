package logic

import (
	"fmt"
	"time"
)

// OutputConfig describes an output sensor.
type OutputConfig struct {
	Name     string
	Pin      int
	Polarity Polarity
}

// OutputTimer drives an output pin ON, either until SetOff or for a fixed
// interval after which CheckTimer turns it OFF again.
type OutputTimer struct {
	name     Name
	pin      int
	polarity Polarity

	pins     PinWriter
	observer Observer

	state    State
	start    time.Time
	interval time.Duration // 0 = stay ON until SetOff
	elapsed  time.Duration
}

// NewOutputTimer validates cfg and drives the pin to its OFF level.
func NewOutputTimer(cfg OutputConfig, pins PinWriter, opts ...Option) (*OutputTimer, error) {
	if cfg.Pin < 0 {
		return nil, fmt.Errorf("output %q pin %d: %w", cfg.Name, cfg.Pin, ErrInvalidPin)
	}

	polarity := cfg.Polarity
	if polarity != PolarityNegative {
		polarity = PolarityPositive
	}

	o := &OutputTimer{
		name:     NewName(cfg.Name),
		pin:      cfg.Pin,
		polarity: polarity,
		pins:     pins,
		observer: buildOptions(opts).observer,
		state:    StateOff,
	}
	if err := o.setPin(StateOff); err != nil {
		return nil, err
	}
	return o, nil
}

// SetOn turns the output ON. A zero d keeps it ON until SetOff; otherwise
// CheckTimer turns it OFF once d has elapsed. Any running session is replaced.
func (o *OutputTimer) SetOn(d time.Duration, now time.Time) error {
	if err := o.setPin(StateOn); err != nil {
		return err
	}
	if d < 0 {
		d = 0
	}
	o.state = StateOn
	o.start = now
	o.interval = d
	o.elapsed = 0
	o.notify(now, 0)
	return nil
}

// SetOff turns the output OFF and clears the session.
func (o *OutputTimer) SetOff(now time.Time) error {
	if err := o.setPin(StateOff); err != nil {
		return err
	}
	var session time.Duration
	if o.state == StateOn {
		session = now.Sub(o.start)
	}
	o.state = StateOff
	o.start = time.Time{}
	o.interval = 0
	o.elapsed = 0
	o.notify(now, session)
	return nil
}

// CheckTimer turns a timed output OFF once its interval has elapsed.
func (o *OutputTimer) CheckTimer(now time.Time) error {
	if o.state != StateOn || o.interval == 0 {
		return nil
	}
	o.elapsed = now.Sub(o.start)
	if o.elapsed < o.interval {
		return nil
	}
	return o.SetOff(now)
}

// Remaining returns the time left before a timed output turns OFF.
// It is 0 for OFF and indefinite outputs.
func (o *OutputTimer) Remaining(now time.Time) time.Duration {
	if o.state != StateOn || o.interval == 0 {
		return 0
	}
	left := o.interval - now.Sub(o.start)
	if left < 0 {
		return 0
	}
	return left
}

func (o *OutputTimer) setPin(s State) error {
	if err := o.pins.Write(o.pin, o.polarity.Level(s)); err != nil {
		return fmt.Errorf("write output %q pin %d: %w", o.name, o.pin, err)
	}
	return nil
}

func (o *OutputTimer) notify(now time.Time, session time.Duration) {
	if o.observer == nil {
		return
	}
	o.observer.Transition(TransitionEvent{
		Timestamp: now,
		Sensor:    o.name.String(),
		Pin:       o.pin,
		State:     o.state,
		Duration:  session,
	})
}

// Name returns the bounded output name.
func (o *OutputTimer) Name() string { return o.name.String() }

// State returns the current logical state.
func (o *OutputTimer) State() State { return o.state }

// Interval returns the configured auto-off interval, 0 when indefinite or OFF.
func (o *OutputTimer) Interval() time.Duration { return o.interval }

// Snapshot returns a copy of the timer state as of now.
func (o *OutputTimer) Snapshot(now time.Time) OutputSnapshot {
	s := OutputSnapshot{
		Name:      o.name.String(),
		Pin:       o.pin,
		Polarity:  o.polarity,
		State:     o.state,
		OnStart:   o.start,
		Interval:  o.interval,
		Remaining: o.Remaining(now),
	}
	if o.state == StateOn {
		s.Elapsed = now.Sub(o.start)
	}
	return s
}
