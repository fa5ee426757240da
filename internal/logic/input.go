package logic

import (
	"fmt"
	"math"
	"time"
)

// InputConfig describes an input sensor. It is fixed once the tracker is created.
type InputConfig struct {
	Name              string
	Pin               int
	Polarity          Polarity
	PullUp            bool
	Slot              int
	RecordingInterval time.Duration // 0 selects DefaultRecordingInterval
}

// Option configures a tracker or timer.
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver installs o. Without it no notifications are made.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// InputTracker measures how long an input is logically ON for the current
// session, the current day and the current calendar month, and persists the
// monthly total to a MonthStore.
type InputTracker struct {
	name     Name
	pin      int
	polarity Polarity
	pullUp   bool
	slot     int

	store    MonthStore
	observer Observer

	interval    time.Duration
	lastPersist time.Time

	state     State
	prevState State
	lastPoll  time.Time // accumulation baseline while ON
	now       time.Time

	year  int
	month time.Month
	yday  int
	day   int

	currentOn    time.Duration
	currentStart time.Time
	todayOn      time.Duration
	todayCount   uint32
	monthOn      time.Duration

	previousOn    time.Duration
	previousStart time.Time
	previousStop  time.Time
}

// NewInputTracker validates cfg and creates a tracker whose monthly total is
// seeded from the store, so accumulation continues across a restart.
func NewInputTracker(cfg InputConfig, store MonthStore, now time.Time, opts ...Option) (*InputTracker, error) {
	if cfg.Pin < 0 {
		return nil, fmt.Errorf("sensor %q pin %d: %w", cfg.Name, cfg.Pin, ErrInvalidPin)
	}
	if cfg.Slot < 0 || cfg.Slot >= MaxSensors {
		return nil, fmt.Errorf("sensor %q slot %d: %w", cfg.Name, cfg.Slot, ErrInvalidSlot)
	}

	seed, err := store.Get(cfg.Slot, int(now.Month()))
	if err != nil {
		return nil, fmt.Errorf("read nvram slot %d: %w", cfg.Slot, err)
	}

	polarity := cfg.Polarity
	if polarity != PolarityNegative {
		polarity = PolarityPositive
	}

	t := &InputTracker{
		name:        NewName(cfg.Name),
		pin:         cfg.Pin,
		polarity:    polarity,
		pullUp:      cfg.PullUp,
		slot:        cfg.Slot,
		store:       store,
		observer:    buildOptions(opts).observer,
		lastPersist: now,
		state:       StateOff,
		prevState:   StateOff,
		now:         now,
		monthOn:     time.Duration(seed) * time.Millisecond,
	}
	t.year, t.month, t.day = now.Date()
	t.yday = now.YearDay()

	interval := cfg.RecordingInterval
	if interval == 0 {
		interval = DefaultRecordingInterval
	}
	t.SetRecordingInterval(interval)

	return t, nil
}

// SetRecordingInterval sets how often the monthly total is persisted.
// Values below MinRecordingInterval are raised to it.
func (t *InputTracker) SetRecordingInterval(d time.Duration) {
	if d < MinRecordingInterval {
		d = MinRecordingInterval
	}
	t.interval = d
}

// Poll feeds one raw pin sample taken at now. It must be called with
// non-decreasing timestamps. The returned error is only ever a storage failure.
func (t *InputTracker) Poll(level bool, now time.Time) error {
	t.now = now
	t.state = t.polarity.Logical(level)

	switch {
	case t.state == StateOn && t.prevState == StateOff:
		t.toggleOn()
	case t.state == StateOn:
		t.recordUpToNow()
	case t.prevState == StateOn:
		t.recordUpToNow()
		t.toggleOff()
	}

	// May write twice around a month crossing; the second write is suppressed
	// by the store when nothing changed.
	if now.Sub(t.lastPersist) >= t.interval {
		if err := t.persist(int(t.month), t.monthOn); err != nil {
			return err
		}
		t.lastPersist = now
	}

	year, month, day := now.Date()
	if year != t.year || now.YearDay() != t.yday {
		t.year, t.yday, t.day = year, now.YearDay(), day
		t.todayOn = 0
		t.notifyRollover(RolloverDay, day)
	}

	if month != t.month {
		if err := t.persist(int(t.month), t.monthOn); err != nil {
			return err
		}
		t.month = month
		t.monthOn = 0
		// Zero next month ahead of time so a crash right after the next
		// crossing does not resume from last year's value.
		if err := t.persist(nextMonth(int(month)), 0); err != nil {
			return err
		}
		t.notifyRollover(RolloverMonth, int(month))
	}

	return nil
}

// Flush accumulates ON time up to now and persists the monthly total
// regardless of the recording interval. Used on orderly shutdown.
func (t *InputTracker) Flush(now time.Time) error {
	t.now = now
	if t.state == StateOn {
		t.recordUpToNow()
	}
	if err := t.persist(int(t.month), t.monthOn); err != nil {
		return err
	}
	t.lastPersist = now
	return nil
}

// ResetCounter clears the ON counter. Day rollovers never do this.
func (t *InputTracker) ResetCounter() {
	t.todayCount = 0
}

func (t *InputTracker) toggleOn() {
	t.lastPoll = t.now
	t.currentStart = t.now
	t.todayCount++
	t.prevState = StateOn
	t.notifyTransition(0)
}

func (t *InputTracker) toggleOff() {
	t.previousOn = t.currentOn
	t.previousStart = t.currentStart
	t.previousStop = t.now
	t.currentOn = 0
	t.currentStart = time.Time{}
	t.prevState = StateOff
	t.notifyTransition(t.previousOn)
}

func (t *InputTracker) recordUpToNow() {
	elapsed := t.now.Sub(t.lastPoll)
	if elapsed < 0 {
		elapsed = 0
	}
	t.currentOn += elapsed
	t.todayOn += elapsed
	t.monthOn += elapsed
	t.lastPoll = t.now
}

func (t *InputTracker) persist(month int, d time.Duration) error {
	value := toMillis(d)
	written, err := t.store.Put(t.slot, month, value)
	if err != nil {
		return fmt.Errorf("write nvram slot %d month %d: %w", t.slot, month, err)
	}
	if t.observer != nil {
		t.observer.Persist(PersistEvent{
			Timestamp: t.now,
			Sensor:    t.name.String(),
			Slot:      t.slot,
			Month:     month,
			Value:     value,
			Written:   written,
		})
	}
	return nil
}

func (t *InputTracker) notifyTransition(session time.Duration) {
	if t.observer == nil {
		return
	}
	t.observer.Transition(TransitionEvent{
		Timestamp: t.now,
		Sensor:    t.name.String(),
		Pin:       t.pin,
		State:     t.state,
		Duration:  session,
	})
}

func (t *InputTracker) notifyRollover(kind RolloverKind, value int) {
	if t.observer == nil {
		return
	}
	t.observer.Rollover(RolloverEvent{
		Timestamp: t.now,
		Sensor:    t.name.String(),
		Kind:      kind,
		Value:     value,
	})
}

// Name returns the bounded sensor name.
func (t *InputTracker) Name() string { return t.name.String() }

// Slot returns the NVRAM slot.
func (t *InputTracker) Slot() int { return t.slot }

// Pin returns the pin identifier.
func (t *InputTracker) Pin() int { return t.pin }

// State returns the current logical state.
func (t *InputTracker) State() State { return t.state }

// CurrentOn returns the ON time of the running session, 0 when OFF.
func (t *InputTracker) CurrentOn() time.Duration { return t.currentOn }

// TodayOn returns the ON time since the last day rollover.
func (t *InputTracker) TodayOn() time.Duration { return t.todayOn }

// TodayOnCount returns the number of OFF->ON transitions since creation or ResetCounter.
func (t *InputTracker) TodayOnCount() uint32 { return t.todayCount }

// MonthOn returns the ON time of the tracked month, including the seeded value.
func (t *InputTracker) MonthOn() time.Duration { return t.monthOn }

// Snapshot returns a copy of the tracker state.
func (t *InputTracker) Snapshot() InputSnapshot {
	return InputSnapshot{
		Name:               t.name.String(),
		Pin:                t.pin,
		Polarity:           t.polarity,
		PullUp:             t.pullUp,
		Slot:               t.slot,
		State:              t.state,
		Day:                t.day,
		Month:              int(t.month),
		CurrentOn:          t.currentOn,
		CurrentOnStart:     t.currentStart,
		TodayOn:            t.todayOn,
		TodayOnCount:       t.todayCount,
		MonthOn:            t.monthOn,
		PreviousOn:         t.previousOn,
		PreviousOnStart:    t.previousStart,
		PreviousOnStop:     t.previousStop,
		RecordingInterval:  t.interval,
		LastPersistAttempt: t.lastPersist,
	}
}

func nextMonth(m int) int {
	if m >= 12 {
		return 1
	}
	return m + 1
}

// toMillis converts d to whole milliseconds, saturating at the uint32 range.
func toMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	switch {
	case ms < 0:
		return 0
	case ms > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(ms)
}
