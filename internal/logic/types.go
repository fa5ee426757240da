// Package logic contains the pure duration-tracking state machines.
// This package has NO external dependencies (no GPIO, NVRAM, MQTT or OS access).
// Time is always injectable via time.Time parameters; storage and pins are reached
// through the small interfaces declared here.
package logic

import (
	"errors"
	"time"
)

// State represents the logical state of a sensor.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Polarity maps a pin's electrical level to a logical state.
type Polarity string

const (
	// PolarityPositive means electrical high is ON.
	PolarityPositive Polarity = "POSITIVE"
	// PolarityNegative means electrical low is ON.
	PolarityNegative Polarity = "NEGATIVE"
)

// Logical converts a raw pin level to a logical state.
func (p Polarity) Logical(level bool) State {
	if level == (p != PolarityNegative) {
		return StateOn
	}
	return StateOff
}

// Level returns the electrical level that represents s.
func (p Polarity) Level(s State) bool {
	on := s == StateOn
	if p == PolarityNegative {
		return !on
	}
	return on
}

// Capacities and persistence limits.
const (
	MaxSensors = 4 // input sensors, also the number of NVRAM slots
	MaxOutputs = 4
	MaxNameLen = 10 // bytes, including the terminator

	DefaultRecordingInterval = 12 * time.Hour
	// MinRecordingInterval bounds NVRAM write frequency; lower requests are raised to it.
	MinRecordingInterval = 6 * time.Hour
)

var (
	ErrInvalidPin  = errors.New("invalid pin")
	ErrInvalidSlot = errors.New("invalid nvram slot")
)

// TimeSource supplies the current wall-clock time.
type TimeSource interface {
	Now() time.Time
}

// TimeFunc adapts a function such as time.Now to TimeSource.
type TimeFunc func() time.Time

// Now calls f.
func (f TimeFunc) Now() time.Time { return f() }

// MonthStore holds one accumulator per slot and calendar month.
// Implemented by nvstore.Store.
type MonthStore interface {
	Get(slot, month int) (uint32, error)
	// Put stores value and reports whether a physical write happened.
	Put(slot, month int, value uint32) (bool, error)
}

// PinWriter drives an output pin to an electrical level.
type PinWriter interface {
	Write(pin int, level bool) error
}

// RolloverKind distinguishes day and month rollovers.
type RolloverKind string

const (
	RolloverDay   RolloverKind = "DAY"
	RolloverMonth RolloverKind = "MONTH"
)

// TransitionEvent is emitted when a sensor changes logical state.
type TransitionEvent struct {
	Timestamp time.Time
	Sensor    string
	Pin       int
	State     State
	// Duration is the length of the session that just ended (OFF transitions only).
	Duration time.Duration
}

// PersistEvent is emitted on every NVRAM put attempt.
type PersistEvent struct {
	Timestamp time.Time
	Sensor    string
	Slot      int
	Month     int
	Value     uint32
	Written   bool // false when suppressed because the stored value was equal
}

// RolloverEvent is emitted when the tracked day or month changes.
type RolloverEvent struct {
	Timestamp time.Time
	Sensor    string
	Kind      RolloverKind
	Value     int // new day of month, or new month
}

// Observer receives notifications at well-defined points of the state machines.
// Implementations run inside Poll and should return promptly.
type Observer interface {
	Transition(TransitionEvent)
	Persist(PersistEvent)
	Rollover(RolloverEvent)
}

// InputSnapshot is a point-in-time copy of an input tracker, for reporting.
type InputSnapshot struct {
	Name               string
	Pin                int
	Polarity           Polarity
	PullUp             bool
	Slot               int
	State              State
	Day                int
	Month              int
	CurrentOn          time.Duration
	CurrentOnStart     time.Time
	TodayOn            time.Duration
	TodayOnCount       uint32
	MonthOn            time.Duration
	PreviousOn         time.Duration
	PreviousOnStart    time.Time
	PreviousOnStop     time.Time
	RecordingInterval  time.Duration
	LastPersistAttempt time.Time
}

// OutputSnapshot is a point-in-time copy of an output timer, for reporting.
type OutputSnapshot struct {
	Name      string
	Pin       int
	Polarity  Polarity
	State     State
	OnStart   time.Time
	Interval  time.Duration // 0 = indefinite
	Elapsed   time.Duration
	Remaining time.Duration
}

// MonthlyRecord is the stored ON-time of one slot, indexed by month-1.
type MonthlyRecord struct {
	Slot   int
	Sensor string
	Months [12]uint32 // milliseconds
}
