// Package status provides a thread-safe status tracker for the timed-io daemon.
// The run loop writes to it; HTTP handlers and MQTT heartbeats read from it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/timed-io/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs              int64
	HeartbeatMs         int64
	RecordingIntervalMs int64
	Broker              string
	HTTPAddr            string
	NVRAMBackend        string
	NVRAMPath           string
}

// Snapshot is a point-in-time view of daemon state.
// Slices are copied on every Update, so a Snapshot stays valid after the lock is released.
type Snapshot struct {
	Inputs        []logic.InputSnapshot
	Outputs       []logic.OutputSnapshot
	Monthly       []logic.MonthlyRecord
	NVRAMWrites   uint64
	Ready         bool // at least one poll has completed
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the sensor snapshots and NVRAM write count.
// Called from runLoop after every poll.
func (t *Tracker) Update(inputs []logic.InputSnapshot, outputs []logic.OutputSnapshot, nvramWrites uint64) {
	in := append([]logic.InputSnapshot(nil), inputs...)
	out := append([]logic.OutputSnapshot(nil), outputs...)
	t.mu.Lock()
	t.snap.Inputs = in
	t.snap.Outputs = out
	t.snap.NVRAMWrites = nvramWrites
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetMonthly replaces the stored monthly totals.
// Called at startup and whenever the NVRAM write count changes.
func (t *Tracker) SetMonthly(records []logic.MonthlyRecord) {
	recs := append([]logic.MonthlyRecord(nil), records...)
	t.mu.Lock()
	t.snap.Monthly = recs
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
