package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/timed-io/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Inputs        []InputJSON   `json:"inputs"`
	Outputs       []OutputJSON  `json:"outputs"`
	Monthly       []MonthlyJSON `json:"monthly,omitempty"`
	NVRAM         NVRAMJSON     `json:"nvram"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// InputJSON is the JSON representation of an input tracker.
type InputJSON struct {
	Name            string `json:"name"`
	Pin             int    `json:"pin"`
	Polarity        string `json:"polarity"`
	PullUp          bool   `json:"pullup"`
	Slot            int    `json:"slot"`
	State           string `json:"state"`
	CurrentOnMs     int64  `json:"current_on_ms"`
	CurrentOnStart  string `json:"current_on_start,omitempty"`
	TodayOnMs       int64  `json:"today_on_ms"`
	TodayOnCount    uint32 `json:"today_on_count"`
	MonthOnMs       int64  `json:"month_on_ms"`
	PreviousOnMs    int64  `json:"previous_on_ms"`
	PreviousOnStart string `json:"previous_on_start,omitempty"`
	PreviousOnStop  string `json:"previous_on_stop,omitempty"`
	Day             int    `json:"day"`
	Month           int    `json:"month"`
}

// OutputJSON is the JSON representation of an output timer.
type OutputJSON struct {
	Name        string `json:"name"`
	Pin         int    `json:"pin"`
	Polarity    string `json:"polarity"`
	State       string `json:"state"`
	OnStart     string `json:"on_start,omitempty"`
	IntervalMs  int64  `json:"interval_ms"`
	ElapsedMs   int64  `json:"elapsed_ms"`
	RemainingMs int64  `json:"remaining_ms"`
}

// MonthlyJSON is the stored ON-time of one slot, January first.
type MonthlyJSON struct {
	Slot     int        `json:"slot"`
	Sensor   string     `json:"sensor,omitempty"`
	MonthsMs [12]uint32 `json:"months_ms"`
}

// NVRAMJSON reports the persistence backend.
type NVRAMJSON struct {
	Backend string `json:"backend"`
	Path    string `json:"path,omitempty"`
	Writes  uint64 `json:"writes"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs              int64  `json:"poll_ms"`
	HeartbeatMs         int64  `json:"heartbeat_ms"`
	RecordingIntervalMs int64  `json:"recording_interval_ms"`
	Broker              string `json:"broker"`
	HTTPAddr            string `json:"http_addr"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInputs(in []logic.InputSnapshot) []InputJSON {
	out := make([]InputJSON, 0, len(in))
	for _, s := range in {
		out = append(out, InputJSON{
			Name:            s.Name,
			Pin:             s.Pin,
			Polarity:        string(s.Polarity),
			PullUp:          s.PullUp,
			Slot:            s.Slot,
			State:           string(s.State),
			CurrentOnMs:     s.CurrentOn.Milliseconds(),
			CurrentOnStart:  formatTime(s.CurrentOnStart),
			TodayOnMs:       s.TodayOn.Milliseconds(),
			TodayOnCount:    s.TodayOnCount,
			MonthOnMs:       s.MonthOn.Milliseconds(),
			PreviousOnMs:    s.PreviousOn.Milliseconds(),
			PreviousOnStart: formatTime(s.PreviousOnStart),
			PreviousOnStop:  formatTime(s.PreviousOnStop),
			Day:             s.Day,
			Month:           s.Month,
		})
	}
	return out
}

func buildOutputs(in []logic.OutputSnapshot) []OutputJSON {
	out := make([]OutputJSON, 0, len(in))
	for _, s := range in {
		out = append(out, OutputJSON{
			Name:        s.Name,
			Pin:         s.Pin,
			Polarity:    string(s.Polarity),
			State:       string(s.State),
			OnStart:     formatTime(s.OnStart),
			IntervalMs:  s.Interval.Milliseconds(),
			ElapsedMs:   s.Elapsed.Milliseconds(),
			RemainingMs: s.Remaining.Milliseconds(),
		})
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Inputs:        buildInputs(snap.Inputs),
		Outputs:       buildOutputs(snap.Outputs),
		NVRAM: NVRAMJSON{
			Backend: snap.Config.NVRAMBackend,
			Path:    snap.Config.NVRAMPath,
			Writes:  snap.NVRAMWrites,
		},
		Config: ConfigJSON{
			PollMs:              snap.Config.PollMs,
			HeartbeatMs:         snap.Config.HeartbeatMs,
			RecordingIntervalMs: snap.Config.RecordingIntervalMs,
			Broker:              snap.Config.Broker,
			HTTPAddr:            snap.Config.HTTPAddr,
		},
	}
	for _, rec := range snap.Monthly {
		inner.Monthly = append(inner.Monthly, MonthlyJSON{
			Slot:     rec.Slot,
			Sensor:   rec.Sensor,
			MonthsMs: rec.Months,
		})
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
