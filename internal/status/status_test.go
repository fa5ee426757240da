package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/timed-io/internal/logic"
)

var testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleInputs() []logic.InputSnapshot {
	return []logic.InputSnapshot{{
		Name:           "Heater",
		Pin:            5,
		Polarity:       logic.PolarityNegative,
		PullUp:         true,
		Slot:           0,
		State:          logic.StateOn,
		Day:            1,
		Month:          1,
		CurrentOn:      3 * time.Second,
		CurrentOnStart: testStart.Add(time.Minute),
		TodayOn:        10 * time.Second,
		TodayOnCount:   2,
		MonthOn:        7 * time.Second,
		PreviousOn:     4 * time.Second,
	}}
}

func sampleOutputs() []logic.OutputSnapshot {
	return []logic.OutputSnapshot{{
		Name:      "Pump",
		Pin:       17,
		Polarity:  logic.PolarityPositive,
		State:     logic.StateOn,
		OnStart:   testStart,
		Interval:  2 * time.Second,
		Elapsed:   500 * time.Millisecond,
		Remaining: 1500 * time.Millisecond,
	}}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{PollMs: 100, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(testStart, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(testStart) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, testStart)
	}
	if snap.Config.PollMs != 100 {
		t.Errorf("Config.PollMs: got %d, want 100", snap.Config.PollMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Ready {
		t.Error("expected Ready=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(sampleInputs(), sampleOutputs(), 3)

	snap := tr.Snapshot()
	if !snap.Ready {
		t.Error("expected Ready=true after Update")
	}
	if len(snap.Inputs) != 1 || snap.Inputs[0].Name != "Heater" {
		t.Errorf("unexpected inputs: %+v", snap.Inputs)
	}
	if len(snap.Outputs) != 1 || snap.Outputs[0].State != logic.StateOn {
		t.Errorf("unexpected outputs: %+v", snap.Outputs)
	}
	if snap.NVRAMWrites != 3 {
		t.Errorf("NVRAMWrites: got %d, want 3", snap.NVRAMWrites)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSetMonthly(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetMonthly([]logic.MonthlyRecord{{Slot: 1, Sensor: "Heater", Months: [12]uint32{0: 5000}}})

	snap := tr.Snapshot()
	if len(snap.Monthly) != 1 || snap.Monthly[0].Months[0] != 5000 {
		t.Errorf("unexpected monthly: %+v", snap.Monthly)
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: testStart,
		Now:       testStart.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	fixed := testStart.Add(time.Hour)
	tr.now = func() time.Time { return fixed }

	if snap := tr.Snapshot(); !snap.Now.Equal(fixed) {
		t.Errorf("Now: got %v, want %v", snap.Now, fixed)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	inputs := sampleInputs()
	tr.Update(inputs, nil, 0)

	snap1 := tr.Snapshot()
	inputs[0].State = logic.StateOff
	tr.Update([]logic.InputSnapshot{{Name: "Other"}}, nil, 1)

	if snap1.Inputs[0].Name != "Heater" || snap1.Inputs[0].State != logic.StateOn {
		t.Error("snapshot should be a copy; inputs were modified")
	}
	if snap1.NVRAMWrites != 0 {
		t.Error("snapshot should be a copy; writes were modified")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Inputs:        sampleInputs(),
		Outputs:       sampleOutputs(),
		Monthly:       []logic.MonthlyRecord{{Slot: 0, Sensor: "Heater", Months: [12]uint32{2: 4200}}},
		NVRAMWrites:   9,
		Ready:         true,
		StartTime:     testStart,
		Now:           testStart.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			PollMs:              100,
			HeartbeatMs:         900000,
			RecordingIntervalMs: 43200000,
			Broker:              "tcp://localhost:1883",
			HTTPAddr:            ":80",
			NVRAMBackend:        "file",
			NVRAMPath:           "/var/lib/timed-io/nvram.bin",
		},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if !s.Ready {
		t.Error("expected Ready=true")
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if len(s.Inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(s.Inputs))
	}
	in := s.Inputs[0]
	if in.State != "ON" || in.Polarity != "NEGATIVE" || !in.PullUp {
		t.Errorf("unexpected input: %+v", in)
	}
	if in.CurrentOnMs != 3000 || in.TodayOnMs != 10000 || in.MonthOnMs != 7000 || in.PreviousOnMs != 4000 {
		t.Errorf("unexpected durations: %+v", in)
	}
	if in.CurrentOnStart != "2026-01-01T00:01:00Z" {
		t.Errorf("CurrentOnStart: got %q", in.CurrentOnStart)
	}
	if in.PreviousOnStop != "" {
		t.Errorf("expected zero PreviousOnStop to be omitted, got %q", in.PreviousOnStop)
	}
	if len(s.Outputs) != 1 || s.Outputs[0].RemainingMs != 1500 || s.Outputs[0].IntervalMs != 2000 {
		t.Errorf("unexpected outputs: %+v", s.Outputs)
	}
	if len(s.Monthly) != 1 || s.Monthly[0].MonthsMs[2] != 4200 {
		t.Errorf("unexpected monthly: %+v", s.Monthly)
	}
	if s.NVRAM.Writes != 9 || s.NVRAM.Backend != "file" {
		t.Errorf("unexpected nvram: %+v", s.NVRAM)
	}
	if s.Config.RecordingIntervalMs != 43200000 {
		t.Errorf("RecordingIntervalMs: got %d", s.Config.RecordingIntervalMs)
	}
	// Event and Reason should be omitted
	if s.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", s.Event)
	}
	if s.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", s.Reason)
	}
}

func TestFormatJSONEmptySensors(t *testing.T) {
	snap := Snapshot{StartTime: testStart, Now: testStart.Add(time.Second)}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if inputs, ok := raw["status"]["inputs"].([]interface{}); !ok || len(inputs) != 0 {
		t.Errorf("expected empty inputs array, got %v", raw["status"]["inputs"])
	}
	if _, exists := raw["status"]["monthly"]; exists {
		t.Error("monthly should be omitted when empty")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Inputs:    sampleInputs(),
		Ready:     true,
		StartTime: testStart,
		Now:       testStart.Add(15 * time.Minute),
		Config:    Config{PollMs: 100, Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	snap := Snapshot{
		StartTime: testStart,
		Now:       testStart.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: testStart,
		Now:       testStart.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(sampleInputs(), sampleOutputs(), uint64(i))
			tr.SetMonthly([]logic.MonthlyRecord{{Slot: 0}})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
