package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/timed-io/internal/logic"
	"github.com/sweeney/timed-io/internal/nvstore"
)

const sample = `
recording_interval: 8h
nvram:
  backend: bolt
  path: /tmp/nvram.db
  offset: 16
inputs:
  - name: Heater
    pin: 5
    polarity: negative
    pullup: true
    slot: 2
  - name: Door
    pin: 6
outputs:
  - name: Pump
    pin: 17
  - name: Relay
    pin: 18
    polarity: LOW
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 8*time.Hour, cfg.RecordingInterval)
	assert.Equal(t, NVRAM{Backend: BackendBolt, Path: "/tmp/nvram.db", Offset: 16}, cfg.NVRAM)

	require.Len(t, cfg.Inputs, 2)
	assert.Equal(t, logic.InputConfig{
		Name:     "Heater",
		Pin:      5,
		Polarity: logic.PolarityNegative,
		PullUp:   true,
		Slot:     2,
	}, cfg.Inputs[0])
	assert.Equal(t, 1, cfg.Inputs[1].Slot, "slot defaults to position")
	assert.Equal(t, logic.PolarityPositive, cfg.Inputs[1].Polarity)

	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, logic.PolarityNegative, cfg.Outputs[1].Polarity)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("inputs: []\n"))
	require.NoError(t, err)

	assert.Equal(t, logic.DefaultRecordingInterval, cfg.RecordingInterval)
	assert.Equal(t, BackendFile, cfg.NVRAM.Backend)
	assert.Equal(t, DefaultNVRAMPath, cfg.NVRAM.Path)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "inputs: [", "parse config"},
		{"bad interval", "recording_interval: soon", "recording_interval"},
		{"bad polarity", "inputs:\n  - {name: a, pin: 1, polarity: sideways}", "unknown polarity"},
		{"bad backend", "nvram: {backend: floppy}", "unknown nvram backend"},
		{"missing name", "inputs:\n  - {pin: 1}", "name is required"},
		{"duplicate name", "inputs:\n  - {name: a, pin: 1}\noutputs:\n  - {name: a, pin: 2}", "duplicate name"},
		{"duplicate pin", "inputs:\n  - {name: a, pin: 1}\n  - {name: b, pin: 1}", "pin 1 already used"},
		{"duplicate slot", "inputs:\n  - {name: a, pin: 1, slot: 0}\n  - {name: b, pin: 2, slot: 0}", "slot 0 already used"},
		{"slot range", "inputs:\n  - {name: a, pin: 1, slot: 4}", "invalid nvram slot"},
		{"negative pin", "outputs:\n  - {name: a, pin: -3}", "invalid pin"},
		{"too many inputs", "inputs:\n  - {name: a, pin: 1, slot: 0}\n  - {name: b, pin: 2, slot: 1}\n  - {name: c, pin: 3, slot: 2}\n  - {name: d, pin: 4, slot: 3}\n  - {name: e, pin: 5, slot: 0}", "at most 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.NVRAM.Backend = "tape"
	cfg.Inputs = []logic.InputConfig{{Name: "", Pin: -1, Slot: 9}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, logic.ErrInvalidPin)
	assert.ErrorIs(t, err, logic.ErrInvalidSlot)
}

func TestParsePolarity(t *testing.T) {
	for in, want := range map[string]logic.Polarity{
		"":         logic.PolarityPositive,
		"positive": logic.PolarityPositive,
		"HIGH":     logic.PolarityPositive,
		"Negative": logic.PolarityNegative,
		" low ":    logic.PolarityNegative,
	} {
		got, err := ParsePolarity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolarity("inverted")
	assert.ErrorIs(t, err, ErrPolarity)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timed-io.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Inputs, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenByteStore(t *testing.T) {
	dir := t.TempDir()

	for _, n := range []NVRAM{
		{Backend: BackendMemory, Offset: 8},
		{Backend: BackendFile, Path: filepath.Join(dir, "nvram.bin"), Offset: 8},
		{Backend: BackendBolt, Path: filepath.Join(dir, "nvram.db"), Offset: 8},
	} {
		t.Run(n.Backend, func(t *testing.T) {
			bs, closeFn, err := n.OpenByteStore()
			require.NoError(t, err)
			defer closeFn()

			store := nvstore.New(bs, n.Offset, logic.MaxSensors)
			_, err = store.Put(logic.MaxSensors-1, 12, 99)
			require.NoError(t, err)
			v, err := store.Get(logic.MaxSensors-1, 12)
			require.NoError(t, err)
			assert.Equal(t, uint32(99), v)
		})
	}

	_, _, err := NVRAM{Backend: "tape"}.OpenByteStore()
	assert.ErrorIs(t, err, ErrBackend)
}
