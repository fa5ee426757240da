// Package config loads the sensor and NVRAM layout from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/timed-io/internal/logic"
	"github.com/sweeney/timed-io/internal/nvstore"
)

// NVRAM backends.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// DefaultNVRAMPath is used by the file backend when no path is configured.
const DefaultNVRAMPath = "/var/lib/timed-io/nvram.bin"

var (
	ErrPolarity = errors.New("config: unknown polarity")
	ErrBackend  = errors.New("config: unknown nvram backend")
)

// Config is the validated daemon configuration.
type Config struct {
	RecordingInterval time.Duration
	NVRAM             NVRAM
	Inputs            []logic.InputConfig
	Outputs           []logic.OutputConfig
}

// NVRAM selects and locates the non-volatile store.
type NVRAM struct {
	Backend string
	Path    string
	Offset  int
}

type rawConfig struct {
	RecordingInterval string      `yaml:"recording_interval"`
	NVRAM             rawNVRAM    `yaml:"nvram"`
	Inputs            []rawInput  `yaml:"inputs"`
	Outputs           []rawOutput `yaml:"outputs"`
}

type rawNVRAM struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Offset  int    `yaml:"offset"`
}

type rawInput struct {
	Name     string `yaml:"name"`
	Pin      int    `yaml:"pin"`
	Polarity string `yaml:"polarity"`
	PullUp   bool   `yaml:"pullup"`
	Slot     *int   `yaml:"slot"` // defaults to the input's position
}

type rawOutput struct {
	Name     string `yaml:"name"`
	Pin      int    `yaml:"pin"`
	Polarity string `yaml:"polarity"`
}

// Default returns a configuration with no sensors and a file-backed NVRAM.
func Default() Config {
	return Config{
		RecordingInterval: logic.DefaultRecordingInterval,
		NVRAM: NVRAM{
			Backend: BackendFile,
			Path:    DefaultNVRAMPath,
		},
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	var errs []error

	if raw.RecordingInterval != "" {
		d, err := time.ParseDuration(raw.RecordingInterval)
		if err != nil {
			errs = append(errs, fmt.Errorf("recording_interval: %w", err))
		} else {
			cfg.RecordingInterval = d
		}
	}

	if raw.NVRAM.Backend != "" {
		cfg.NVRAM.Backend = strings.ToLower(raw.NVRAM.Backend)
	}
	if raw.NVRAM.Path != "" {
		cfg.NVRAM.Path = raw.NVRAM.Path
	}
	cfg.NVRAM.Offset = raw.NVRAM.Offset

	for i, in := range raw.Inputs {
		pol, err := ParsePolarity(in.Polarity)
		if err != nil {
			errs = append(errs, fmt.Errorf("inputs[%d]: %w", i, err))
		}
		slot := i
		if in.Slot != nil {
			slot = *in.Slot
		}
		cfg.Inputs = append(cfg.Inputs, logic.InputConfig{
			Name:     in.Name,
			Pin:      in.Pin,
			Polarity: pol,
			PullUp:   in.PullUp,
			Slot:     slot,
		})
	}

	for i, out := range raw.Outputs {
		pol, err := ParsePolarity(out.Polarity)
		if err != nil {
			errs = append(errs, fmt.Errorf("outputs[%d]: %w", i, err))
		}
		cfg.Outputs = append(cfg.Outputs, logic.OutputConfig{
			Name:     out.Name,
			Pin:      out.Pin,
			Polarity: pol,
		})
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParsePolarity accepts "positive"/"high" and "negative"/"low", case-insensitively.
// Empty selects positive.
func ParsePolarity(s string) (logic.Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "positive", "high":
		return logic.PolarityPositive, nil
	case "negative", "low":
		return logic.PolarityNegative, nil
	}
	return "", fmt.Errorf("%w %q", ErrPolarity, s)
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error

	if c.RecordingInterval < 0 {
		errs = append(errs, fmt.Errorf("recording_interval: must not be negative"))
	}

	switch c.NVRAM.Backend {
	case BackendMemory:
	case BackendFile, BackendBolt:
		if c.NVRAM.Path == "" {
			errs = append(errs, fmt.Errorf("nvram: %s backend needs a path", c.NVRAM.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("nvram: %w %q", ErrBackend, c.NVRAM.Backend))
	}
	if c.NVRAM.Offset < 0 {
		errs = append(errs, fmt.Errorf("nvram: offset %d must not be negative", c.NVRAM.Offset))
	}

	if len(c.Inputs) > logic.MaxSensors {
		errs = append(errs, fmt.Errorf("inputs: %d configured, at most %d", len(c.Inputs), logic.MaxSensors))
	}
	if len(c.Outputs) > logic.MaxOutputs {
		errs = append(errs, fmt.Errorf("outputs: %d configured, at most %d", len(c.Outputs), logic.MaxOutputs))
	}

	names := make(map[string]bool)
	pins := make(map[int]string)
	slots := make(map[int]string)

	checkCommon := func(kind string, i int, name string, pin int) {
		n := logic.NewName(name).String()
		if n == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: name is required", kind, i))
		} else if names[n] {
			errs = append(errs, fmt.Errorf("%s[%d]: duplicate name %q", kind, i, n))
		}
		names[n] = true
		if pin < 0 {
			errs = append(errs, fmt.Errorf("%s[%d]: %w %d", kind, i, logic.ErrInvalidPin, pin))
		} else if other, ok := pins[pin]; ok {
			errs = append(errs, fmt.Errorf("%s[%d]: pin %d already used by %q", kind, i, pin, other))
		}
		pins[pin] = n
	}

	for i, in := range c.Inputs {
		checkCommon("inputs", i, in.Name, in.Pin)
		if in.Slot < 0 || in.Slot >= logic.MaxSensors {
			errs = append(errs, fmt.Errorf("inputs[%d]: %w %d", i, logic.ErrInvalidSlot, in.Slot))
		} else if other, ok := slots[in.Slot]; ok {
			errs = append(errs, fmt.Errorf("inputs[%d]: slot %d already used by %q", i, in.Slot, other))
		}
		slots[in.Slot] = in.Name
	}
	for i, out := range c.Outputs {
		checkCommon("outputs", i, out.Name, out.Pin)
	}

	return errors.Join(errs...)
}

// OpenByteStore opens the configured backend, sized for logic.MaxSensors slots
// after the offset. The returned close function releases it.
func (n NVRAM) OpenByteStore() (nvstore.ByteStore, func() error, error) {
	size := n.Offset + nvstore.Size(logic.MaxSensors)
	switch n.Backend {
	case BackendMemory:
		return nvstore.NewMemStore(size), func() error { return nil }, nil
	case BackendFile:
		fs, err := nvstore.OpenFile(n.Path, size)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	case BackendBolt:
		bs, err := nvstore.OpenBolt(n.Path)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs.Close, nil
	}
	return nil, nil, fmt.Errorf("%w %q", ErrBackend, n.Backend)
}
