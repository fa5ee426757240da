// Command timed-io measures how long digital inputs are ON, persists monthly
// totals to non-volatile storage, drives timed outputs and reports over MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/sweeney/timed-io/internal/config"
	"github.com/sweeney/timed-io/internal/gpio"
	"github.com/sweeney/timed-io/internal/logic"
	"github.com/sweeney/timed-io/internal/mqtt"
	"github.com/sweeney/timed-io/internal/nvstore"
	"github.com/sweeney/timed-io/internal/registry"
	"github.com/sweeney/timed-io/internal/status"
	"github.com/sweeney/timed-io/internal/web"
)

type options struct {
	configPath string
	poll       time.Duration
	broker     string
	clientID   string
	heartbeat  time.Duration
	chip       string
	printState bool
	httpAddr   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "/etc/timed-io/config.yaml", "Sensor configuration file")
	flag.DurationVar(&opts.poll, "poll", 100*time.Millisecond, "GPIO polling interval")
	flag.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&opts.clientID, "client-id", "timed-io", "MQTT client id")
	flag.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&opts.chip, "chip", gpio.DefaultChip, "GPIO character device")
	flag.BoolVar(&opts.printState, "print-state", false, "Print current input states and exit")
	flag.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")

	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loopClock is the registry's time source. runLoop sets it once per
// iteration so every reading within one iteration sees the same instant.
type loopClock struct {
	t time.Time
}

func (c *loopClock) Now() time.Time { return c.t }

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize GPIO
	pins, err := gpio.NewRealPins(opts.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	// Initialize NVRAM
	bs, closeStore, err := cfg.NVRAM.OpenByteStore()
	if err != nil {
		return fmt.Errorf("init nvram: %w", err)
	}
	defer closeStore()
	store := nvstore.New(bs, cfg.NVRAM.Offset, logic.MaxSensors)

	clock := &loopClock{t: time.Now()}

	// Print state mode
	if opts.printState {
		reg := registry.New(pins, store, clock)
		if err := addInputs(reg, cfg); err != nil {
			return err
		}
		if err := reg.Poll(); err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		inputs, _ := reg.Snapshot()
		for _, in := range inputs {
			fmt.Printf("%s (pin %d): %s\n", in.Name, in.Pin, in.State)
		}
		return nil
	}

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(opts.broker, opts.clientID)
	defer publisher.Close()

	reg := registry.New(pins, store, clock,
		registry.WithObserver(mqtt.NewObserver(publisher)),
		registry.WithRecordingInterval(cfg.RecordingInterval),
	)
	if err := addInputs(reg, cfg); err != nil {
		return err
	}
	if err := addOutputs(reg, cfg); err != nil {
		return err
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(clock.Now(), status.Config{
		PollMs:              opts.poll.Milliseconds(),
		HeartbeatMs:         opts.heartbeat.Milliseconds(),
		RecordingIntervalMs: cfg.RecordingInterval.Milliseconds(),
		Broker:              opts.broker,
		HTTPAddr:            opts.httpAddr,
		NVRAMBackend:        cfg.NVRAM.Backend,
		NVRAMPath:           cfg.NVRAM.Path,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	refreshMonthly(reg, tracker)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	commands := make(chan web.Command)
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, commands)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: inputs=%d outputs=%d poll=%v broker=%s heartbeat=%v nvram=%s",
		len(reg.Inputs()), len(reg.Outputs()), opts.poll, opts.broker, opts.heartbeat, cfg.NVRAM.Backend)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("sd_notify ready: %v", err)
	} else if ok {
		log.Printf("notified systemd: ready")
	}
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	ticker := time.NewTicker(opts.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(reg, clock, store, publisher, publisher, tracker, opts.heartbeat, time.Now, ticker.C, sigCh, commands)
}

func addInputs(reg *registry.Registry, cfg config.Config) error {
	for _, in := range cfg.Inputs {
		if logic.NewName(in.Name).Truncated() {
			log.Printf("input %q: name truncated to %q", in.Name, logic.NewName(in.Name))
		}
		tr, err := reg.AddInput(in)
		if err != nil {
			return fmt.Errorf("setup input: %w", err)
		}
		log.Printf("input %s: pin=%d polarity=%s pullup=%v slot=%d month_on=%v",
			tr.Name(), in.Pin, in.Polarity, in.PullUp, in.Slot, tr.MonthOn())
	}
	return nil
}

func addOutputs(reg *registry.Registry, cfg config.Config) error {
	for _, out := range cfg.Outputs {
		if logic.NewName(out.Name).Truncated() {
			log.Printf("output %q: name truncated to %q", out.Name, logic.NewName(out.Name))
		}
		o, err := reg.AddOutput(out)
		if err != nil {
			return fmt.Errorf("setup output: %w", err)
		}
		log.Printf("output %s: pin=%d polarity=%s", o.Name(), out.Pin, out.Polarity)
	}
	return nil
}

func refreshMonthly(reg *registry.Registry, tracker *status.Tracker) {
	records, err := reg.AllMonthlyActivity()
	if err != nil {
		log.Printf("read monthly activity: %v", err)
		return
	}
	tracker.SetMonthly(records)
}

func runLoop(reg *registry.Registry, clock *loopClock, store *nvstore.Store, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, commands <-chan web.Command) error {
	clock.t = now()
	hb := logic.NewHeartbeat(clock.t)
	lastWrites := store.Writes()

	updateTracker := func() {
		if tracker == nil {
			return
		}
		if w := store.Writes(); w != lastWrites {
			lastWrites = w
			refreshMonthly(reg, tracker)
		}
		inputs, outputs := reg.Snapshot()
		tracker.Update(inputs, outputs, store.Writes())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			clock.t = now()
			if err := reg.AllOff(); err != nil {
				log.Printf("switch outputs off: %v", err)
			}
			flushErr := reg.Flush()
			if flushErr != nil {
				log.Printf("flush nvram: %v", flushErr)
			}

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: clock.t,
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				updateTracker()
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return flushErr

		case cmd := <-commands:
			clock.t = now()
			err := reg.SetOutput(cmd.Output, cmd.On, cmd.Duration)
			if err != nil {
				log.Printf("command %s on=%v: %v", cmd.Output, cmd.On, err)
			} else {
				log.Printf("command: %s on=%v duration=%v", cmd.Output, cmd.On, cmd.Duration)
			}
			cmd.Reply <- err
			updateTracker()

		case <-tick:
			clock.t = now()
			if err := reg.Poll(); err != nil {
				var se *registry.StorageError
				if errors.As(err, &se) {
					return err
				}
				log.Printf("poll error: %v", err)
			}

			// Check for heartbeat
			if uptime, ok := hb.Check(clock.t, heartbeat); ok {
				inputs, outputs := reg.Snapshot()
				log.Printf("heartbeat: uptime=%v inputs=%d outputs=%d nvram_writes=%d",
					uptime, len(inputs), len(outputs), store.Writes())

				hbEvent := mqtt.SystemEvent{
					Timestamp: clock.t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					updateTracker()
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			updateTracker()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
