package web

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/timed-io/internal/logic"
	"github.com/sweeney/timed-io/internal/status"
)

// collector exports the tracker's latest snapshot on every scrape.
type collector struct {
	tracker *status.Tracker

	inputOn       *prometheus.Desc
	todayOn       *prometheus.Desc
	monthOn       *prometheus.Desc
	onCount       *prometheus.Desc
	storedMonth   *prometheus.Desc
	outputOn      *prometheus.Desc
	remaining     *prometheus.Desc
	nvramWrites   *prometheus.Desc
	mqttConnected *prometheus.Desc
	uptime        *prometheus.Desc
}

func newCollector(tracker *status.Tracker) *collector {
	return &collector{
		tracker:       tracker,
		inputOn:       prometheus.NewDesc("timed_io_input_on", "1 when the input is logically ON.", []string{"sensor"}, nil),
		todayOn:       prometheus.NewDesc("timed_io_input_today_on_seconds", "ON time since the last day rollover.", []string{"sensor"}, nil),
		monthOn:       prometheus.NewDesc("timed_io_input_month_on_seconds", "ON time of the current month.", []string{"sensor"}, nil),
		onCount:       prometheus.NewDesc("timed_io_input_on_count", "OFF to ON transitions since start or counter reset.", []string{"sensor"}, nil),
		storedMonth:   prometheus.NewDesc("timed_io_nvram_month_on_seconds", "ON time persisted in NVRAM per month.", []string{"slot", "sensor", "month"}, nil),
		outputOn:      prometheus.NewDesc("timed_io_output_on", "1 when the output is ON.", []string{"output"}, nil),
		remaining:     prometheus.NewDesc("timed_io_output_remaining_seconds", "Time until a timed output turns OFF.", []string{"output"}, nil),
		nvramWrites:   prometheus.NewDesc("timed_io_nvram_writes_total", "Physical NVRAM writes since start.", nil, nil),
		mqttConnected: prometheus.NewDesc("timed_io_mqtt_connected", "1 when the MQTT broker connection is open.", nil, nil),
		uptime:        prometheus.NewDesc("timed_io_uptime_seconds", "Seconds since the daemon started.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inputOn
	ch <- c.todayOn
	ch <- c.monthOn
	ch <- c.onCount
	ch <- c.storedMonth
	ch <- c.outputOn
	ch <- c.remaining
	ch <- c.nvramWrites
	ch <- c.mqttConnected
	ch <- c.uptime
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.tracker.Snapshot()

	for _, in := range snap.Inputs {
		ch <- prometheus.MustNewConstMetric(c.inputOn, prometheus.GaugeValue, boolValue(in.State == logic.StateOn), in.Name)
		ch <- prometheus.MustNewConstMetric(c.todayOn, prometheus.GaugeValue, in.TodayOn.Seconds(), in.Name)
		ch <- prometheus.MustNewConstMetric(c.monthOn, prometheus.GaugeValue, in.MonthOn.Seconds(), in.Name)
		ch <- prometheus.MustNewConstMetric(c.onCount, prometheus.GaugeValue, float64(in.TodayOnCount), in.Name)
	}
	for _, rec := range snap.Monthly {
		slot := strconv.Itoa(rec.Slot)
		for i, ms := range rec.Months {
			ch <- prometheus.MustNewConstMetric(c.storedMonth, prometheus.GaugeValue, float64(ms)/1000, slot, rec.Sensor, strconv.Itoa(i+1))
		}
	}
	for _, out := range snap.Outputs {
		ch <- prometheus.MustNewConstMetric(c.outputOn, prometheus.GaugeValue, boolValue(out.State == logic.StateOn), out.Name)
		ch <- prometheus.MustNewConstMetric(c.remaining, prometheus.GaugeValue, out.Remaining.Seconds(), out.Name)
	}
	ch <- prometheus.MustNewConstMetric(c.nvramWrites, prometheus.CounterValue, float64(snap.NVRAMWrites))
	ch <- prometheus.MustNewConstMetric(c.mqttConnected, prometheus.GaugeValue, boolValue(snap.MQTTConnected))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, snap.Uptime().Seconds())
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
