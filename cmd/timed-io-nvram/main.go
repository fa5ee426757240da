// Command timed-io-nvram inspects and clears the monthly ON-time image the
// timed-io daemon keeps in NVRAM. Stop the daemon before clearing.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sweeney/timed-io/internal/config"
	"github.com/sweeney/timed-io/internal/logic"
	"github.com/sweeney/timed-io/internal/nvstore"
	"github.com/sweeney/timed-io/internal/status"
)

const defaultConfigPath = "/etc/timed-io/config.yaml"

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	format     string // "text" | "json"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "timed-io-nvram: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "timed-io-nvram",
		Short: "Inspect and clear timed-io monthly ON-time records",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.format)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newClearCommand(opts))

	return cmd
}

// nvram is an opened store plus the sensor names configured per slot.
type nvram struct {
	store *nvstore.Store
	names map[int]string
	close func() error
}

func openNVRAM(opts *rootOptions) (*nvram, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	bs, closeFn, err := cfg.NVRAM.OpenByteStore()
	if err != nil {
		return nil, fmt.Errorf("open nvram: %w", err)
	}
	names := make(map[int]string, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		names[in.Slot] = logic.NewName(in.Name).String()
	}
	return &nvram{
		store: nvstore.New(bs, cfg.NVRAM.Offset, logic.MaxSensors),
		names: names,
		close: closeFn,
	}, nil
}

func parseSlot(s string) (int, error) {
	slot, err := strconv.Atoi(s)
	if err != nil || slot < 0 || slot >= logic.MaxSensors {
		return 0, fmt.Errorf("invalid slot %q: must be 0..%d", s, logic.MaxSensors-1)
	}
	return slot, nil
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [slot]",
		Short: "Print the stored ON time per month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slots := make([]int, 0, logic.MaxSensors)
			if len(args) == 1 {
				slot, err := parseSlot(args[0])
				if err != nil {
					return err
				}
				slots = append(slots, slot)
			} else {
				for i := 0; i < logic.MaxSensors; i++ {
					slots = append(slots, i)
				}
			}
			return runShow(opts, slots, cmd.OutOrStdout())
		},
	}
}

func runShow(opts *rootOptions, slots []int, w io.Writer) (err error) {
	nv, err := openNVRAM(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := nv.close(); err == nil {
			err = cerr
		}
	}()

	records := make([]status.MonthlyJSON, 0, len(slots))
	for _, slot := range slots {
		months, err := nv.store.Months(slot)
		if err != nil {
			return fmt.Errorf("read slot %d: %w", slot, err)
		}
		records = append(records, status.MonthlyJSON{Slot: slot, Sensor: nv.names[slot], MonthsMs: months})
	}

	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	for _, r := range records {
		sensor := r.Sensor
		if sensor == "" {
			sensor = "unassigned"
		}
		fmt.Fprintf(w, "slot %d (%s)\n", r.Slot, sensor)
		for m, ms := range r.MonthsMs {
			d := time.Duration(ms) * time.Millisecond
			fmt.Fprintf(w, "  %s  %12s  %s ms\n", time.Month(m+1).String()[:3], d, humanize.Comma(int64(ms)))
		}
	}
	return nil
}

func newClearCommand(opts *rootOptions) *cobra.Command {
	var month int

	cmd := &cobra.Command{
		Use:   "clear <slot>",
		Short: "Zero the stored ON time of a slot",
		Long: `Zero the stored ON time of a slot, or of one month with --month.

Values that are already zero are not rewritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			if month < 0 || month > nvstore.MonthsPerSlot {
				return fmt.Errorf("invalid month %d: must be 1..12", month)
			}
			return runClear(opts, slot, month, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&month, "month", "m", 0, "clear only this month (1-12)")

	return cmd
}

// clearResult is the JSON output of clear.
type clearResult struct {
	Slot   int `json:"slot"`
	Month  int `json:"month,omitempty"`
	Writes int `json:"writes"`
}

func runClear(opts *rootOptions, slot, month int, w io.Writer) (err error) {
	nv, err := openNVRAM(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := nv.close(); err == nil {
			err = cerr
		}
	}()

	res := clearResult{Slot: slot, Month: month}
	if month == 0 {
		res.Writes, err = nv.store.ClearSlot(slot)
	} else {
		var written bool
		written, err = nv.store.Put(slot, month, 0)
		if written {
			res.Writes = 1
		}
	}
	if err != nil {
		return fmt.Errorf("clear slot %d: %w", slot, err)
	}

	if opts.format == "json" {
		return json.NewEncoder(w).Encode(res)
	}
	target := "all months"
	if month != 0 {
		target = time.Month(month).String()
	}
	fmt.Fprintf(w, "slot %d: cleared %s (%d writes)\n", slot, target, res.Writes)
	return nil
}
