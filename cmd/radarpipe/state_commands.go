package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"radarpipe/internal/ipc"
	"radarpipe/internal/scanfile"
	"radarpipe/internal/state"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Query the acquisition state tracker",
	}
	cmd.AddCommand(newStateCountCommand(ctx))
	cmd.AddCommand(newStateRangeCommand(ctx))
	cmd.AddCommand(newStateLatestCommand(ctx))
	cmd.AddCommand(newStateInfoCommand(ctx))
	return cmd
}

func newStateLatestCommand(ctx *commandContext) *cobra.Command {
	var instrument string
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recently observed acquisition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StateLatest(instrument)
				if err != nil {
					return err
				}
				if resp.Record == nil {
					return fmt.Errorf("no acquisitions tracked")
				}
				printRecord(cmd, resp.Record)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "Restrict to one instrument")
	return cmd
}

func newStateCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the number of tracked acquisitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StateCount()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Count)
				return nil
			})
		},
	}
}

func newStateRangeCommand(ctx *commandContext) *cobra.Command {
	var instrument string
	cmd := &cobra.Command{
		Use:   "range START END",
		Short: "List acquired files inside an inclusive observation window",
		Long: `List acquired files inside an inclusive observation window.

START and END accept either the scan-file timestamp form (20240101T000000Z)
or RFC 3339 (2024-01-01T00:00:00Z).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTimestamp(args[0])
			if err != nil {
				return fmt.Errorf("parse start: %w", err)
			}
			end, err := parseTimestamp(args[1])
			if err != nil {
				return fmt.Errorf("parse end: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StateRange(start, end, instrument)
				if err != nil {
					return err
				}
				for _, name := range resp.Filenames {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "Restrict to one instrument")
	return cmd
}

func newStateInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILENAME",
		Short: "Show the tracked record for one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StateInfo(args[0])
				if err != nil {
					return err
				}
				if resp.Record == nil {
					return fmt.Errorf("file %s is not tracked", args[0])
				}
				printRecord(cmd, resp.Record)
				return nil
			})
		},
	}
}

func printRecord(cmd *cobra.Command, rec *state.Record) {
	rows := [][]string{
		{"Filename", rec.Filename},
		{"Remote path", rec.RemotePath},
		{"Local path", rec.LocalPath},
		{"Size", strconv.FormatInt(rec.Size, 10)},
		{"Checksum", rec.Checksum},
		{"Instrument", rec.Instrument},
		{"Field", rec.Field},
		{"Observed", formatTime(rec.ObservedAt)},
		{"Acquired", formatTime(rec.AcquiredAt)},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Field", "Value"}, rows,
		[]columnAlignment{alignLeft, alignLeft}))
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(scanfile.TimeLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
