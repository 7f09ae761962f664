package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"radarpipe/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Inspect and control the running daemon",
	}
	cmd.AddCommand(newDaemonStatusCommand(ctx))
	cmd.AddCommand(newDaemonUpdateCommand(ctx))
	cmd.AddCommand(newDaemonStopCommand(ctx))
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				status := resp.Status

				rows := [][]string{
					{"Running", yesNo(status.Running)},
					{"PID", strconv.Itoa(status.PID)},
					{"State backend", status.Backend},
					{"State path", status.StatePath},
					{"Lock path", status.LockPath},
					{"Volumes processed", strconv.Itoa(status.Volumes.Processed)},
					{"Volumes failed", strconv.Itoa(status.Volumes.Failed)},
				}
				if d := status.Download; d != nil {
					rows = append(rows,
						[]string{"Download phase", string(d.Phase)},
						[]string{"Download cycles", strconv.FormatInt(d.Cycles, 10)},
						[]string{"Files downloaded", strconv.FormatInt(d.Downloaded, 10)},
						[]string{"Download failures", strconv.FormatInt(d.Failed, 10)},
						[]string{"Files acquired", strconv.Itoa(d.Acquired)},
					)
					if d.LastError != "" {
						rows = append(rows, []string{"Download last error", d.LastError})
					}
				}
				if p := status.Processing; p != nil {
					rows = append(rows,
						[]string{"Processing cycles", strconv.FormatInt(p.Cycles, 10)},
						[]string{"Groups pending", strconv.Itoa(p.Pending)},
					)
					if p.LastError != "" {
						rows = append(rows, []string{"Processing last error", p.LastError})
					}
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "Value"}, rows,
					[]columnAlignment{alignLeft, alignLeft}))
				return nil
			})
		},
	}
}

func newDaemonUpdateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update key=value [key=value ...]",
		Short: "Apply runtime settings to the running daemon",
		Long: `Apply runtime settings to the running daemon.

Known settings:
  download.poll_interval       seconds between download cycles
  download.max_concurrent      concurrent transfer limit
  processing.poll_interval     seconds between processing cycles
  processing.quiescent_cycles  idle cycles before a group dispatches`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := make(map[string]string, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("invalid setting %q, expected key=value", arg)
				}
				settings[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UpdateConfig(settings)
				if err != nil {
					return err
				}
				for _, key := range resp.Applied {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s=%s\n", key, settings[key])
				}
				return nil
			})
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				return nil
			})
		},
	}
}
