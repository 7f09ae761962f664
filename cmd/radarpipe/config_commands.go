package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"radarpipe/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the ftp section before starting radarpiped.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Config path", ctx.configPath},
				{"Instrument", cfg.Instrument},
				{"FTP host", fmt.Sprintf("%s:%d", cfg.FTP.Host, cfg.FTP.Port)},
				{"FTP base path", cfg.FTP.BasePath},
				{"Base directory", cfg.Paths.BaseDir},
				{"Raw directory", cfg.Paths.RawDir},
				{"Processed directory", cfg.Paths.ProcessedDir},
				{"State backend", cfg.State.Backend},
				{"State path", cfg.Paths.StatePath},
				{"Socket path", cfg.Paths.SocketPath},
				{"Download enabled", yesNo(cfg.Download.Enabled)},
				{"Download poll interval", fmt.Sprintf("%ds", cfg.Download.PollInterval)},
				{"Download max concurrent", strconv.Itoa(cfg.Download.MaxConcurrent)},
				{"Processing enabled", yesNo(cfg.Processing.Enabled)},
				{"Processing poll interval", fmt.Sprintf("%ds", cfg.Processing.PollInterval)},
				{"Volume types", cfg.Processing.VolumeTypes},
				{"Quiescent cycles", strconv.Itoa(cfg.Processing.QuiescentCycles)},
				{"Log level", cfg.Logging.Level},
				{"Log format", cfg.Logging.Format},
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}
