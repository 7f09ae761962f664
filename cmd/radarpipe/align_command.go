package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"radarpipe/internal/align"
	"radarpipe/internal/scanfile"
	"radarpipe/internal/volume"
)

// newAlignCommand assembles one volume from local scan files without the
// daemon: decode, align, and write the summary where --out points.
func newAlignCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "align FILE [FILE ...]",
		Short: "Align local scan files into one volume",
		Long: `Align local scan files into one volume.

All files must belong to the same instrument, scan, and timestamp. The
assembled volume summary is written to --out, or the configured processed
directory when omitted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key scanfile.VolumeKey
			members := make([]volume.Member, 0, len(args))
			for i, path := range args {
				name, err := scanfile.Parse(filepath.Base(path))
				if err != nil {
					return fmt.Errorf("file %s: %w", path, err)
				}
				if i == 0 {
					key = name.Key()
				} else if name.Key() != key {
					return fmt.Errorf("file %s belongs to volume %s, expected %s", path, name.Key(), key)
				}
				members = append(members, volume.Member{Name: name, LocalPath: path})
			}

			decoder := volume.NewNativeDecoder()
			fields := make([]*align.FieldRecord, 0, len(members))
			for _, m := range members {
				rec, err := decoder.Decode(cmd.Context(), m.LocalPath)
				if err != nil {
					return fmt.Errorf("decode %s: %w", m.LocalPath, err)
				}
				fields = append(fields, rec)
			}

			vol, err := align.Align(fields)
			if err != nil {
				return err
			}

			dir := outDir
			if dir == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				dir = cfg.Paths.ProcessedDir
			}

			writer := &volume.SummaryWriter{Dir: dir}
			outputPath, err := writer.Consume(cmd.Context(), key, vol)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Assembled volume %s\n", key)
			rows := make([][]string, 0, len(vol.Fields)+2)
			rows = append(rows,
				[]string{"(reference)", "", strconv.Itoa(vol.NGates), fmt.Sprintf("%g m", vol.GateSize)})
			for _, f := range vol.Fields {
				gates := 0
				if len(f.Data) > 0 {
					gates = len(f.Data[0])
				}
				rows = append(rows, []string{f.Name, f.Units, strconv.Itoa(gates), ""})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Units", "Gates", "Gate size"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "Summary written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory for the volume summary")
	return cmd
}
