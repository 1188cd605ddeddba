package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lewtec/rotulador-video/internal/coco"
)

var errChecksumMismatch = errors.New("checksum mismatch")

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Inspect the history of written datasets",
}

var exportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer p.Close()
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := p.Exports.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UUID\tCREATED\tVIDEO\tEND\tIMAGES\tANNOTATIONS\tOUTPUT")
		for _, r := range records {
			end := "-"
			if r.EndFrame != nil {
				end = fmt.Sprint(*r.EndFrame)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", r.UUID, r.CreatedAt.Format(time.DateTime), r.VideoPath, end, r.Images, r.Annotations, r.OutputPath)
		}
		return w.Flush()
	},
}

var exportsVerifyCmd = &cobra.Command{
	Use:   "verify <uuid>",
	Short: "Check that an exported dataset is unchanged on disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer p.Close()
		rec, err := p.Exports.GetByUUID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("export %s not found", args[0])
		}
		if _, err := os.Stat(rec.OutputPath); err != nil {
			return fmt.Errorf("export %s: %w", rec.UUID, err)
		}
		sum, err := coco.HashFile(rec.OutputPath)
		if err != nil {
			return err
		}
		if sum != rec.Checksum {
			return fmt.Errorf("%w: %s has %s, recorded %s", errChecksumMismatch, rec.OutputPath, sum, rec.Checksum)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK %s\n", rec.OutputPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportsCmd)
	exportsCmd.AddCommand(exportsListCmd, exportsVerifyCmd)
	exportsListCmd.Flags().IntP("limit", "n", 20, "Maximum number of exports to show, 0 for all")
}
