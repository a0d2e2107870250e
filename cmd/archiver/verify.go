package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thirdcoast.systems/vodarchive/internal/httpx"
	"thirdcoast.systems/vodarchive/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <manifest.csv>",
	Short: "List manifest episodes that have no archive.org item",
	Long: `verify reads an episode manifest CSV, asks archive.org which of the
episodes' item identifiers exist and writes the watch links of the missing ones
to missing[_show][_channel].txt in the working directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.String("show", "", "only rows whose show matches")
	f.String("channel", "", "only rows whose channel matches")
	f.Int("chunk-size", verify.DefaultChunkSize, "identifiers per search request")
}

func runVerify(cmd *cobra.Command, args []string) error {
	show, _ := cmd.Flags().GetString("show")
	channel, _ := cmd.Flags().GetString("channel")
	chunk, _ := cmd.Flags().GetInt("chunk-size")

	rows, err := verify.LoadCSV(args[0], show, channel)
	if err != nil {
		return err
	}
	logger.Info("verifying manifest", "path", args[0], "rows", len(rows), "show", show, "channel", channel)

	ac := newArchiveClient(httpx.New(), conf, logger)
	missing, err := verify.Missing(cmd.Context(), ac, rows, chunk)
	if err != nil {
		return err
	}

	out := verify.OutputName(show, channel)
	if err := verify.WriteLinks(out, missing); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s of %s episodes missing, links written to %s\n",
		humanize.Comma(int64(len(missing))), humanize.Comma(int64(len(rows))), out)
	return nil
}
