package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/internal/mapfs"
	"github.com/sabers-go/sabers/internal/mapinfo"
	"github.com/sabers-go/sabers/internal/normalize"
	"github.com/sabers-go/sabers/pkg/core"
)

func newMapCmd() *cobra.Command {
	var (
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "map <dir|zip>",
		Short: "Load and normalize every difficulty of a map",
		Long: `Reads Info.dat and every difficulty it references from a map directory
or zip archive, normalizes them and prints the result.

With --strict the first difficulty that fails aborts the load; otherwise
failed difficulties are listed and the rest are still printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			loader, err := newLoader(strict || config.GetIngestConfig().Strict)
			if err != nil {
				return err
			}

			fsys, err := mapfs.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open map: %w", err)
			}
			defer fsys.Close()

			info, err := loader.Load(cmd.Context(), fsys)
			if err != nil {
				return err
			}

			if format == formatText {
				return printMapInfo(cmd.OutOrStdout(), info)
			}
			return writeEncoded(cmd.OutOrStdout(), format, info)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first difficulty that cannot be loaded")
	return cmd
}

func newLoader(strict bool) (*mapinfo.Loader, error) {
	pipeline, err := normalize.New(Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return mapinfo.NewLoader(Logger, pipeline, strict), nil
}

func printMapInfo(w io.Writer, info *core.MapInfo) error {
	fmt.Fprintf(w, "%s", info.Song.Title)
	if info.Song.Subtitle != "" {
		fmt.Fprintf(w, " (%s)", info.Song.Subtitle)
	}
	fmt.Fprintf(w, " by %s, mapped by %s\n", info.Song.Author, info.Song.LevelAuthor)
	fmt.Fprintf(w, "hash:        %s\n", info.Hash)
	fmt.Fprintf(w, "bpm:         %s\n", humanize.Ftoa(info.Audio.BPM))
	fmt.Fprintf(w, "environment: %s\n\n", info.Environment)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHARACTERISTIC\tDIFFICULTY\tVERSION\tNOTES\tBOMBS\tWALLS\tCHAINS\tLENGTH\tNPS")
	for _, d := range info.Maps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2fs\t%.2f\n",
			d.Characteristic, d.Difficulty, d.Version,
			humanize.Comma(int64(len(d.Map.ColorNotes))),
			humanize.Comma(int64(len(d.Map.BombNotes))),
			humanize.Comma(int64(len(d.Map.Obstacles))),
			humanize.Comma(int64(len(d.Map.Chains))),
			d.Map.Length(), d.Map.NotesPerSecond())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range info.Failures {
		fmt.Fprintf(w, "failed: %s/%s (%s): %v\n", f.Characteristic, f.Difficulty, f.Filename, f.Err)
	}
	return nil
}
