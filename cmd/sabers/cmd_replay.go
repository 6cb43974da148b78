package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sabers-go/sabers/internal/bsor"
	"github.com/sabers-go/sabers/pkg/core"
)

// replaySummary is the encoded form of a replay without its frames.
type replaySummary struct {
	Info       core.ReplayInfo `json:"info" yaml:"info"`
	FrameCount int             `json:"frameCount" yaml:"frameCount"`
	Duration   float32         `json:"duration" yaml:"duration"`
}

func newReplayCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "replay <file.bsor>",
		Short: "Print the header and frame summary of a replay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			replay, err := bsor.ReadFile(args[0])
			if err != nil {
				return err
			}

			summary := replaySummary{
				Info:       replay.Info,
				FrameCount: len(replay.Frames),
				Duration:   replay.Duration(),
			}
			if format == formatText {
				printReplay(cmd.OutOrStdout(), summary)
				return nil
			}
			return writeEncoded(cmd.OutOrStdout(), format, summary)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	return cmd
}

func printReplay(w io.Writer, s replaySummary) {
	info := s.Info
	fmt.Fprintf(w, "player:     %s (%s, %s)\n", info.PlayerName, info.PlayerID, info.Platform)
	fmt.Fprintf(w, "song:       %s by %s [%s]\n", info.SongName, info.Mapper, info.SongHash)
	fmt.Fprintf(w, "difficulty: %s %s\n", info.Mode, info.Difficulty)
	fmt.Fprintf(w, "score:      %d\n", info.Score)
	if len(info.Modifiers) > 0 {
		fmt.Fprintf(w, "modifiers:  %s\n", strings.Join(info.Modifiers, ","))
	}
	fmt.Fprintf(w, "hardware:   %s / %s / %s\n", info.HMD, info.Controller, info.TrackingSystem)
	fmt.Fprintf(w, "frames:     %d over %.2fs\n", s.FrameCount, s.Duration)
}
