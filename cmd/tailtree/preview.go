package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimelordUK/tailtree/internal/preview"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var followLines int
	var line int
	var paused bool

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Print the end of a file, or the lines around one line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			opts := preview.Options{
				FollowLines:   cfg.Preview.FollowLines,
				MmapThreshold: cfg.Preview.MmapThresholdBytes,
				ContextLines:  cfg.Preview.ContextLines,
			}
			if followLines > 0 {
				opts.FollowLines = followLines
			}
			loader := preview.NewLoader(opts)

			var res preview.Result
			switch {
			case line > 0:
				res, err = loader.Window(args[0], line)
			case paused:
				res, err = loader.Load(args[0], preview.Paused)
			default:
				res, err = loader.Load(args[0], preview.Following)
			}
			if err != nil {
				return err
			}

			if len(res.Lines) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(res.Lines, "\n"))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&followLines, "follow-lines", "n", 0, "Number of trailing lines to show")
	cmd.Flags().IntVar(&line, "line", 0, "Show the window around this 1-based line")
	cmd.Flags().BoolVar(&paused, "paused", false, "Load the whole file, or a window around its last line when large")
	return cmd
}
