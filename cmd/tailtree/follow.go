package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/tailtree/internal/tail"
	"github.com/TimelordUK/tailtree/internal/ui"
)

func newFollowCommand(ctx *commandContext) *cobra.Command {
	var layoutPath string
	var pollMs int
	var plain bool
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "follow [FILE...]",
		Short: "Tail files live, grouped by a layout",
		Long: `Tail files live. With --layout the files and their groups come from a
YAML layout; otherwise every FILE argument is tailed in a single group.

On a terminal an interactive tree view is started. With --plain, or when
stdout is not a terminal, new lines are streamed as "[source] line".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if layoutPath == "" && len(args) == 0 {
				return errors.New("follow: no files given; pass FILE arguments or --layout")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			interactive := !plain && isTerminal(cmd.OutOrStdout())
			logger := ctx.logger(!interactive)

			s := openSession(cfg, logger, cmd.ErrOrStderr(), layoutPath, args)
			if pollMs > 0 {
				s.engine.SetPollInterval(time.Duration(pollMs) * time.Millisecond)
			}
			logger.Info("follow started",
				"session", s.engine.Session(),
				"files", s.added,
				"failed", s.failed,
				"poll_interval", s.engine.PollInterval(),
			)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, duration)
				defer cancel()
			}

			if interactive {
				return ui.Run(runCtx, ui.Options{
					Engine: s.engine,
					Config: cfg,
					Title:  s.name,
					Logger: logger,
				})
			}
			return streamPlain(runCtx, cmd.OutOrStdout(), s.engine)
		},
	}

	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "Layout file describing groups and files")
	cmd.Flags().IntVar(&pollMs, "poll", 0, "Poll interval in milliseconds (50-5000)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Stream lines instead of starting the interactive view")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")

	return cmd
}

// streamPlain polls the engine on its interval and writes new lines until
// ctx is done.
func streamPlain(ctx context.Context, w io.Writer, engine *tail.Engine) error {
	interval := engine.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			res := engine.Poll(now)
			for _, line := range res.Lines {
				if _, err := fmt.Fprintf(w, "[%s] %s\n", line.Source, line.Content); err != nil {
					return err
				}
			}
			if d := engine.PollInterval(); d != interval {
				interval = d
				ticker.Reset(d)
			}
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
