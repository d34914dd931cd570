package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/tailtree/internal/group"
	"github.com/TimelordUK/tailtree/internal/tail"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var layoutPath string

	cmd := &cobra.Command{
		Use:   "status [FILE...]",
		Short: "Show the files and groups of a layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if layoutPath == "" && len(args) == 0 {
				return errors.New("status: no files given; pass FILE arguments or --layout")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(true)

			s := openSession(cfg, logger, cmd.ErrOrStderr(), layoutPath, args)
			res := s.engine.Poll(time.Now())

			out := cmd.OutOrStdout()
			files := s.engine.Files()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files.")
			} else {
				fmt.Fprintln(out, statusTable(s.engine.Tree(), files))
			}
			if tree := renderGroupTree(s.engine.Tree()); tree != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, tree)
			}

			stats := s.engine.Stats()
			fmt.Fprintf(out, "\n%d files, %d paused, %d errors\n", stats.Files, stats.PausedFiles, len(res.Errors)+s.failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "Layout file describing groups and files")
	return cmd
}

func statusTable(tree *group.Tree, files []tail.FileStatus) string {
	headers := []string{"Name", "Group", "Size", "State", "Path"}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		groupName := "-"
		if n, ok := tree.Node(f.Group); ok {
			groupName = n.Name
		}
		rows = append(rows, []string{
			f.Name,
			groupName,
			humanize.Bytes(uint64(max(f.Size, 0))),
			fileState(f),
			f.Path,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft})
}

func fileState(f tail.FileStatus) string {
	switch {
	case f.LastError != nil:
		return "error: " + f.LastError.Error()
	case f.Paused:
		return "paused"
	case f.Active:
		return "active"
	default:
		return "idle"
	}
}
