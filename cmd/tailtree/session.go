package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/TimelordUK/tailtree/internal/config"
	"github.com/TimelordUK/tailtree/internal/layout"
	"github.com/TimelordUK/tailtree/internal/tail"
)

// session is an engine populated from a layout file or a list of paths.
type session struct {
	name   string
	engine *tail.Engine
	added  int
	failed int
}

// openSession builds the engine. A layout that fails to load is reported and
// replaced by an empty one. Files that cannot be opened are reported and
// skipped.
func openSession(cfg *config.Config, logger *slog.Logger, stderr io.Writer, layoutPath string, paths []string) *session {
	loaded, err := loadLayout(layoutPath, paths)
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
		logger.Warn("layout load failed", "layout", layoutPath, "error", err)
		loaded, _ = layout.FromPaths("files", nil)
	}
	for _, pattern := range loaded.Unmatched {
		fmt.Fprintf(stderr, "warning: pattern %s matched no files\n", pattern)
		logger.Warn("pattern matched no files", "pattern", pattern)
	}

	opts := tail.OptionsFromConfig(cfg)
	opts.Logger = logger
	s := &session{name: loaded.Name, engine: tail.NewEngine(loaded.Tree, opts)}

	for _, f := range loaded.Files {
		err := s.engine.AddFile(f.Path, tail.FileOptions{Name: f.Name, Group: f.Group, Paused: f.Paused})
		if err != nil {
			fmt.Fprintf(stderr, "warning: %v\n", err)
			s.failed++
			continue
		}
		s.added++
	}

	// Paths given next to a layout are tailed without a group.
	if strings.TrimSpace(layoutPath) != "" {
		for _, p := range paths {
			if err := s.engine.AddFile(p, tail.FileOptions{}); err != nil {
				fmt.Fprintf(stderr, "warning: %v\n", err)
				s.failed++
				continue
			}
			s.added++
		}
	}
	return s
}

func loadLayout(layoutPath string, paths []string) (*layout.Loaded, error) {
	if strings.TrimSpace(layoutPath) == "" {
		return layout.FromPaths("files", paths)
	}
	resolved, err := config.ExpandPath(layoutPath)
	if err != nil {
		return nil, err
	}
	return layout.LoadFile(resolved)
}
