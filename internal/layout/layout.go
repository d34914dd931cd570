// Package layout loads the YAML document that describes the group tree and
// the files to tail.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TimelordUK/tailtree/internal/config"
	"github.com/TimelordUK/tailtree/internal/group"
)

// Layout mirrors the layout file.
type Layout struct {
	Name     string   `yaml:"name"`
	Version  int      `yaml:"version"`
	Settings Settings `yaml:"settings"`
	Groups   []Group  `yaml:"groups"`
}

// Settings are layout-wide options. Nil fields take their defaults.
type Settings struct {
	PollIntervalMs   *int  `yaml:"poll_interval_ms"`
	AutoExpandActive *bool `yaml:"auto_expand_active"`
}

// Group is one node of the tree.
type Group struct {
	Name      string  `yaml:"name"`
	Icon      string  `yaml:"icon"`
	Collapsed bool    `yaml:"collapsed"`
	Files     []File  `yaml:"files"`
	Groups    []Group `yaml:"groups"`
}

// File is a file entry. With Pattern set, Path is a glob.
type File struct {
	Path    string `yaml:"path"`
	Name    string `yaml:"name"`
	Pattern bool   `yaml:"pattern"`
	Paused  bool   `yaml:"paused"`
}

// Entry is a concrete file to tail, resolved from the layout.
type Entry struct {
	Path   string
	Name   string
	Group  group.ID
	Paused bool
}

// Loaded is a built layout: the finalized tree plus the files to add.
type Loaded struct {
	Name  string
	Tree  *group.Tree
	Files []Entry
	// Unmatched lists glob patterns that matched nothing.
	Unmatched []string
}

// Parse decodes and validates a layout document.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := l.validate(); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	return &l, nil
}

// LoadFile reads, parses and builds the layout at path. Relative file paths
// resolve against the layout file's directory.
func LoadFile(path string) (*Loaded, error) {
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return l.Build(filepath.Dir(resolved))
}

func (l *Layout) validate() error {
	var check func(gs []Group, trail string) error
	check = func(gs []Group, trail string) error {
		for i, g := range gs {
			where := fmt.Sprintf("%sgroups[%d]", trail, i)
			if strings.TrimSpace(g.Name) == "" {
				return fmt.Errorf("%s: name is required", where)
			}
			for j, f := range g.Files {
				if strings.TrimSpace(f.Path) == "" {
					return fmt.Errorf("%s.files[%d]: path is required", where, j)
				}
			}
			if err := check(g.Groups, where+"."); err != nil {
				return err
			}
		}
		return nil
	}
	if l.Settings.PollIntervalMs != nil && *l.Settings.PollIntervalMs <= 0 {
		return errors.New("settings.poll_interval_ms must be positive")
	}
	return check(l.Groups, "")
}

// TreeSettings returns the group settings the layout asks for.
func (l *Layout) TreeSettings() group.Settings {
	s := group.Settings{AutoExpandActive: true}
	if l.Settings.AutoExpandActive != nil {
		s.AutoExpandActive = *l.Settings.AutoExpandActive
	}
	if l.Settings.PollIntervalMs != nil {
		s.PollInterval = config.ClampPollInterval(time.Duration(*l.Settings.PollIntervalMs) * time.Millisecond)
	}
	return s
}

// Build creates the group tree and resolves every file entry, expanding
// glob patterns. baseDir anchors relative paths; empty means the working
// directory.
func (l *Layout) Build(baseDir string) (*Loaded, error) {
	tree := group.New(l.TreeSettings())
	out := &Loaded{Name: l.Name, Tree: tree}

	var add func(parent group.ID, gs []Group) error
	add = func(parent group.ID, gs []Group) error {
		for _, g := range gs {
			id, err := tree.AddGroup(parent, g.Name, g.Icon, g.Collapsed)
			if err != nil {
				return err
			}
			for _, f := range g.Files {
				paths, err := resolve(baseDir, f)
				if err != nil {
					return err
				}
				if f.Pattern && len(paths) == 0 {
					out.Unmatched = append(out.Unmatched, f.Path)
				}
				for _, p := range paths {
					name := f.Name
					if name == "" || f.Pattern {
						name = filepath.Base(p)
					}
					ref := group.FileRef{Path: p, Name: name, Paused: f.Paused, Pattern: f.Pattern}
					if err := tree.AddFile(id, ref); err != nil {
						return err
					}
					out.Files = append(out.Files, Entry{Path: p, Name: name, Group: id, Paused: f.Paused})
				}
			}
			if err := add(id, g.Groups); err != nil {
				return err
			}
		}
		return nil
	}

	if err := add(group.NoGroup, l.Groups); err != nil {
		return nil, fmt.Errorf("build layout: %w", err)
	}
	tree.Finalize()
	return out, nil
}

// FromPaths builds an ad-hoc layout with one root group holding paths.
func FromPaths(name string, paths []string) (*Loaded, error) {
	l := &Layout{Name: name}
	if len(paths) > 0 {
		g := Group{Name: name}
		for _, p := range paths {
			g.Files = append(g.Files, File{Path: p})
		}
		l.Groups = []Group{g}
	}
	return l.Build("")
}

// resolve expands ~, environment variables and, for patterns, globs.
func resolve(baseDir string, f File) ([]string, error) {
	p := os.ExpandEnv(strings.TrimSpace(f.Path))
	if !strings.HasPrefix(p, "~") && !filepath.IsAbs(p) && baseDir != "" {
		p = filepath.Join(baseDir, p)
	}
	abs, err := config.ExpandPath(p)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", f.Path, err)
	}
	if !f.Pattern {
		return []string{abs}, nil
	}

	matches, err := filepath.Glob(abs)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", f.Path, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
