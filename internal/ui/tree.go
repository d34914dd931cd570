package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/TimelordUK/tailtree/internal/group"
	"github.com/TimelordUK/tailtree/internal/tail"
)

type rowKind int

const (
	rowGroup rowKind = iota
	rowFile
)

// row is one visible line of the group tree pane.
type row struct {
	kind  rowKind
	depth int
	group group.ID
	path  string
}

// buildRows flattens the visible part of the tree: a group's own files
// follow it, then its child groups. Collapsed groups hide both. Files with
// no group are listed last.
func buildRows(tree *group.Tree, files []tail.FileStatus) []row {
	var rows []row

	var visit func(id group.ID, depth int)
	visit = func(id group.ID, depth int) {
		n, ok := tree.Node(id)
		if !ok {
			return
		}
		rows = append(rows, row{kind: rowGroup, depth: depth, group: id})
		if n.Collapsed {
			return
		}
		for _, f := range files {
			if f.Group == id {
				rows = append(rows, row{kind: rowFile, depth: depth + 1, group: id, path: f.Path})
			}
		}
		for _, child := range n.Children {
			visit(child, depth+1)
		}
	}
	for _, root := range tree.Roots() {
		visit(root, 0)
	}

	for _, f := range files {
		if f.Group == group.NoGroup {
			rows = append(rows, row{kind: rowFile, group: group.NoGroup, path: f.Path})
		}
	}
	return rows
}

type treeStyles struct {
	active  lipgloss.Style
	idle    lipgloss.Style
	paused  lipgloss.Style
	errored lipgloss.Style
	cursor  lipgloss.Style
	dim     lipgloss.Style
}

// renderTree draws rows into a box of the given size, keeping the cursor in
// view.
func renderTree(tree *group.Tree, byPath map[string]tail.FileStatus, rows []row, cursor int, focused bool, st treeStyles, width, height int) string {
	if len(rows) == 0 {
		return st.dim.Render("no files")
	}

	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	end := min(start+height, len(rows))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		r := rows[i]
		indent := strings.Repeat("  ", r.depth)

		var text string
		switch r.kind {
		case rowGroup:
			n, _ := tree.Node(r.group)
			text = indent + groupLabel(n, st)
		case rowFile:
			text = indent + fileLabel(byPath[r.path], st)
		}

		if i == cursor {
			marker := "›"
			if focused {
				marker = st.cursor.Render("›")
			}
			text = marker + text
		} else {
			text = " " + text
		}
		lines = append(lines, ansi.Truncate(text, width, "…"))
	}
	return strings.Join(lines, "\n")
}

func groupLabel(n group.Node, st treeStyles) string {
	arrow := "▾"
	if n.Collapsed {
		arrow = "▸"
	}
	icon := n.Icon
	if icon != "" {
		icon += " "
	}
	counts := fmt.Sprintf("(%d/%d)", n.ActiveFileCount, n.TotalFileCount)
	style := st.idle
	if n.HasActivity {
		style = st.active
	}
	return fmt.Sprintf("%s %s%s %s", arrow, icon, style.Render(n.Name), st.dim.Render(counts))
}

func fileLabel(f tail.FileStatus, st treeStyles) string {
	var dot string
	switch {
	case f.LastError != nil:
		dot = st.errored.Render("✗")
	case f.Paused:
		dot = st.paused.Render("⏸")
	case f.Active:
		dot = st.active.Render("●")
	default:
		dot = st.idle.Render("○")
	}

	detail := humanize.Bytes(uint64(max(f.Size, 0)))
	if f.Active && f.LinesSinceLastRead > 0 {
		detail += " +" + humanize.Comma(int64(f.LinesSinceLastRead))
	}
	if f.Throttle.Kind == tail.ThrottleThrottled {
		detail += " " + f.Throttle.String()
	}
	return fmt.Sprintf("%s %s %s", dot, f.Name, st.dim.Render(detail))
}
