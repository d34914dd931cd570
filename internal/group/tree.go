// Package group holds the user-defined hierarchy of tailed files and keeps
// each group's activity flag consistent as files become active or idle.
//
// Nodes live in an arena indexed by ID; parent and child links are plain
// IDs. Activity is event driven: a transition on one file walks up the
// ancestor chain and stops at the first node whose has-activity flag did not
// change, so an update costs O(depth) rather than a rescan of the tree.
package group

import (
	"errors"
	"fmt"
	"time"
)

// ID identifies a node within one loaded tree. IDs are not stable across
// reloads.
type ID int

// NoGroup is the parent of root nodes and the group of ungrouped files.
const NoGroup ID = -1

var (
	ErrUnknownGroup = errors.New("unknown group")
	ErrFinalized    = errors.New("tree already finalized")
)

// CollapseOverride records explicit user intent about a node's collapse
// state. CollapseAuto leaves the node under auto-expand control.
type CollapseOverride int8

const (
	CollapseAuto CollapseOverride = iota
	UserCollapsed
	UserExpanded
)

func (o CollapseOverride) String() string {
	switch o {
	case UserCollapsed:
		return "user-collapsed"
	case UserExpanded:
		return "user-expanded"
	default:
		return "auto"
	}
}

// Settings are layout-wide options.
type Settings struct {
	PollInterval     time.Duration // zero means use the engine default
	AutoExpandActive bool
}

// FileRef is a file entry inside a group. It references a tailed file by
// path and never owns it.
type FileRef struct {
	Path    string
	Name    string
	Paused  bool
	Pattern bool
}

// Member is a node's child as seen by activity accounting: either a file
// (by path) or a child group (by ID).
type Member struct {
	path  string
	group ID
}

// FileMember returns the member key for a file path.
func FileMember(path string) Member { return Member{path: path, group: NoGroup} }

// GroupMember returns the member key for a child group.
func GroupMember(id ID) Member { return Member{group: id} }

// Node is one group. Tree accessors return copies; mutate through Tree.
type Node struct {
	ID        ID
	Name      string
	Icon      string
	Parent    ID
	Collapsed bool
	Override  CollapseOverride
	Files     []FileRef
	Children  []ID

	// ActiveFileCount counts active members: files plus child groups that
	// currently have activity.
	ActiveFileCount int
	// TotalFileCount is this node's files plus all descendants' files,
	// fixed when the tree is finalized.
	TotalFileCount int
	HasActivity    bool

	active map[Member]struct{}
}

// Tree is a forest of groups plus layout settings.
type Tree struct {
	nodes     []*Node
	roots     []ID
	settings  Settings
	finalized bool
}

// New returns an empty tree.
func New(settings Settings) *Tree {
	return &Tree{settings: settings}
}

// Settings returns the layout-wide settings.
func (t *Tree) Settings() Settings {
	return t.settings
}

// AddGroup creates a group under parent (NoGroup for a root) and returns its ID.
func (t *Tree) AddGroup(parent ID, name, icon string, collapsed bool) (ID, error) {
	if t.finalized {
		return NoGroup, ErrFinalized
	}
	if parent != NoGroup {
		if _, err := t.node(parent); err != nil {
			return NoGroup, err
		}
	}

	id := ID(len(t.nodes))
	t.nodes = append(t.nodes, &Node{
		ID:        id,
		Name:      name,
		Icon:      icon,
		Parent:    parent,
		Collapsed: collapsed,
		active:    make(map[Member]struct{}),
	})
	if parent == NoGroup {
		t.roots = append(t.roots, id)
	} else {
		p := t.nodes[parent]
		p.Children = append(p.Children, id)
	}
	return id, nil
}

// AddFile appends a file entry to a group.
func (t *Tree) AddFile(id ID, ref FileRef) error {
	if t.finalized {
		return ErrFinalized
	}
	n, err := t.node(id)
	if err != nil {
		return err
	}
	n.Files = append(n.Files, ref)
	return nil
}

// Finalize computes total file counts and freezes the structure.
func (t *Tree) Finalize() {
	if t.finalized {
		return
	}
	for _, root := range t.roots {
		t.computeTotals(root)
	}
	t.finalized = true
}

func (t *Tree) computeTotals(id ID) int {
	n := t.nodes[id]
	total := len(n.Files)
	for _, child := range n.Children {
		total += t.computeTotals(child)
	}
	n.TotalFileCount = total
	return total
}

// Len returns the number of groups.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Roots returns the IDs of the top-level groups in layout order.
func (t *Tree) Roots() []ID {
	return append([]ID(nil), t.roots...)
}

// Node returns a copy of the node with the given ID.
func (t *Tree) Node(id ID) (Node, bool) {
	n, err := t.node(id)
	if err != nil {
		return Node{}, false
	}
	cp := *n
	cp.Files = append([]FileRef(nil), n.Files...)
	cp.Children = append([]ID(nil), n.Children...)
	cp.active = nil
	return cp, true
}

// Walk visits nodes depth-first in layout order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	var visit func(id ID, depth int)
	visit = func(id ID, depth int) {
		n, _ := t.Node(id)
		if !fn(n, depth) {
			return
		}
		for _, child := range n.Children {
			visit(child, depth+1)
		}
	}
	for _, root := range t.roots {
		visit(root, 0)
	}
}

// Subtree returns id followed by all of its descendants.
func (t *Tree) Subtree(id ID) ([]ID, error) {
	if _, err := t.node(id); err != nil {
		return nil, err
	}
	out := []ID{id}
	for i := 0; i < len(out); i++ {
		out = append(out, t.nodes[out[i]].Children...)
	}
	return out, nil
}

// UpdateActivity records that member of group id became active or idle and
// propagates the change to ancestors whose activity flag flips. Repeating a
// transition that already holds is a no-op, so counts cannot drift from
// duplicated events.
func (t *Tree) UpdateActivity(id ID, member Member, active bool) error {
	for {
		n, err := t.node(id)
		if err != nil {
			return err
		}

		_, isActive := n.active[member]
		if isActive == active {
			return nil
		}
		if active {
			n.active[member] = struct{}{}
			n.ActiveFileCount++
		} else {
			delete(n.active, member)
			if n.ActiveFileCount > 0 {
				n.ActiveFileCount--
			}
		}

		was := n.HasActivity
		n.HasActivity = n.ActiveFileCount > 0
		if !was && n.HasActivity && t.settings.AutoExpandActive && n.Override == CollapseAuto {
			n.Collapsed = false
		}

		if was == n.HasActivity || n.Parent == NoGroup {
			return nil
		}
		id, member, active = n.Parent, GroupMember(n.ID), n.HasActivity
	}
}

// ToggleCollapsed flips a node's collapse state as a user action and pins it
// against auto-expand. It returns the new collapsed state.
func (t *Tree) ToggleCollapsed(id ID) (bool, error) {
	n, err := t.node(id)
	if err != nil {
		return false, err
	}
	return t.setUserCollapsed(n, !n.Collapsed), nil
}

// SetCollapsed sets a node's collapse state as a user action.
func (t *Tree) SetCollapsed(id ID, collapsed bool) error {
	n, err := t.node(id)
	if err != nil {
		return err
	}
	t.setUserCollapsed(n, collapsed)
	return nil
}

// ClearOverride hands a node back to auto-expand control.
func (t *Tree) ClearOverride(id ID) error {
	n, err := t.node(id)
	if err != nil {
		return err
	}
	n.Override = CollapseAuto
	return nil
}

func (t *Tree) setUserCollapsed(n *Node, collapsed bool) bool {
	n.Collapsed = collapsed
	if collapsed {
		n.Override = UserCollapsed
	} else {
		n.Override = UserExpanded
	}
	return collapsed
}

func (t *Tree) node(id ID) (*Node, error) {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroup, id)
	}
	return t.nodes[id], nil
}
