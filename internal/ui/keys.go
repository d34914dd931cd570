package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit        key.Binding
	Help        key.Binding
	Tab         key.Binding
	PauseAll    key.Binding
	Faster      key.Binding
	Slower      key.Binding
	ClearBuffer key.Binding
	LevelFilter key.Binding

	// Tree
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	Pause    key.Binding
	AutoHand key.Binding

	// Output and preview
	PageUp      key.Binding
	PageDown    key.Binding
	Top         key.Binding
	Bottom      key.Binding
	Follow      key.Binding
	PreviewMode key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		PauseAll: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "pause all"),
		),
		Faster: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "poll faster"),
		),
		Slower: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "poll slower"),
		),
		ClearBuffer: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear output"),
		),
		LevelFilter: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "cycle level filter"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "expand/preview"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause file/group"),
		),
		AutoHand: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto expand"),
		),

		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f"),
			key.WithHelp("pgdn", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom/follow"),
		),
		Follow: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "toggle follow"),
		),
		PreviewMode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "preview follow/pause"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Toggle, k.Pause, k.PauseAll, k.Faster, k.Slower, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Pause, k.AutoHand},
		{k.PageUp, k.PageDown, k.Top, k.Bottom, k.Follow, k.PreviewMode},
		{k.Tab, k.PauseAll, k.Faster, k.Slower, k.ClearBuffer, k.LevelFilter},
		{k.Help, k.Quit},
	}
}
