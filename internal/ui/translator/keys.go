// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translator

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the translate page.
type KeyMap struct {
	Translate     key.Binding
	Stop          key.Binding
	Reset         key.Binding
	SwitchFocus   key.Binding
	Models        key.Binding
	Pairs         key.Binding
	Dictionary    key.Binding
	History       key.Binding
	RefreshModels key.Binding
	CopyResult    key.Binding
	CopySource    key.Binding
	Help          key.Binding
	Quit          key.Binding

	// List overlays
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Add    key.Binding
	Delete key.Binding
	Close  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Translate: key.NewBinding(
			key.WithKeys("ctrl+t", "alt+enter"),
			key.WithHelp("C-t", "translate"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "stop"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear"),
		),
		SwitchFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "switch pane"),
		),
		Models: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "model"),
		),
		Pairs: key.NewBinding(
			key.WithKeys("f3"),
			key.WithHelp("F3", "language"),
		),
		Dictionary: key.NewBinding(
			key.WithKeys("f4"),
			key.WithHelp("F4", "dictionary"),
		),
		History: key.NewBinding(
			key.WithKeys("f5"),
			key.WithHelp("F5", "history"),
		),
		RefreshModels: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "reload models"),
		),
		CopyResult: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy translation"),
		),
		CopySource: key.NewBinding(
			key.WithKeys("alt+y"),
			key.WithHelp("M-y", "copy source"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-q", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "select"),
		),
		Add: key.NewBinding(
			key.WithKeys("a", "insert"),
			key.WithHelp("a", "add"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Translate, k.Stop, k.Models, k.Pairs, k.Help, k.Quit}
}

// FullHelp returns the bindings shown when help is expanded.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Translate, k.Stop, k.Reset, k.SwitchFocus},
		{k.Models, k.Pairs, k.Dictionary, k.History},
		{k.RefreshModels, k.CopyResult, k.CopySource},
		{k.Help, k.Quit},
	}
}

// overlayHelp is shown at the bottom of list overlays.
func (k KeyMap) overlayHelp(editable bool) []key.Binding {
	if editable {
		return []key.Binding{k.Up, k.Down, k.Select, k.Add, k.Delete, k.Close}
	}
	return []key.Binding{k.Up, k.Down, k.Select, k.Close}
}
