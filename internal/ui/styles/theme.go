// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderPair  lipgloss.Style
	HeaderModel lipgloss.Style

	// ==========================================================================
	// PANES
	// ==========================================================================

	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	PaneTitle   lipgloss.Style
	Placeholder lipgloss.Style
	Partial     lipgloss.Style

	// ==========================================================================
	// LISTS (model picker, history, dictionary)
	// ==========================================================================

	ListTitle    lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
	ListDetail   lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	StatusReady     lipgloss.Style
	StatusBusy      lipgloss.Style
	StatusCompleted lipgloss.Style
	StatusCancelled lipgloss.Style
	StatusFailed    lipgloss.Style
	Spinner         lipgloss.Style
	Usage           lipgloss.Style

	// ==========================================================================
	// TOASTS
	// ==========================================================================

	ToastInfo    lipgloss.Style
	ToastWarning lipgloss.Style
	ToastError   lipgloss.Style

	Muted lipgloss.Style
}

// NewTheme creates a theme. mode is "auto", "dark" or "light"; "auto"
// queries the terminal background.
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case "dark":
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderPair = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderModel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Panes
	t.Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.PaneFocused = t.Pane.
		BorderForeground(Purple)

	t.PaneTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	t.Placeholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Text kept after a stop or failure
	t.Partial = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Lists
	t.ListTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		MarginBottom(1)

	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.ListSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true).
		PaddingLeft(1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Purple)

	t.ListDetail = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusReady = lipgloss.NewStyle().Foreground(TextSecondary)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.StatusCompleted = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusCancelled = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusFailed = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.Usage = lipgloss.NewStyle().Foreground(TextMuted)

	// Toasts
	toast := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(TextInverse).
		Bold(true)
	t.ToastInfo = toast.Background(Blue)
	t.ToastWarning = toast.Background(Amber)
	t.ToastError = toast.Background(Rose)

	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, panes stacked
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns, panes side by side
)
