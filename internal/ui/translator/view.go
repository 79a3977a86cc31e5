// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translator

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/otrans/internal/prompt"
	"github.com/jeranaias/otrans/internal/translate"
	"github.com/jeranaias/otrans/internal/ui/styles"
	"github.com/jeranaias/otrans/internal/util"
)

// Fallback size until the first WindowSizeMsg arrives.
const (
	defaultWidth  = 80
	defaultHeight = 24
)

// streamCursor is appended to the text while tokens arrive.
const streamCursor = "▌"

// =============================================================================
// LAYOUT
// =============================================================================

type paneLayout struct {
	sideBySide bool
	outerW     int // including border
	innerW     int
	innerH     int
	bodyH      int // rows available for panes or an overlay
}

func (m Model) paneLayout() paneLayout {
	w, h := m.width, m.height
	if w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}

	helpH := 1
	if m.help.ShowAll {
		helpH = 5
	}
	// header + toast + status bar + help
	bodyH := h - 3 - helpH
	if bodyH < 8 {
		bodyH = 8
	}

	l := paneLayout{bodyH: bodyH}
	if m.theme.GetLayoutMode() == styles.LayoutWide {
		l.sideBySide = true
		l.outerW = w / 2
		l.innerH = bodyH - 3 // border + title
	} else {
		l.outerW = w
		l.innerH = bodyH/2 - 3
	}
	l.innerW = l.outerW - 4 // border + padding
	if l.innerW < 10 {
		l.innerW = 10
	}
	if l.innerH < 1 {
		l.innerH = 1
	}
	return l
}

// layout resizes the widgets to the current window.
func (m *Model) layout() {
	l := m.paneLayout()
	m.help.Width = m.width
	m.source.SetWidth(l.innerW)
	m.source.SetHeight(l.innerH)
	m.result.Width = l.innerW
	m.result.Height = l.innerH
	m.from.Width = l.innerW - 8
	m.to.Width = l.innerW - 8
	m.result.SetContent(m.renderResult())
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the page.
func (m Model) View() string {
	l := m.paneLayout()

	var body string
	if m.overlay != overlayNone {
		body = m.renderOverlay(l)
	} else {
		body = m.renderPanes(l)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderToast(),
		m.renderStatusBar(),
		m.help.View(m.keys),
	)
}

func (m Model) renderHeader() string {
	label := m.snap.PairID
	if t, err := prompt.ForPair(m.snap.PairID); err == nil {
		label = t.Label
	}
	model := m.snap.Model
	if model == "" {
		model = "no model"
	}

	left := m.theme.HeaderBrand.Render("otrans") + "  " +
		m.theme.HeaderPair.Render(label) + "  " +
		m.theme.HeaderModel.Render(model)

	w := m.width
	if w <= 0 {
		w = defaultWidth
	}
	return m.theme.Header.Width(w).Render(left)
}

func (m Model) renderPanes(l paneLayout) string {
	srcStyle, resStyle := m.theme.Pane, m.theme.Pane
	if m.focus == focusSource {
		srcStyle = m.theme.PaneFocused
	} else {
		resStyle = m.theme.PaneFocused
	}

	srcTitle := "Source"
	if n := util.RuneLen(m.source.Value()); n > 0 {
		srcTitle += fmt.Sprintf(" · %d chars", n)
	}
	src := srcStyle.Width(l.outerW - 2).Render(
		m.theme.PaneTitle.Render(srcTitle) + "\n" + m.source.View())
	res := resStyle.Width(l.outerW - 2).Render(
		m.theme.PaneTitle.Render("Translation") + "\n" + m.result.View())

	if l.sideBySide {
		return lipgloss.JoinHorizontal(lipgloss.Top, src, res)
	}
	return lipgloss.JoinVertical(lipgloss.Left, src, res)
}

func (m Model) renderOverlay(l paneLayout) string {
	w := m.width
	if w <= 0 {
		w = defaultWidth
	}
	inner := w - 4
	rows := l.bodyH - 4

	var content string
	switch m.overlay {
	case overlayDictionaryAdd:
		content = m.theme.ListTitle.Render("Add dictionary entry · "+m.snap.PairID) + "\n" +
			m.from.View() + "\n" + m.to.View() + "\n\n" +
			m.theme.Muted.Render("Tab switch field · Enter save · Esc cancel")
	default:
		editable := m.overlay == overlayDictionary || m.overlay == overlayHistory
		content = m.list.view(m.theme, inner, rows) + "\n\n" +
			m.help.ShortHelpView(m.keys.overlayHelp(editable))
	}
	return m.theme.PaneFocused.Width(w - 2).Height(l.bodyH - 2).Render(content)
}

// renderResult renders the translation pane content.
func (m Model) renderResult() string {
	w := m.result.Width
	if w <= 0 {
		w = defaultWidth - 4
	}
	wrap := lipgloss.NewStyle().Width(w)
	text := m.snap.Text

	switch m.snap.Status {
	case translate.StatusTranslating:
		if text == "" {
			return m.theme.Placeholder.Render("Waiting for the first tokens...")
		}
		return wrap.Render(text + streamCursor)

	case translate.StatusCancelled:
		note := m.theme.StatusCancelled.Render(styles.StatusIndicators.Warning + " Stopped. The translation is incomplete.")
		if text == "" {
			return note
		}
		return m.theme.Partial.Render(wrap.Render(text)) + "\n\n" + note

	case translate.StatusFailed:
		msg := "Translation failed."
		if m.snap.Err != nil {
			msg = "Translation failed: " + m.snap.Err.Error()
		}
		note := m.theme.StatusFailed.Render(wrap.Render(styles.StatusIndicators.Error + " " + msg))
		if text == "" {
			return note
		}
		return m.theme.Partial.Render(wrap.Render(text)) + "\n\n" + note
	}

	if text == "" {
		return m.theme.Placeholder.Render("The translation appears here.")
	}
	return wrap.Render(text)
}

func (m Model) renderToast() string {
	if m.toast == nil {
		return ""
	}
	style, indicator := m.theme.ToastInfo, styles.StatusIndicators.Info
	switch m.toast.level {
	case translate.LevelWarning:
		style, indicator = m.theme.ToastWarning, styles.StatusIndicators.Warning
	case translate.LevelError:
		style, indicator = m.theme.ToastError, styles.StatusIndicators.Error
	}
	w := m.width
	if w <= 0 {
		w = defaultWidth
	}
	return style.Render(util.TruncateWidth(indicator+" "+m.toast.text, w-2))
}

func (m Model) renderStatusBar() string {
	var parts []string

	label, style := m.statusLabel()
	if m.busy() {
		label = m.spinner.View() + " " + label
	}
	parts = append(parts, style.Render(label))

	if m.snap.Status == translate.StatusTranslating && m.snap.Chunks > 0 {
		parts = append(parts, m.theme.Usage.Render(fmt.Sprintf("%d chunks", m.snap.Chunks)))
	}
	if m.showUsage && m.snap.Usage != nil {
		stats := translate.UsageStats(*m.snap.Usage)
		usage := fmt.Sprintf("%d prompt · %s", stats.PromptTokens, stats.Format())
		parts = append(parts, m.theme.Usage.Render(usage))
	}

	w := m.width
	if w <= 0 {
		w = defaultWidth
	}
	return m.theme.StatusBar.Width(w).Render(strings.Join(parts, "  "))
}

func (m Model) statusLabel() (string, lipgloss.Style) {
	ind := styles.StatusIndicators
	switch m.snap.Status {
	case translate.StatusLoadingModels:
		return "Loading models", m.theme.StatusBusy
	case translate.StatusTranslating:
		return "Translating", m.theme.StatusBusy
	case translate.StatusCompleted:
		return ind.Success + " Done", m.theme.StatusCompleted
	case translate.StatusCancelled:
		return ind.Warning + " Stopped", m.theme.StatusCancelled
	case translate.StatusFailed:
		return ind.Error + " Failed", m.theme.StatusFailed
	case translate.StatusIdle:
		return ind.Pending + " Starting", m.theme.StatusReady
	default:
		return ind.Active + " Ready", m.theme.StatusReady
	}
}
