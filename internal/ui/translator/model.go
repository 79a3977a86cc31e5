// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/prompt"
	"github.com/jeranaias/otrans/internal/translate"
	"github.com/jeranaias/otrans/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// DictionaryEditor is the dictionary surface the page edits.
type DictionaryEditor interface {
	Get(pairID string) []dictionary.Entry
	Add(pairID string, e dictionary.Entry) error
	Remove(pairID string, index int) error
	Pairs() []string
}

// HistoryBrowser is the history surface the page lists.
type HistoryBrowser interface {
	List(ctx context.Context, opts history.ListOptions) ([]history.Item, error)
	Delete(ctx context.Context, id string) error
}

// Options configures the page.
type Options struct {
	Controller *translate.Controller
	Bridge     *Bridge
	Dictionary DictionaryEditor // optional
	History    HistoryBrowser   // optional
	Theme      *styles.Theme
	ShowUsage  bool

	// RefreshLimiter throttles model reloads. Defaults to one per 3s.
	RefreshLimiter *rate.Limiter
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
	// Context bounds every controller call started by the page.
	Context context.Context
	Logger  *zerolog.Logger
}

// =============================================================================
// MODEL
// =============================================================================

type focus int

const (
	focusSource focus = iota
	focusResult
)

type overlay int

const (
	overlayNone overlay = iota
	overlayModels
	overlayPairs
	overlayDictionary
	overlayDictionaryAdd
	overlayHistory
)

// historyPageSize bounds the history overlay.
const historyPageSize = 200

// toastDuration is how long a toast stays visible.
const toastDuration = 4 * time.Second

type toast struct {
	id    int
	level translate.Level
	text  string
}

// Model is the Bubble Tea model for the translate page.
type Model struct {
	ctrl    *translate.Controller
	bridge  *Bridge
	dict    DictionaryEditor
	history HistoryBrowser
	theme   *styles.Theme
	keys    KeyMap
	ctx     context.Context
	limiter *rate.Limiter
	copy    func(string) error
	log     zerolog.Logger

	showUsage bool

	snap    translate.Snapshot
	focus   focus
	overlay overlay
	list    picker
	items   []history.Item

	source  textarea.Model
	result  viewport.Model
	spinner spinner.Model
	help    help.Model
	from    textinput.Model
	to      textinput.Model

	toast   *toast
	toastID int

	width  int
	height int
}

// New creates the translate page.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	limiter := opts.RefreshLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(3*time.Second), 1)
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	logger := log.Logger.With().Str("component", "tui").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	src := textarea.New()
	src.Placeholder = "Type or paste text to translate..."
	src.ShowLineNumbers = false
	src.CharLimit = 0
	src.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Spinner))

	from := textinput.New()
	from.Placeholder = "term"
	from.Prompt = "From: "
	to := textinput.New()
	to.Placeholder = "translation"
	to.Prompt = "To:   "

	m := Model{
		ctrl:      opts.Controller,
		bridge:    opts.Bridge,
		dict:      opts.Dictionary,
		history:   opts.History,
		theme:     theme,
		keys:      DefaultKeyMap(),
		ctx:       ctx,
		limiter:   limiter,
		copy:      copyFn,
		log:       logger,
		showUsage: opts.ShowUsage,
		source:    src,
		result:    viewport.New(40, 10),
		spinner:   sp,
		help:      help.New(),
		from:      from,
		to:        to,
	}
	m.snap = m.ctrl.Snapshot()
	return m
}

// Init starts event delivery and model discovery.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.loadModelsCmd(), m.spinner.Tick}
	if m.bridge != nil {
		cmds = append(cmds, m.bridge.Wait())
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.applySnapshot(translate.Snapshot(msg))
		return m, m.waitCmd()

	case notificationMsg:
		cmd := m.showToast(translate.Level(msg.Level), msg.Message)
		return m, tea.Batch(cmd, m.waitCmd())

	case translateDoneMsg:
		m.log.Debug().Err(msg.err).Msg("translate returned")
		if m.overlay == overlayHistory {
			return m, m.loadHistoryCmd()
		}
		return m, nil

	case modelsLoadedMsg:
		if m.overlay == overlayModels {
			m.openModels()
		}
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			cmd := m.showToast(translate.LevelError, "Could not load history: "+msg.err.Error())
			return m, cmd
		}
		m.items = msg.items
		if m.overlay == overlayHistory {
			m.list.setItems(historyItems(msg.items))
		}
		return m, nil

	case toastExpiredMsg:
		if m.toast != nil && m.toast.id == msg.id {
			m.toast = nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.forward(msg)
}

// forward passes other messages (cursor blink, mouse) to the focused widget.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.overlay == overlayDictionaryAdd:
		if m.from.Focused() {
			m.from, cmd = m.from.Update(msg)
		} else {
			m.to, cmd = m.to.Update(msg)
		}
	case m.focus == focusSource:
		m.source, cmd = m.source.Update(msg)
	default:
		m.result, cmd = m.result.Update(msg)
	}
	return m, cmd
}

// busy reports whether the session refuses a new translation.
func (m Model) busy() bool {
	return !m.snap.Status.CanTranslate()
}

func (m Model) waitCmd() tea.Cmd {
	if m.bridge == nil {
		return nil
	}
	return m.bridge.Wait()
}

func (m *Model) applySnapshot(s translate.Snapshot) {
	follow := m.result.AtBottom()
	m.snap = s
	m.result.SetContent(m.renderResult())
	if follow || s.Status == translate.StatusTranslating {
		m.result.GotoBottom()
	}
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.ctrl.Stop()
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayDictionaryAdd:
		return m.handleDictionaryAddKey(msg)
	case overlayNone:
	default:
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Translate):
		return m.startTranslate()

	case key.Matches(msg, m.keys.Stop):
		m.ctrl.Stop()
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.ctrl.Reset()
		m.source.Reset()
		return m, nil

	case key.Matches(msg, m.keys.SwitchFocus):
		if m.focus == focusSource {
			m.focus = focusResult
			m.source.Blur()
			return m, nil
		}
		m.focus = focusSource
		cmd := m.source.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.RefreshModels):
		if !m.limiter.Allow() {
			cmd := m.showToast(translate.LevelInfo, "Models were just reloaded.")
			return m, cmd
		}
		return m, m.loadModelsCmd()

	case key.Matches(msg, m.keys.Models):
		m.openModels()
		return m, nil

	case key.Matches(msg, m.keys.Pairs):
		m.openPairs()
		return m, nil

	case key.Matches(msg, m.keys.Dictionary):
		if m.dict == nil {
			cmd := m.showToast(translate.LevelWarning, "Dictionary is not available.")
			return m, cmd
		}
		m.openDictionary()
		return m, nil

	case key.Matches(msg, m.keys.History):
		if m.history == nil {
			cmd := m.showToast(translate.LevelWarning, "History is not available.")
			return m, cmd
		}
		m.overlay = overlayHistory
		m.list = picker{title: "History", empty: "No translations yet."}
		m.list.setItems(historyItems(m.items))
		return m, m.loadHistoryCmd()

	case key.Matches(msg, m.keys.CopyResult):
		cmd := m.copyText(m.snap.Text, "translation")
		return m, cmd

	case key.Matches(msg, m.keys.CopySource):
		cmd := m.copyText(m.source.Value(), "source text")
		return m, cmd

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	}

	if m.focus == focusResult {
		var cmd tea.Cmd
		m.result, cmd = m.result.Update(msg)
		return m, cmd
	}

	// The source is read-only while a translation streams.
	if m.snap.Status == translate.StatusTranslating {
		return m, nil
	}
	before := m.source.Value()
	var cmd tea.Cmd
	m.source, cmd = m.source.Update(msg)
	if after := m.source.Value(); after != before {
		_ = m.ctrl.SetSourceText(after)
	}
	return m, cmd
}

func (m Model) startTranslate() (tea.Model, tea.Cmd) {
	text := m.source.Value()
	ctrl, ctx := m.ctrl, m.ctx
	return m, func() tea.Msg {
		return translateDoneMsg{err: ctrl.Translate(ctx, text, "")}
	}
}

func (m Model) loadModelsCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return modelsLoadedMsg{err: ctrl.LoadModels(ctx)}
	}
}

func (m Model) loadHistoryCmd() tea.Cmd {
	h, ctx := m.history, m.ctx
	return func() tea.Msg {
		items, err := h.List(ctx, history.ListOptions{Limit: historyPageSize})
		return historyLoadedMsg{items: items, err: err}
	}
}

func (m *Model) copyText(text, what string) tea.Cmd {
	if strings.TrimSpace(text) == "" {
		return m.showToast(translate.LevelWarning, "No "+what+" to copy.")
	}
	if err := m.copy(text); err != nil {
		m.log.Warn().Err(err).Msg("clipboard write failed")
		return m.showToast(translate.LevelError, "Failed to copy: "+err.Error())
	}
	return m.showToast(translate.LevelInfo, fmt.Sprintf("Copied %s (%s chars).", what, humanize.Comma(int64(len([]rune(text))))))
}

// showToast replaces the current toast. It returns the expiry command.
func (m *Model) showToast(level translate.Level, text string) tea.Cmd {
	m.toastID++
	id := m.toastID
	m.toast = &toast{id: id, level: level, text: text}
	return tea.Tick(toastDuration, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m *Model) openModels() {
	m.overlay = overlayModels
	m.list = picker{title: "Select model", empty: "No models installed. Press Ctrl+R after `ollama pull <model>`."}
	items := make([]pickerItem, 0, len(m.snap.Models))
	for _, mi := range m.snap.Models {
		items = append(items, pickerItem{title: mi.Name, detail: mi.Summary(), value: mi.Name})
	}
	m.list.setItems(items)
	m.list.selectValue(m.snap.Model)
}

func (m *Model) openPairs() {
	m.overlay = overlayPairs
	m.list = picker{title: "Language pair", empty: "No language pairs."}
	seen := map[string]bool{}
	var items []pickerItem
	for _, t := range prompt.Templates() {
		seen[t.PairID] = true
		items = append(items, pickerItem{title: t.PairID, detail: t.Label, value: t.PairID})
	}
	if m.dict != nil {
		for _, p := range m.dict.Pairs() {
			if seen[p] {
				continue
			}
			if t, err := prompt.ForPair(p); err == nil {
				items = append(items, pickerItem{title: p, detail: t.Label, value: p})
			}
		}
	}
	m.list.setItems(items)
	m.list.selectValue(m.snap.PairID)
}

func (m *Model) openDictionary() {
	m.overlay = overlayDictionary
	cursor := m.list.cursor
	m.list = picker{
		title: "Dictionary · " + m.snap.PairID,
		empty: "No entries. Press a to add one.",
	}
	entries := m.dict.Get(m.snap.PairID)
	items := make([]pickerItem, len(entries))
	for i, e := range entries {
		items[i] = pickerItem{title: e.From, detail: "→ " + e.To}
	}
	m.list.cursor = cursor
	m.list.setItems(items)
}

func historyItems(items []history.Item) []pickerItem {
	out := make([]pickerItem, len(items))
	for i, it := range items {
		out[i] = pickerItem{
			title:  it.SourceText,
			detail: it.Age() + " · " + it.PairID + " · " + it.Model,
			value:  it.ID,
		}
	}
	return out
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Close):
		m.overlay = overlayNone
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.list.up()
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.list.down()
		return m, nil
	}

	switch m.overlay {
	case overlayModels:
		if key.Matches(msg, m.keys.Select) {
			if it, ok := m.list.selected(); ok {
				if m.ctrl.SelectModel(it.value) == nil {
					m.overlay = overlayNone
				}
			}
		}
		if key.Matches(msg, m.keys.RefreshModels) && m.limiter.Allow() {
			return m, m.loadModelsCmd()
		}

	case overlayPairs:
		if key.Matches(msg, m.keys.Select) {
			if it, ok := m.list.selected(); ok {
				if m.ctrl.SetPair(it.value) == nil {
					m.overlay = overlayNone
				}
			}
		}

	case overlayDictionary:
		switch {
		case key.Matches(msg, m.keys.Add):
			m.overlay = overlayDictionaryAdd
			m.from.Reset()
			m.to.Reset()
			m.to.Blur()
			cmd := m.from.Focus()
			return m, cmd
		case key.Matches(msg, m.keys.Delete):
			if _, ok := m.list.selected(); ok {
				if err := m.dict.Remove(m.snap.PairID, m.list.cursor); err != nil {
					cmd := m.showToast(translate.LevelError, "Could not remove entry: "+err.Error())
					return m, cmd
				}
				m.openDictionary()
			}
		}

	case overlayHistory:
		switch {
		case key.Matches(msg, m.keys.Select):
			if m.list.cursor < len(m.items) {
				item := m.items[m.list.cursor]
				if m.ctrl.Restore(item) == nil {
					m.source.SetValue(item.SourceText)
					m.overlay = overlayNone
				}
			}
		case key.Matches(msg, m.keys.Delete):
			if m.list.cursor < len(m.items) {
				id := m.items[m.list.cursor].ID
				h, ctx := m.history, m.ctx
				return m, func() tea.Msg {
					if err := h.Delete(ctx, id); err != nil {
						return historyLoadedMsg{err: err}
					}
					items, err := h.List(ctx, history.ListOptions{Limit: historyPageSize})
					return historyLoadedMsg{items: items, err: err}
				}
			}
		}
	}
	return m, nil
}

func (m Model) handleDictionaryAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.openDictionary()
		return m, nil
	case "tab", "shift+tab":
		if m.from.Focused() {
			m.from.Blur()
			cmd := m.to.Focus()
			return m, cmd
		}
		m.to.Blur()
		cmd := m.from.Focus()
		return m, cmd
	case "enter":
		if m.from.Focused() {
			m.from.Blur()
			cmd := m.to.Focus()
			return m, cmd
		}
		err := m.dict.Add(m.snap.PairID, dictionary.Entry{From: m.from.Value(), To: m.to.Value()})
		if errors.Is(err, dictionary.ErrEmptyTerm) {
			cmd := m.showToast(translate.LevelWarning, "Both fields are required.")
			return m, cmd
		}
		if err != nil {
			cmd := m.showToast(translate.LevelError, "Could not save entry: "+err.Error())
			return m, cmd
		}
		m.openDictionary()
		m.list.cursor = len(m.list.items) - 1
		return m, nil
	}

	var cmd tea.Cmd
	if m.from.Focused() {
		m.from, cmd = m.from.Update(msg)
	} else {
		m.to, cmd = m.to.Update(msg)
	}
	return m, cmd
}
