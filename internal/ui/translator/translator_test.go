// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translator

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/ollama"
	"github.com/jeranaias/otrans/internal/translate"
	"github.com/jeranaias/otrans/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type stubClient struct {
	models []ollama.ModelInfo
	parts  []string
}

func (c *stubClient) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return c.models, nil
}

func (c *stubClient) ChatStream(ctx context.Context, model string, messages []ollama.Message, cb ollama.StreamCallback) error {
	for _, p := range c.parts {
		cb(ollama.StreamChunk{Content: p})
	}
	cb(ollama.StreamChunk{Done: true})
	return nil
}

type stubHistory struct {
	items   []history.Item
	deleted []string
}

func (h *stubHistory) List(ctx context.Context, opts history.ListOptions) ([]history.Item, error) {
	return h.items, nil
}

func (h *stubHistory) Delete(ctx context.Context, id string) error {
	h.deleted = append(h.deleted, id)
	return nil
}

type harness struct {
	ctrl    *translate.Controller
	bridge  *Bridge
	dict    *dictionary.Store
	history *stubHistory
	copied  []string
	model   Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{bridge: NewBridge(zerolog.Nop()), dict: dictionary.NewMemoryStore(), history: &stubHistory{}}
	client := &stubClient{
		models: []ollama.ModelInfo{{Name: "llama3:latest"}, {Name: "gemma2:2b"}},
		parts:  []string{"Hel", "lo"},
	}
	h.ctrl = translate.New(client,
		translate.WithObserver(h.bridge.Observe),
		translate.WithNotifier(h.bridge),
		translate.WithDictionary(h.dict),
		translate.WithModel("llama3:latest"),
	)
	h.model = New(Options{
		Controller:     h.ctrl,
		Bridge:         h.bridge,
		Dictionary:     h.dict,
		History:        h.history,
		Theme:          styles.NewTheme("dark"),
		ShowUsage:      true,
		RefreshLimiter: rate.NewLimiter(rate.Every(time.Hour), 1),
		Clipboard: func(s string) error {
			h.copied = append(h.copied, s)
			return nil
		},
	})
	h.send(t, tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

// send delivers msg and returns the resulting command.
func (h *harness) send(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.model.Update(msg)
	m, ok := next.(Model)
	require.True(t, ok)
	h.model = m
	return cmd
}

func (h *harness) typeText(t *testing.T, s string) {
	t.Helper()
	h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// pump delivers the next bridge event to the model.
func (h *harness) pump(t *testing.T) tea.Msg {
	t.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- h.bridge.Wait()() }()
	select {
	case msg := <-done:
		h.send(t, msg)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no bridge event")
		return nil
	}
}

// =============================================================================
// BRIDGE
// =============================================================================

func TestBridge_CoalescesSnapshots(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	b.Observe(translate.Snapshot{Text: "a"})
	b.Observe(translate.Snapshot{Text: "ab"})
	b.Observe(translate.Snapshot{Text: "abc"})

	msg := b.Wait()()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "abc", snap.Text)
}

func TestBridge_IgnoresStaleSnapshots(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	b.Observe(translate.Snapshot{Seq: 7, Status: translate.StatusCompleted, Text: "Hello"})
	b.Observe(translate.Snapshot{Seq: 6, Status: translate.StatusTranslating, Text: "Hel"})

	msg := b.Wait()()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, translate.StatusCompleted, snap.Status)
	assert.Equal(t, "Hello", snap.Text)

	// Still stale after the newer snapshot was consumed.
	b.Observe(translate.Snapshot{Seq: 5, Status: translate.StatusTranslating})
	b.mu.Lock()
	assert.Nil(t, b.latest)
	b.mu.Unlock()

	b.Observe(translate.Snapshot{Seq: 8, Status: translate.StatusReady})
	snap, ok = b.Wait()().(snapshotMsg)
	require.True(t, ok)
	assert.Equal(t, translate.StatusReady, snap.Status)
}

// holdClient streams one chunk and then waits for cancellation.
type holdClient struct{}

func (holdClient) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return []ollama.ModelInfo{{Name: "llama3:latest"}}, nil
}

func (holdClient) ChatStream(ctx context.Context, model string, messages []ollama.Message, cb ollama.StreamCallback) error {
	cb(ollama.StreamChunk{Content: "Hel"})
	<-ctx.Done()
	return &ollama.ClientError{Type: ollama.ErrTypeCancelled, Message: "request cancelled", Cause: ctx.Err()}
}

func TestBridge_StopDuringSlowDelivery(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	held := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	observe := func(s translate.Snapshot) {
		if s.Status == translate.StatusTranslating && s.Text == "Hel" {
			once.Do(func() {
				close(held)
				<-release
			})
		}
		b.Observe(s)
	}
	ctrl := translate.New(holdClient{}, translate.WithObserver(observe), translate.WithModel("llama3:latest"))

	done := make(chan error, 1)
	go func() { done <- ctrl.Translate(context.Background(), "안녕", "") }()
	select {
	case <-held:
	case <-time.After(2 * time.Second):
		t.Fatal("first chunk was not delivered")
	}

	require.True(t, ctrl.Stop())
	close(release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, translate.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("Translate did not return")
	}

	snap, ok := b.Wait()().(snapshotMsg)
	require.True(t, ok)
	assert.Equal(t, translate.StatusCancelled, snap.Status, "a delayed chunk snapshot must not replace the stop")
	assert.Equal(t, "Hel", snap.Text)
}

func TestBridge_Notifications(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	b.Notify(translate.Notification{Level: translate.LevelWarning, Message: "careful"})

	msg := b.Wait()()
	n, ok := msg.(notificationMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "careful", n.Message)
}

func TestBridge_DropsWhenFull(t *testing.T) {
	var buf bytes.Buffer
	b := NewBridge(zerolog.New(&buf).Level(zerolog.DebugLevel))
	for i := 0; i < notificationBuffer; i++ {
		b.Notify(translate.Notification{Message: "x"})
	}
	assert.Empty(t, buf.String())

	b.Notify(translate.Notification{Level: translate.LevelInfo, Kind: translate.KindCancelled, Message: "Translation stopped."})
	assert.Len(t, b.notes, notificationBuffer)

	out := buf.String()
	assert.Contains(t, out, `"message":"notification dropped, queue full"`)
	assert.Contains(t, out, `"kind":"cancelled"`)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

// =============================================================================
// PAGE
// =============================================================================

func TestPage_TranslateFlow(t *testing.T) {
	h := newHarness(t)
	h.typeText(t, "안녕")
	assert.Equal(t, "안녕", h.ctrl.Snapshot().SourceText)

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.NotNil(t, cmd)
	done, ok := cmd().(translateDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	msg := h.pump(t)
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, translate.StatusCompleted, snap.Status)

	view := h.model.View()
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, "Done")
	assert.Contains(t, view, "Korean")
}

func TestPage_EmptyInputWarns(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyCtrlT})
	done := cmd().(translateDoneMsg)
	assert.ErrorIs(t, done.err, translate.ErrEmptyInput)

	msg := h.pump(t)
	_, ok := msg.(notificationMsg)
	require.True(t, ok, "got %T", msg)
	require.NotNil(t, h.model.toast)
	assert.Equal(t, translate.LevelWarning, h.model.toast.level)
	assert.Contains(t, h.model.View(), "Nothing to translate")
}

func TestPage_CopyTranslation(t *testing.T) {
	h := newHarness(t)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Empty(t, h.copied)
	require.NotNil(t, h.model.toast)
	assert.Contains(t, h.model.toast.text, "No translation")

	require.NoError(t, h.ctrl.Translate(context.Background(), "안녕", ""))
	h.pump(t)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, []string{"Hello"}, h.copied)
	assert.Contains(t, h.model.toast.text, "Copied translation")

	h.typeText(t, "원문")
	h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}, Alt: true})
	assert.Equal(t, "원문", h.copied[len(h.copied)-1])
}

func TestPage_ModelPicker(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.LoadModels(context.Background()))
	h.send(t, snapshotMsg(h.ctrl.Snapshot()))

	h.send(t, tea.KeyMsg{Type: tea.KeyF2})
	require.Equal(t, overlayModels, h.model.overlay)
	assert.Contains(t, h.model.View(), "gemma2:2b")

	h.send(t, tea.KeyMsg{Type: tea.KeyDown})
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, overlayNone, h.model.overlay)
	assert.Equal(t, "gemma2:2b", h.ctrl.Snapshot().Model)
}

func TestPage_PairPicker(t *testing.T) {
	h := newHarness(t)

	h.send(t, tea.KeyMsg{Type: tea.KeyF3})
	require.Equal(t, overlayPairs, h.model.overlay)
	it, ok := h.model.list.selected()
	require.True(t, ok)
	assert.Equal(t, "ko-en", it.value)

	// Templates are sorted: en-ko, ja-ko, ko-en, ko-ja.
	h.send(t, tea.KeyMsg{Type: tea.KeyUp})
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "ja-ko", h.ctrl.Snapshot().PairID)
}

func TestPage_DictionaryAddAndDelete(t *testing.T) {
	h := newHarness(t)

	h.send(t, tea.KeyMsg{Type: tea.KeyF4})
	require.Equal(t, overlayDictionary, h.model.overlay)
	assert.Contains(t, h.model.View(), "No entries")

	h.typeText(t, "a")
	require.Equal(t, overlayDictionaryAdd, h.model.overlay)
	h.typeText(t, "네이버")
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	h.typeText(t, "Naver")
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, overlayDictionary, h.model.overlay)
	assert.Equal(t, []dictionary.Entry{{From: "네이버", To: "Naver"}}, h.dict.Get("ko-en"))

	h.typeText(t, "d")
	assert.Empty(t, h.dict.Get("ko-en"))

	h.send(t, tea.KeyMsg{Type: tea.KeyEscape})
	assert.Equal(t, overlayNone, h.model.overlay)
}

func TestPage_DictionaryAddRequiresBothFields(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.KeyMsg{Type: tea.KeyF4})
	h.typeText(t, "a")
	h.typeText(t, "only")
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, overlayDictionaryAdd, h.model.overlay)
	assert.Empty(t, h.dict.Get("ko-en"))
	require.NotNil(t, h.model.toast)
	assert.Equal(t, translate.LevelWarning, h.model.toast.level)
}

func TestPage_HistoryRestoreAndDelete(t *testing.T) {
	h := newHarness(t)
	h.history.items = []history.Item{
		{ID: "h1", SourceText: "안녕", TranslatedText: "Hello", Model: "llama3", PairID: "ko-en", CreatedAt: time.Now()},
		{ID: "h2", SourceText: "감사", TranslatedText: "Thanks", Model: "llama3", PairID: "ko-en", CreatedAt: time.Now()},
	}

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyF5})
	require.Equal(t, overlayHistory, h.model.overlay)
	h.send(t, cmd())
	assert.Len(t, h.model.list.items, 2)

	h.send(t, tea.KeyMsg{Type: tea.KeyDown})
	cmd = h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	require.NotNil(t, cmd)
	h.send(t, cmd())
	assert.Equal(t, []string{"h2"}, h.history.deleted)

	h.send(t, tea.KeyMsg{Type: tea.KeyUp})
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, overlayNone, h.model.overlay)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, translate.StatusCompleted, snap.Status)
	assert.Equal(t, "Hello", snap.Text)
	assert.Equal(t, "h1", snap.HistoryID)
	assert.Equal(t, "안녕", h.model.source.Value())
}

func TestPage_RefreshModelsIsThrottled(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	_, ok := cmd().(modelsLoadedMsg)
	assert.True(t, ok)
	assert.Nil(t, h.model.toast)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, h.model.toast)
	assert.Contains(t, h.model.toast.text, "just reloaded")
}

func TestPage_ResetClearsSource(t *testing.T) {
	h := newHarness(t)
	h.typeText(t, "안녕")
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Empty(t, h.model.source.Value())
	assert.Empty(t, h.ctrl.Snapshot().SourceText)
	assert.Equal(t, translate.StatusReady, h.ctrl.Status())
}

func TestPage_ToastExpires(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlY})
	require.NotNil(t, h.model.toast)
	id := h.model.toast.id

	h.send(t, toastExpiredMsg{id: id - 1})
	assert.NotNil(t, h.model.toast, "stale expiry must not hide a newer toast")
	h.send(t, toastExpiredMsg{id: id})
	assert.Nil(t, h.model.toast)
}

func TestRenderStatusBar_UsageAndBusy(t *testing.T) {
	h := newHarness(t)

	h.send(t, snapshotMsg(translate.Snapshot{Status: translate.StatusCompleted, Text: "Hello", Usage: &history.Usage{
		PromptTokens:     12,
		CompletionTokens: 40,
		Duration:         2 * time.Second,
		EvalDuration:     time.Second,
	}}))
	assert.False(t, h.model.busy())
	assert.Contains(t, h.model.renderStatusBar(), "12 prompt · 2s | 40 tokens | 40.0 tok/s")

	for _, status := range []translate.Status{translate.StatusTranslating, translate.StatusLoadingModels} {
		h.send(t, snapshotMsg(translate.Snapshot{Status: status}))
		assert.True(t, h.model.busy(), status.String())
	}
	h.send(t, snapshotMsg(translate.Snapshot{Status: translate.StatusReady}))
	assert.False(t, h.model.busy())
	assert.NotContains(t, h.model.renderStatusBar(), "tok/s")
}

func TestRenderResult_States(t *testing.T) {
	h := newHarness(t)

	h.send(t, snapshotMsg(translate.Snapshot{Status: translate.StatusTranslating, Text: "Hel"}))
	assert.Contains(t, h.model.renderResult(), "Hel"+streamCursor)

	h.send(t, snapshotMsg(translate.Snapshot{Status: translate.StatusCancelled, Text: "Hel"}))
	assert.Contains(t, h.model.renderResult(), "Stopped")

	h.send(t, snapshotMsg(translate.Snapshot{Status: translate.StatusFailed, Err: ollama.ErrMalformedResponse}))
	out := h.model.renderResult()
	assert.True(t, strings.Contains(out, "failed"), out)

	h.send(t, snapshotMsg(translate.Snapshot{Status: translate.StatusReady}))
	assert.Contains(t, h.model.renderResult(), "appears here")
}
