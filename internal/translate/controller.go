// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/ollama"
	"github.com/jeranaias/otrans/internal/prompt"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// InferenceClient is the subset of *ollama.Client the controller needs.
type InferenceClient interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	ChatStream(ctx context.Context, model string, messages []ollama.Message, callback ollama.StreamCallback) error
}

// DictionaryReader supplies user dictionary entries for a pair.
type DictionaryReader interface {
	Get(pairID string) []dictionary.Entry
}

// HistorySink receives completed translations.
type HistorySink interface {
	Add(ctx context.Context, item history.Item) (history.Item, error)
}

// DefaultPair is used when no pair is configured.
const DefaultPair = "ko-en"

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithDictionary sets the dictionary consulted for every attempt.
func WithDictionary(d DictionaryReader) Option {
	return func(c *Controller) { c.dict = d }
}

// WithHistory sets where completed translations are recorded.
func WithHistory(h HistorySink) Option {
	return func(c *Controller) { c.history = h }
}

// WithNotifier sets the notification receiver.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithObserver registers fn to receive a snapshot after every state change.
// fn is called without the controller lock held.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithPair sets the initial language pair.
func WithPair(pairID string) Option {
	return func(c *Controller) { c.pairID = normalizePair(pairID) }
}

// WithModel preselects a model.
func WithModel(model string) Option {
	return func(c *Controller) { c.model = strings.TrimSpace(model) }
}

// WithLogger sets the controller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithClock overrides time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides history ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Status     Status
	Models     []ollama.ModelInfo
	Model      string
	PairID     string
	SourceText string
	Text       string
	Chunks     int
	Usage      *history.Usage
	Err        error
	HistoryID  string
	Attempt    uint64

	// Seq increases with every snapshot taken. Observers drop a snapshot
	// whose Seq is not above the last one they applied.
	Seq uint64
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the translation session. All methods are safe for
// concurrent use; state logic runs under one mutex that is never held across
// network calls or collaborator callbacks.
type Controller struct {
	client   InferenceClient
	dict     DictionaryReader
	history  HistorySink
	notifier Notifier
	observer func(Snapshot)
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string

	mu        sync.Mutex
	status    Status
	models    []ollama.ModelInfo
	model     string
	pairID    string
	source    string
	text      strings.Builder
	chunks    int
	usage     *history.Usage
	lastErr   error
	historyID string

	seq      uint64
	attempt  uint64
	cancel   context.CancelFunc // non-nil iff status == StatusTranslating
	inflight chan struct{}      // closed when the attempt's stream call returns
}

// New creates a controller in StatusIdle.
func New(client InferenceClient, opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		notifier: nopNotifier{},
		log:      log.Logger.With().Str("component", "translate").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
		pairID:   DefaultPair,
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pairID == "" {
		c.pairID = DefaultPair
	}
	return c
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// nextSnapshotLocked takes a snapshot for publishing.
func (c *Controller) nextSnapshotLocked() Snapshot {
	c.seq++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:        c.seq,
		Status:     c.status,
		Models:     append([]ollama.ModelInfo(nil), c.models...),
		Model:      c.model,
		PairID:     c.pairID,
		SourceText: c.source,
		Text:       c.text.String(),
		Chunks:     c.chunks,
		Err:        c.lastErr,
		HistoryID:  c.historyID,
		Attempt:    c.attempt,
	}
	if c.usage != nil {
		u := *c.usage
		snap.Usage = &u
	}
	return snap
}

// =============================================================================
// MODEL DISCOVERY
// =============================================================================

// LoadModels fetches the installed models and returns the session to
// StatusReady. Zero models is a warning, not an error. A discovery failure
// leaves an empty model list, notifies, and is returned.
func (c *Controller) LoadModels(ctx context.Context) error {
	c.mu.Lock()
	switch c.status {
	case StatusTranslating:
		c.mu.Unlock()
		return c.reject(ErrTranslationInProgress)
	case StatusLoadingModels:
		c.mu.Unlock()
		return ErrModelsLoading
	}
	c.status = StatusLoadingModels
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	models, err := c.client.ListModels(ctx)

	c.mu.Lock()
	if c.status == StatusLoadingModels {
		c.status = StatusReady
	}
	var note *Notification
	if err != nil {
		c.models = nil
		note = &Notification{
			Level:   LevelError,
			Kind:    KindDiscoveryFailed,
			Message: "Could not load models: " + err.Error(),
			Err:     err,
		}
		c.log.Warn().Err(err).Msg("model discovery failed")
	} else {
		c.models = append([]ollama.ModelInfo(nil), models...)
		switch {
		case len(models) == 0:
			c.model = ""
			note = &Notification{
				Level:   LevelWarning,
				Kind:    KindNoModels,
				Message: "No models are installed. Pull one with `ollama pull <model>`.",
			}
		case c.model == "":
			c.model = models[0].Name
		default:
			if name, ok := findModel(models, c.model); ok {
				c.model = name
			} else {
				c.log.Info().Str("model", c.model).Str("fallback", models[0].Name).
					Msg("selected model not installed, using first available")
				c.model = models[0].Name
			}
		}
		c.log.Debug().Int("count", len(models)).Str("model", c.model).Msg("models loaded")
	}
	snap = c.nextSnapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	if note != nil {
		c.notify(*note)
	}
	return err
}

// findModel matches selected against installed names, treating a missing
// tag as ":latest".
func findModel(models []ollama.ModelInfo, selected string) (string, bool) {
	for _, m := range models {
		if m.Name == selected || m.Model == selected {
			return m.Name, true
		}
	}
	if !strings.Contains(selected, ":") {
		for _, m := range models {
			if m.Name == selected+":latest" {
				return m.Name, true
			}
		}
	}
	return "", false
}

// =============================================================================
// TRANSLATION
// =============================================================================

// Translate runs one attempt and blocks until it reaches a terminal state.
// modelID overrides (and replaces) the selected model when non-empty.
//
// It returns nil on StatusCompleted, ErrCancelled on StatusCancelled, the
// transport error on StatusFailed, ErrAlreadyRunning if an attempt is
// already streaming, or a *PreconditionError.
func (c *Controller) Translate(ctx context.Context, sourceText, modelID string) error {
	c.mu.Lock()
	if !c.status.CanTranslate() {
		status := c.status
		c.mu.Unlock()
		if status == StatusTranslating {
			return ErrAlreadyRunning
		}
		return c.reject(ErrModelsLoading)
	}
	if strings.TrimSpace(sourceText) == "" {
		c.mu.Unlock()
		return c.reject(ErrEmptyInput)
	}
	model := strings.TrimSpace(modelID)
	if model == "" {
		model = c.model
	}
	if model == "" {
		c.mu.Unlock()
		return c.reject(ErrNoModelSelected)
	}

	tmpl, err := prompt.ForPair(c.pairID)
	if err != nil {
		c.mu.Unlock()
		return c.reject(&PreconditionError{Message: err.Error()})
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	c.attempt++
	id := c.attempt
	c.model = model
	c.source = sourceText
	c.text.Reset()
	c.chunks = 0
	c.usage = nil
	c.lastErr = nil
	c.historyID = ""
	c.status = StatusTranslating
	c.cancel = cancel
	prev := c.inflight
	done := make(chan struct{})
	c.inflight = done
	pairID := c.pairID
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	defer close(done)
	c.publish(snap)

	logger := c.log.With().Uint64("attempt", id).Str("model", model).Str("pair", pairID).Logger()
	logger.Debug().Int("chars", len(sourceText)).Msg("translation started")

	// A stopped attempt may still be unwinding its request.
	if prev != nil {
		select {
		case <-prev:
		case <-attemptCtx.Done():
		}
	}

	var userEntries []dictionary.Entry
	if c.dict != nil {
		userEntries = c.dict.Get(pairID)
	}
	messages := tmpl.Build(sourceText, userEntries)

	streamErr := c.client.ChatStream(attemptCtx, model, messages, func(chunk ollama.StreamChunk) {
		c.applyChunk(id, chunk)
	})

	return c.finish(ctx, id, streamErr, logger)
}

// applyChunk appends a chunk if it belongs to the live attempt.
func (c *Controller) applyChunk(id uint64, chunk ollama.StreamChunk) {
	c.mu.Lock()
	if c.attempt != id || c.status != StatusTranslating {
		c.mu.Unlock()
		return
	}
	c.text.WriteString(chunk.Content)
	c.chunks++
	if chunk.Done {
		if u := usageFromChunk(chunk); u != nil {
			c.usage = u
		}
	}
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// usageFromChunk returns nil when the done chunk carries no token counts.
func usageFromChunk(chunk ollama.StreamChunk) *history.Usage {
	stats, ok := ollama.StatsFromChunk(chunk)
	if !ok {
		return nil
	}
	return &history.Usage{
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.CompletionTokens,
		Duration:         stats.TotalDuration,
		EvalDuration:     stats.EvalDuration,
	}
}

// UsageStats derives display statistics, including throughput, from
// recorded usage.
func UsageStats(u history.Usage) ollama.StreamStats {
	prompt, completion := u.PromptTokens, u.CompletionTokens
	stats, _ := ollama.StatsFromChunk(ollama.StreamChunk{
		Done:             true,
		TotalDuration:    u.Duration,
		EvalDuration:     u.EvalDuration,
		PromptTokens:     &prompt,
		CompletionTokens: &completion,
	})
	return stats
}

// finish resolves an attempt to exactly one terminal state. If Stop or Reset
// already finalised it, the result is discarded.
func (c *Controller) finish(ctx context.Context, id uint64, streamErr error, logger zerolog.Logger) error {
	c.mu.Lock()
	if c.attempt != id || c.status != StatusTranslating {
		c.mu.Unlock()
		logger.Debug().Err(streamErr).Msg("stream returned after stop")
		return ErrCancelled
	}
	c.cancel()
	c.cancel = nil

	var (
		note *Notification
		item *history.Item
		ret  error
	)
	switch {
	case streamErr == nil:
		c.status = StatusCompleted
		it := history.Item{
			ID:             c.newID(),
			SourceText:     c.source,
			TranslatedText: c.text.String(),
			Model:          c.model,
			PairID:         c.pairID,
			CreatedAt:      c.now(),
		}
		if c.usage != nil {
			u := *c.usage
			it.Usage = &u
		}
		c.historyID = it.ID
		item = &it
	case ollama.IsCancelled(streamErr):
		c.status = StatusCancelled
		note = cancelledNotification()
		ret = ErrCancelled
	default:
		c.status = StatusFailed
		c.lastErr = streamErr
		note = &Notification{
			Level:   LevelError,
			Kind:    KindTranslationFailed,
			Message: "Translation failed: " + streamErr.Error(),
			Err:     streamErr,
		}
		ret = streamErr
	}
	chunks := c.chunks
	status := c.status
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	logger.Info().Str("status", status.String()).Int("chunks", chunks).Err(streamErr).Msg("translation finished")

	if item != nil && c.history != nil {
		if _, err := c.history.Add(context.WithoutCancel(ctx), *item); err != nil {
			logger.Error().Err(err).Str("id", item.ID).Msg("failed to record history")
		}
	}
	c.publish(snap)
	if note != nil {
		c.notify(*note)
	}
	return ret
}

func cancelledNotification() *Notification {
	return &Notification{
		Level:   LevelInfo,
		Kind:    KindCancelled,
		Message: "Translation stopped.",
	}
}

// cancelLocked finalises a streaming attempt as cancelled. The caller owns
// the cancel handle from this point; a racing done chunk is discarded.
func (c *Controller) cancelLocked() {
	c.cancel()
	c.cancel = nil
	c.status = StatusCancelled
	c.log.Info().Uint64("attempt", c.attempt).Int("chunks", c.chunks).Msg("translation cancelled")
}

// Stop cancels the streaming attempt. It returns false when nothing was
// streaming.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if c.status != StatusTranslating {
		c.mu.Unlock()
		return false
	}
	c.cancelLocked()
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	c.notify(*cancelledNotification())
	return true
}

// Reset cancels any streaming attempt, clears source and translated text
// and returns to StatusReady. It is a no-op when already clear.
func (c *Controller) Reset() {
	c.mu.Lock()
	var cancelledSnap *Snapshot
	if c.status == StatusTranslating {
		c.cancelLocked()
		snap := c.nextSnapshotLocked()
		cancelledSnap = &snap
	}
	cancelled := cancelledSnap != nil
	clean := c.source == "" && c.text.Len() == 0 && c.lastErr == nil && c.usage == nil &&
		c.historyID == "" && c.chunks == 0
	if !cancelled && clean && (c.status == StatusReady || c.status == StatusLoadingModels) {
		c.mu.Unlock()
		return
	}

	c.source = ""
	c.text.Reset()
	c.chunks = 0
	c.usage = nil
	c.lastErr = nil
	c.historyID = ""
	if c.status != StatusLoadingModels {
		c.status = StatusReady
	}
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	if cancelled {
		c.publish(*cancelledSnap)
		c.notify(*cancelledNotification())
	}
	c.publish(snap)
}

// =============================================================================
// SESSION EDITS
// =============================================================================

// SelectModel changes the selected model.
func (c *Controller) SelectModel(modelID string) error {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return c.reject(ErrNoModelSelected)
	}
	return c.edit(func() { c.model = modelID })
}

// SetPair changes the active language pair.
func (c *Controller) SetPair(pairID string) error {
	pairID = normalizePair(pairID)
	if _, err := prompt.ForPair(pairID); err != nil {
		return c.reject(&PreconditionError{Message: err.Error()})
	}
	return c.edit(func() { c.pairID = pairID })
}

// SetSourceText replaces the source text without translating.
func (c *Controller) SetSourceText(text string) error {
	return c.edit(func() { c.source = text })
}

// Restore loads a history item into the session as a completed result. It
// is rejected while models are loading, since discovery owns the status
// until it returns.
func (c *Controller) Restore(item history.Item) error {
	return c.editStatus(func() {
		c.source = item.SourceText
		c.text.Reset()
		c.text.WriteString(item.TranslatedText)
		c.chunks = 0
		if item.Model != "" {
			c.model = item.Model
		}
		if item.PairID != "" {
			c.pairID = normalizePair(item.PairID)
		}
		c.usage = nil
		if item.Usage != nil {
			u := *item.Usage
			c.usage = &u
		}
		c.lastErr = nil
		c.historyID = item.ID
		c.status = StatusCompleted
	})
}

func (c *Controller) edit(fn func()) error {
	return c.applyEdit(false, fn)
}

// editStatus is edit for changes that also move the status.
func (c *Controller) editStatus(fn func()) error {
	return c.applyEdit(true, fn)
}

func (c *Controller) applyEdit(changesStatus bool, fn func()) error {
	c.mu.Lock()
	if c.status == StatusTranslating {
		c.mu.Unlock()
		return c.reject(ErrTranslationInProgress)
	}
	if changesStatus && c.status == StatusLoadingModels {
		c.mu.Unlock()
		return c.reject(ErrModelsLoading)
	}
	fn()
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// reject emits one warning for a precondition failure and returns err.
func (c *Controller) reject(err *PreconditionError) error {
	c.notify(Notification{
		Level:   LevelWarning,
		Kind:    KindPrecondition,
		Message: capitalize(err.Message) + ".",
		Err:     err,
	})
	return err
}

func (c *Controller) publish(snap Snapshot) {
	if c.observer != nil {
		c.observer(snap)
	}
}

func (c *Controller) notify(n Notification) {
	c.notifier.Notify(n)
}

func normalizePair(pairID string) string {
	return strings.ToLower(strings.TrimSpace(pairID))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// String describes the controller state for debugging.
func (c *Controller) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Controller{status=%s model=%q pair=%s attempt=%d}", c.status, c.model, c.pairID, c.attempt)
}
