// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, maxItems int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "history.db"), maxItems)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_AddAssignsIDAndTime(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()

	item, err := store.Add(ctx, Item{SourceText: "안녕", TranslatedText: "Hello", Model: "llama3"})
	require.NoError(t, err)
	assert.Len(t, item.ID, 36)
	assert.False(t, item.CreatedAt.IsZero())

	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "안녕", got.SourceText)
	assert.Equal(t, "Hello", got.TranslatedText)
	assert.Equal(t, "llama3", got.Model)
}

func TestStore_RoundTripPreservesFields(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 30, 0, 123456789, time.UTC)

	withUsage := Item{
		ID:             "a1",
		SourceText:     "  line one\n\tline two  ",
		TranslatedText: "trailing space ",
		Model:          "gemma2:2b",
		PairID:         "ko-en",
		Usage: &Usage{
			PromptTokens:     12,
			CompletionTokens: 2,
			Duration:         1234567891 * time.Nanosecond,
			EvalDuration:     987654321 * time.Nanosecond,
		},
		CreatedAt:      created,
	}
	noUsage := Item{ID: "b2", SourceText: "x", TranslatedText: "y", Model: "llama3", CreatedAt: created.Add(time.Second)}

	_, err := store.Add(ctx, withUsage)
	require.NoError(t, err)
	_, err = store.Add(ctx, noUsage)
	require.NoError(t, err)

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, withUsage.SourceText, got.SourceText)
	assert.Equal(t, withUsage.TranslatedText, got.TranslatedText)
	assert.Equal(t, "ko-en", got.PairID)
	require.NotNil(t, got.Usage)
	assert.Equal(t, *withUsage.Usage, *got.Usage, "durations keep sub-millisecond precision")
	assert.True(t, created.Equal(got.CreatedAt), "created = %v", got.CreatedAt)

	got, err = store.Get(ctx, "b2")
	require.NoError(t, err)
	assert.Nil(t, got.Usage)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"one", "two", "three"} {
		_, err := store.Add(ctx, Item{ID: id, Model: "m", PairID: "ko-en", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, err := store.Add(ctx, Item{ID: "other", Model: "m", PairID: "en-ko", CreatedAt: base.Add(-time.Hour)})
	require.NoError(t, err)

	items, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, []string{"three", "two", "one", "other"}, ids(items))

	items, err = store.List(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "one"}, ids(items))

	items, err = store.List(ctx, ListOptions{PairID: "en-ko"})
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, ids(items))
}

func TestStore_EnforcesLimit(t *testing.T) {
	store := openTestStore(t, 2)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"oldest", "middle", "newest"} {
		_, err := store.Add(ctx, Item{ID: id, Model: "m", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.Get(ctx, "oldest")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetByPrefix(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Add(ctx, Item{ID: "abc123", Model: "m"})
	require.NoError(t, err)
	_, err = store.Add(ctx, Item{ID: "abd456", Model: "m"})
	require.NoError(t, err)

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ID)

	_, err = store.Get(ctx, "ab")
	assert.ErrorIs(t, err, ErrAmbiguousID)

	_, err = store.Get(ctx, "zzz")
	assert.True(t, IsNotFound(err))

	_, err = store.Get(ctx, "  ")
	assert.True(t, IsNotFound(err))
}

func TestStore_PrefixIsLiteral(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Add(ctx, Item{ID: "abc", Model: "m"})
	require.NoError(t, err)

	_, err = store.Get(ctx, "a_c")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "%")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Search(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()
	base := time.Now()

	_, err := store.Add(ctx, Item{ID: "1", SourceText: "카카오톡 메시지", TranslatedText: "KakaoTalk message", Model: "m", CreatedAt: base})
	require.NoError(t, err)
	_, err = store.Add(ctx, Item{ID: "2", SourceText: "네이버 검색", TranslatedText: "Naver search", Model: "m", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)
	_, err = store.Add(ctx, Item{ID: "3", SourceText: "100% 확실", TranslatedText: "100% sure", Model: "m", CreatedAt: base.Add(2 * time.Second)})
	require.NoError(t, err)

	items, err := store.Search(ctx, "kakao", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(items))

	items, err = store.Search(ctx, "검색", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(items))

	items, err = store.Search(ctx, "%", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(items))

	items, err = store.Search(ctx, "  ", 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_DeleteAndClear(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()

	for _, id := range []string{"x1", "x2", "x3"} {
		_, err := store.Add(ctx, Item{ID: id, Model: "m"})
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, "x2"))
	assert.ErrorIs(t, store.Delete(ctx, "x2"), ErrNotFound)

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpen_MigratesMillisecondDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL) WITHOUT ROWID;
CREATE TABLE history (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    source_text TEXT NOT NULL,
    translated_text TEXT NOT NULL,
    model TEXT NOT NULL,
    pair_id TEXT NOT NULL DEFAULT '',
    prompt_tokens INTEGER,
    completion_tokens INTEGER,
    duration_ms INTEGER,
    created_at INTEGER NOT NULL
);
INSERT INTO metadata(key, value) VALUES('schema_version', '1');
INSERT INTO history(id, source_text, translated_text, model, pair_id, prompt_tokens, completion_tokens, duration_ms, created_at)
VALUES('old', 'a', 'b', 'llama3', 'ko-en', 3, 4, 1500, 1);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := Open(path, 0)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background(), "old")
	require.NoError(t, err)
	require.NotNil(t, got.Usage)
	assert.Equal(t, 1500*time.Millisecond, got.Usage.Duration)
	assert.Zero(t, got.Usage.EvalDuration)

	added, err := store.Add(context.Background(), Item{
		SourceText: "x", TranslatedText: "y", Model: "m",
		Usage: &Usage{CompletionTokens: 1, Duration: 1500*time.Millisecond + 7*time.Nanosecond},
	})
	require.NoError(t, err)
	got, err = store.Get(context.Background(), added.ID)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond+7*time.Nanosecond, got.Usage.Duration)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, 0)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), Item{ID: "keep", Model: "m"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path, 0)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background(), "keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
	assert.Equal(t, path, store.Path())
}

// =============================================================================
// EXPORT TESTS
// =============================================================================

func TestExportMarkdown(t *testing.T) {
	items := []Item{{
		ID:             "abc",
		SourceText:     "안녕",
		TranslatedText: "Hello",
		Model:          "llama3",
		PairID:         "ko-en",
		Usage:          &Usage{PromptTokens: 3, CompletionTokens: 1, Duration: time.Second},
		CreatedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}}

	md := ExportMarkdown(items)
	assert.True(t, strings.HasPrefix(md, "# Translation History"))
	assert.Contains(t, md, "## ko-en · llama3")
	assert.Contains(t, md, "Created: 2025-01-02T03:04:05Z")
	assert.Contains(t, md, "Tokens: 3 prompt, 1 completion in 1s")
	assert.Contains(t, md, "**Source**\n\n안녕")
	assert.Contains(t, md, "**Translation**\n\nHello")
}

func TestExportJSON(t *testing.T) {
	data, err := ExportJSON(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	data, err = ExportJSON([]Item{{ID: "1", Model: "m"}})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "1", decoded[0]["id"])
	_, hasUsage := decoded[0]["usage"]
	assert.False(t, hasUsage)
}

func TestItem_ShortID(t *testing.T) {
	assert.Equal(t, "12345678", Item{ID: "12345678-aaaa"}.ShortID())
	assert.Equal(t, "abc", Item{ID: "abc"}.ShortID())
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
