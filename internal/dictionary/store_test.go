// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictionary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dictionary.json")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestGet_UnknownPairIsEmpty(t *testing.T) {
	s := NewMemoryStore()

	got := s.Get("ko-en")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdd_PreservesOrderAndDuplicates(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Add("ko-en", Entry{From: "사과", To: "apple"}))
	require.NoError(t, s.Add("ko-en", Entry{From: "배", To: "pear"}))
	require.NoError(t, s.Add("ko-en", Entry{From: "사과", To: "Apple Inc."}))

	assert.Equal(t, []Entry{
		{From: "사과", To: "apple"},
		{From: "배", To: "pear"},
		{From: "사과", To: "Apple Inc."},
	}, s.Get("ko-en"))
	assert.Empty(t, s.Get("en-ko"), "pairs are independent")
}

func TestAdd_RejectsBlankTerms(t *testing.T) {
	s := NewMemoryStore()

	assert.ErrorIs(t, s.Add("ko-en", Entry{From: "  ", To: "x"}), ErrEmptyTerm)
	assert.ErrorIs(t, s.Add("ko-en", Entry{From: "x", To: ""}), ErrEmptyTerm)
	assert.ErrorIs(t, s.Add(" ", Entry{From: "x", To: "y"}), ErrEmptyPair)
	assert.Empty(t, s.Get("ko-en"))
}

func TestUpdateAndRemove(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set("ko-en", []Entry{{"a", "1"}, {"b", "2"}, {"c", "3"}}))

	require.NoError(t, s.Update("ko-en", 1, Entry{"b", "two"}))
	require.NoError(t, s.Remove("ko-en", 0))
	assert.Equal(t, []Entry{{"b", "two"}, {"c", "3"}}, s.Get("ko-en"))

	assert.ErrorIs(t, s.Update("ko-en", 5, Entry{"x", "y"}), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Remove("ko-en", -1), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Remove("en-ko", 0), ErrIndexOutOfRange)
}

func TestSet_DropsBlankEntries(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Set("ko-en", []Entry{{"a", "1"}, {"", "2"}, {"c", "  "}, {"d", "4"}}))
	assert.Equal(t, []Entry{{"a", "1"}, {"d", "4"}}, s.Get("ko-en"))

	require.NoError(t, s.Set("ko-en", nil))
	assert.Empty(t, s.Get("ko-en"))
	assert.Empty(t, s.Pairs())
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Add("ko-en", Entry{"a", "1"}))

	got := s.Get("ko-en")
	got[0].To = "mutated"
	assert.Equal(t, "1", s.Get("ko-en")[0].To)
}

func TestPairIDsAreNormalised(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Add(" KO-EN ", Entry{"a", "1"}))
	assert.Len(t, s.Get("ko-en"), 1)
}

func TestClearAndPairs(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Add("ko-en", Entry{"a", "1"}))
	require.NoError(t, s.Add("en-ko", Entry{"b", "2"}))
	assert.Equal(t, []string{"en-ko", "ko-en"}, s.Pairs())

	require.NoError(t, s.Clear("ko-en"))
	assert.Equal(t, []string{"en-ko"}, s.Pairs())
	assert.Empty(t, s.Get("ko-en"))
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Add("ko-en", Entry{"안녕", "hello"}))
	require.NoError(t, s.Add("ja-ko", Entry{"こんにちは", "안녕하세요"}))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"안녕", "hello"}}, reopened.Get("ko-en"))
	assert.Equal(t, []Entry{{"こんにちは", "안녕하세요"}}, reopened.Get("ja-ko"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpen_DropsBlankRowsFromHandEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"dictionaries":{"ko-en":[{"from":"a","to":"1"},{"from":"","to":"x"}]}}`), 0600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"a", "1"}}, s.Get("ko-en"))
}

func TestMutate_WriteFailureKeepsState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(dir, 0700))
	s, err := Open(filepath.Join(dir, "dictionary.json"))
	require.NoError(t, err)

	// Replace the data directory with a regular file so every write fails.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0600))

	err = s.Add("ko-en", Entry{"a", "1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyTerm))
	assert.Empty(t, s.Get("ko-en"))
}

func TestOnChange(t *testing.T) {
	s := NewMemoryStore()
	var calls int32
	s.OnChange(func() { atomic.AddInt32(&calls, 1) })

	require.NoError(t, s.Add("ko-en", Entry{"a", "1"}))
	_ = s.Add("ko-en", Entry{"", ""})
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatch_ReloadsExternalEdits(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Add("ko-en", Entry{"a", "1"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx, 20*time.Millisecond))

	// Another process rewrites the file.
	other, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, other.Add("ko-en", Entry{"b", "2"}))

	require.Eventually(t, func() bool {
		return len(s.Get("ko-en")) == 2
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatch_MemoryStore(t *testing.T) {
	assert.Error(t, NewMemoryStore().Watch(context.Background(), 0))
}

func TestFilterAndValid(t *testing.T) {
	assert.True(t, Entry{"a", "b"}.Valid())
	assert.False(t, Entry{" ", "b"}.Valid())
	assert.Equal(t, `"a" -> "b"`, Entry{"a", "b"}.String())
	assert.Empty(t, Filter([]Entry{{"", ""}}))
}
