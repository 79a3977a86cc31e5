// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/otrans/internal/util"
)

// fileVersion is written to and accepted from dictionary files.
const fileVersion = 1

// fileFormat is the on-disk layout of dictionary.json.
type fileFormat struct {
	Version      int                `json:"version"`
	Dictionaries map[string][]Entry `json:"dictionaries"`
}

// Store owns the pair ID -> entries mapping. All methods are safe for
// concurrent use, and every mutation is visible to the next Get.
//
// A Store opened with Open persists the whole mapping after each mutation;
// a failed write leaves the in-memory state unchanged.
type Store struct {
	mu    sync.RWMutex
	path  string // empty for memory-only stores
	dicts map[string][]Entry

	onChange func()
	log      zerolog.Logger
}

// Open loads the dictionary at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		dicts: make(map[string][]Entry),
		log:   log.Logger.With().Str("component", "dictionary").Logger(),
	}

	dicts, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s.dicts = dicts
	return s, nil
}

// NewMemoryStore returns a store that is never persisted.
func NewMemoryStore() *Store {
	return &Store{
		dicts: make(map[string][]Entry),
		log:   log.Logger.With().Str("component", "dictionary").Logger(),
	}
}

// Path returns the backing file, or "" for memory stores.
func (s *Store) Path() string {
	return s.path
}

// OnChange registers fn to run after any mutation or reload.
// fn is called without the store lock held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// =============================================================================
// READS
// =============================================================================

// Get returns a copy of the entries for pairID in insertion order.
// An unknown pair yields an empty, non-nil slice.
func (s *Store) Get(pairID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.dicts[normalizePair(pairID)]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Pairs returns the pair IDs that have at least one entry, sorted.
func (s *Store) Pairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]string, 0, len(s.dicts))
	for id, entries := range s.dicts {
		if len(entries) > 0 {
			pairs = append(pairs, id)
		}
	}
	sort.Strings(pairs)
	return pairs
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Set replaces the list for pairID. Entries with a blank side are dropped.
func (s *Store) Set(pairID string, entries []Entry) error {
	return s.mutate(pairID, func([]Entry) ([]Entry, error) {
		return Filter(entries), nil
	})
}

// Add appends an entry to pairID's list.
func (s *Store) Add(pairID string, e Entry) error {
	if !e.Valid() {
		return ErrEmptyTerm
	}
	return s.mutate(pairID, func(cur []Entry) ([]Entry, error) {
		return append(cur, e), nil
	})
}

// Update replaces the entry at index.
func (s *Store) Update(pairID string, index int, e Entry) error {
	if !e.Valid() {
		return ErrEmptyTerm
	}
	return s.mutate(pairID, func(cur []Entry) ([]Entry, error) {
		if index < 0 || index >= len(cur) {
			return nil, ErrIndexOutOfRange
		}
		cur[index] = e
		return cur, nil
	})
}

// Remove deletes the entry at index, preserving the order of the rest.
func (s *Store) Remove(pairID string, index int) error {
	return s.mutate(pairID, func(cur []Entry) ([]Entry, error) {
		if index < 0 || index >= len(cur) {
			return nil, ErrIndexOutOfRange
		}
		return append(cur[:index], cur[index+1:]...), nil
	})
}

// Clear removes every entry for pairID.
func (s *Store) Clear(pairID string) error {
	return s.mutate(pairID, func([]Entry) ([]Entry, error) {
		return nil, nil
	})
}

// mutate applies fn to a private copy of pairID's list, persists the
// resulting mapping and only then publishes it.
func (s *Store) mutate(pairID string, fn func(cur []Entry) ([]Entry, error)) error {
	pairID = normalizePair(pairID)
	if pairID == "" {
		return ErrEmptyPair
	}

	s.mu.Lock()
	cur := make([]Entry, len(s.dicts[pairID]))
	copy(cur, s.dicts[pairID])

	next, err := fn(cur)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	dicts := make(map[string][]Entry, len(s.dicts)+1)
	for id, entries := range s.dicts {
		dicts[id] = entries
	}
	if len(next) == 0 {
		delete(dicts, pairID)
	} else {
		dicts[pairID] = next
	}

	if s.path != "" {
		if err := writeFile(s.path, dicts); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.dicts = dicts
	onChange := s.onChange
	s.mu.Unlock()

	s.log.Debug().Str("pair", pairID).Int("entries", len(next)).Msg("dictionary updated")
	if onChange != nil {
		onChange()
	}
	return nil
}

// Reload re-reads the backing file. On error the current mapping is kept.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	dicts, err := readFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.dicts = dicts
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return nil
}

// =============================================================================
// FILE I/O
// =============================================================================

func readFile(path string) (map[string][]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string][]Entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return make(map[string][]Entry), nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	if f.Version > fileVersion {
		return nil, fmt.Errorf("dictionary %s has version %d, newer than supported %d", path, f.Version, fileVersion)
	}

	dicts := make(map[string][]Entry, len(f.Dictionaries))
	for id, entries := range f.Dictionaries {
		id = normalizePair(id)
		// Hand-edited files may contain blank rows; persisted state never does.
		if valid := Filter(entries); id != "" && len(valid) > 0 {
			dicts[id] = append(dicts[id], valid...)
		}
	}
	return dicts, nil
}

func writeFile(path string, dicts map[string][]Entry) error {
	data, err := json.MarshalIndent(fileFormat{Version: fileVersion, Dictionaries: dicts}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dictionary: %w", err)
	}
	if err := util.AtomicWriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("save dictionary: %w", err)
	}
	return nil
}

func normalizePair(pairID string) string {
	return strings.ToLower(strings.TrimSpace(pairID))
}
