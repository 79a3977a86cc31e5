// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists completed translations in SQLite.
//
// Items are immutable snapshots written once, when a translation
// completes. Cancelled or failed attempts never reach this package.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// TYPES
// =============================================================================

// Item is a snapshot of one completed translation.
type Item struct {
	ID             string    `json:"id"`
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text"`
	Model          string    `json:"model"`
	PairID         string    `json:"pair_id"`
	Usage          *Usage    `json:"usage,omitempty"` // nil when the server reported none
	CreatedAt      time.Time `json:"created_at"`
}

// Usage is the token accounting reported with the final chunk.
type Usage struct {
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Duration         time.Duration `json:"duration"`
	EvalDuration     time.Duration `json:"eval_duration,omitempty"` // generation time, 0 when unreported
}

// ShortID returns the first 8 characters of the ID for display.
func (i Item) ShortID() string {
	if len(i.ID) > 8 {
		return i.ID[:8]
	}
	return i.ID
}

// =============================================================================
// ERRORS
// =============================================================================

// HistoryError represents a history-related error.
type HistoryError struct {
	Message string
}

func (e *HistoryError) Error() string {
	return e.Message
}

// Is implements errors.Is for HistoryError.
func (e *HistoryError) Is(target error) bool {
	t, ok := target.(*HistoryError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrNotFound is returned when no item matches an ID.
	ErrNotFound = &HistoryError{Message: "history item not found"}

	// ErrAmbiguousID is returned when an ID prefix matches several items.
	ErrAmbiguousID = &HistoryError{Message: "history ID prefix matches more than one item"}
)

// =============================================================================
// STORE
// =============================================================================

// Store is a SQLite-backed history. It is safe for concurrent use.
type Store struct {
	db       *sql.DB
	path     string
	maxItems int
	log      zerolog.Logger
}

// Open opens (creating if needed) the history database at path. maxItems
// caps the number of stored items; 0 means unlimited.
func Open(path string, maxItems int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO metadata(key, value) VALUES('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	return &Store{
		db:       db,
		path:     path,
		maxItems: maxItems,
		log:      log.Logger.With().Str("component", "history").Logger(),
	}, nil
}

// migrate brings a database written by an older version up to
// SchemaVersion. A fresh database has no metadata and is left to Schema.
func migrate(db *sql.DB) error {
	var raw string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&raw)
	if err != nil {
		// No metadata table or no version row: nothing to upgrade.
		return nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", raw, err)
	}
	for v := version + 1; v <= SchemaVersion; v++ {
		stmt, ok := migrations[v]
		if !ok {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate history to v%d: %w", v, err)
		}
		log.Info().Int("from", version).Int("to", v).Msg("history schema migrated")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Add stores item, assigning an ID and timestamp when missing, and returns
// the stored item. The oldest items beyond the limit are pruned.
func (s *Store) Add(ctx context.Context, item Item) (Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	var prompt, completion, duration, evalDuration sql.NullInt64
	if item.Usage != nil {
		prompt = sql.NullInt64{Int64: int64(item.Usage.PromptTokens), Valid: true}
		completion = sql.NullInt64{Int64: int64(item.Usage.CompletionTokens), Valid: true}
		duration = sql.NullInt64{Int64: item.Usage.Duration.Nanoseconds(), Valid: true}
		evalDuration = sql.NullInt64{Int64: item.Usage.EvalDuration.Nanoseconds(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, source_text, translated_text, model, pair_id,
		                     prompt_tokens, completion_tokens, duration_ns, eval_duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.SourceText, item.TranslatedText, item.Model, item.PairID,
		prompt, completion, duration, evalDuration, item.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Item{}, fmt.Errorf("failed to insert history item: %w", err)
	}

	if err := s.enforceLimit(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to prune history")
	}

	s.log.Debug().Str("id", item.ID).Str("model", item.Model).Msg("history item stored")
	return item, nil
}

func (s *Store) enforceLimit(ctx context.Context) error {
	if s.maxItems <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM history WHERE seq NOT IN (
			SELECT seq FROM history ORDER BY created_at DESC, seq DESC LIMIT ?
		)`, s.maxItems)
	return err
}

const selectColumns = `SELECT id, source_text, translated_text, model, pair_id,
	prompt_tokens, completion_tokens, duration_ns, eval_duration_ns, created_at FROM history`

// Get returns the item with the given ID. A unique ID prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Item{}, ErrNotFound
	}

	items, err := s.query(ctx, selectColumns+` WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return Item{}, err
	}

	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	switch len(items) {
	case 0:
		return Item{}, ErrNotFound
	case 1:
		return items[0], nil
	default:
		return Item{}, ErrAmbiguousID
	}
}

// ListOptions filters List.
type ListOptions struct {
	Limit  int // 0 = no limit
	Offset int
	PairID string // empty = all pairs
}

// List returns items newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Item, error) {
	query := selectColumns
	var args []any
	if opts.PairID != "" {
		query += ` WHERE pair_id = ?`
		args = append(args, opts.PairID)
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, opts.Offset)
	}
	return s.query(ctx, query, args...)
}

// Search returns items whose source or translation contains query,
// newest first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if strings.TrimSpace(query) == "" {
		return []Item{}, nil
	}
	if limit <= 0 {
		limit = -1
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.query(ctx, selectColumns+`
		WHERE source_text LIKE ? ESCAPE '\' OR translated_text LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, seq DESC LIMIT ?`, pattern, pattern, limit)
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n)
	return n, err
}

// Delete removes the item with the given ID (a unique prefix is accepted).
func (s *Store) Delete(ctx context.Context, id string) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, item.ID); err != nil {
		return fmt.Errorf("failed to delete history item: %w", err)
	}
	return nil
}

// Clear removes every item and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			it                                         Item
			prompt, completion, duration, evalDuration sql.NullInt64
			created                                    int64
		)
		if err := rows.Scan(&it.ID, &it.SourceText, &it.TranslatedText, &it.Model, &it.PairID,
			&prompt, &completion, &duration, &evalDuration, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if prompt.Valid || completion.Valid {
			it.Usage = &Usage{
				PromptTokens:     int(prompt.Int64),
				CompletionTokens: int(completion.Int64),
				Duration:         time.Duration(duration.Int64),
				EvalDuration:     time.Duration(evalDuration.Int64),
			}
		}
		it.CreatedAt = time.Unix(0, created)
		items = append(items, it)
	}
	return items, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// IsNotFound reports whether err means the item does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
