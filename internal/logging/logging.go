// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the global zerolog logger.
//
// The TUI owns the terminal, so by default logs go to a file under the data
// directory rather than stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/otrans/internal/config"
)

// Options controls Init.
type Options struct {
	Level  string
	Format string
	// Path is the log file; empty writes to Stderr.
	Path string
	// Stderr is used when Path is empty (default os.Stderr).
	Stderr io.Writer
}

// OptionsFromConfig builds Options from the [log] section.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	path, err := cfg.LogPath()
	if err != nil {
		return Options{}, err
	}
	return Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Path: path}, nil
}

// Init initialises log.Logger and returns a closer for the log file.
// The closer is never nil.
func Init(opts Options) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var (
		output io.Writer = opts.Stderr
		closer io.Closer = nopCloser{}
		color            = true
	)
	if output == nil {
		output = os.Stderr
	}

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
			return closer, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		output, closer, color = file, file, false
	}

	if !strings.EqualFold(opts.Format, "json") {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    !color,
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return closer, nil
}

// Discard silences the global logger.
func Discard() {
	log.Logger = zerolog.Nop()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
