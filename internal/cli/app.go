// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/config"
	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/logging"
	"github.com/jeranaias/otrans/internal/ollama"
	"github.com/jeranaias/otrans/internal/translate"
)

// app holds the configuration and the resources commands share. Stores
// and the client are opened on first use; Close releases whatever was
// opened.
type app struct {
	opts    rootOptions
	cfg     *config.Config
	cfgPath string
	log     zerolog.Logger

	logCloser io.Closer
	client    *ollama.Client
	dict      *dictionary.Store
	hist      *history.Store
}

// load reads the configuration, applies flag overrides and starts logging.
func (a *app) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.opts.configPath != "" {
		a.cfgPath = a.opts.configPath
		cfg, err = config.LoadFromPath(a.opts.configPath)
	} else {
		a.cfgPath = defaultConfigPath()
		cfg, err = config.Load()
	}
	if err != nil {
		return &ConfigError{Path: a.cfgPath, Err: err}
	}

	if a.opts.pair != "" {
		cfg.Translate.Pair = a.opts.pair
	}
	if a.opts.model != "" {
		cfg.Ollama.Model = a.opts.model
	}
	if a.opts.ollamaURL != "" {
		cfg.Ollama.URL = a.opts.ollamaURL
	}
	if a.opts.logLevel != "" {
		cfg.Log.Level = a.opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	a.cfg = cfg

	logOpts, err := logging.OptionsFromConfig(cfg)
	if err != nil {
		return &ConfigError{Err: err}
	}
	logOpts.Stderr = cmd.ErrOrStderr()
	closer, err := logging.Init(logOpts)
	a.logCloser = closer
	if err != nil {
		// Logging is best effort; keep going on stderr.
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", WarningStyle.Render("[WARN]"), err)
	}
	a.log = log.Logger.With().Str("component", "cli").Str("command", cmd.CommandPath()).Logger()
	a.log.Debug().Str("config", a.cfgPath).Str("pair", cfg.Translate.Pair).Msg("configuration loaded")
	return nil
}

// defaultConfigPath is the file Load read, or the TOML path it would read.
func defaultConfigPath() string {
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(tomlPath); err != nil {
		if jsonPath, err := config.ConfigPathJSON(); err == nil {
			if _, err := os.Stat(jsonPath); err == nil {
				return jsonPath
			}
		}
	}
	return tomlPath
}

// Close releases every opened resource.
func (a *app) Close() {
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close history")
		}
		a.hist = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// =============================================================================
// RESOURCES
// =============================================================================

func (a *app) ollama() *ollama.Client {
	if a.client == nil {
		logger := a.log
		a.client = ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL: a.cfg.Ollama.URL,
			Timeout: time.Duration(a.cfg.Ollama.TimeoutSecs) * time.Second,
			Logger:  &logger,
		})
	}
	return a.client
}

func (a *app) dictionary() (*dictionary.Store, error) {
	if a.dict != nil {
		return a.dict, nil
	}
	path, err := a.cfg.DictionaryPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := dictionary.Open(path)
	if err != nil {
		return nil, err
	}
	a.dict = store
	return store, nil
}

func (a *app) history() (*history.Store, error) {
	if a.hist != nil {
		return a.hist, nil
	}
	path, err := a.cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(path, a.cfg.Storage.HistoryLimit)
	if err != nil {
		return nil, err
	}
	a.hist = store
	return store, nil
}

// watchDictionary reloads the dictionary on external edits until ctx ends,
// when enabled in the config.
func (a *app) watchDictionary(ctx context.Context, store *dictionary.Store) {
	if !a.cfg.Storage.WatchDictionary {
		return
	}
	if err := store.Watch(ctx, dictionary.DefaultDebounce); err != nil {
		a.log.Warn().Err(err).Str("path", store.Path()).Msg("dictionary watch disabled")
	}
}

// controller builds a controller over the shared stores. history is nil
// when recording is disabled.
func (a *app) controller(record bool, opts ...translate.Option) (*translate.Controller, error) {
	dict, err := a.dictionary()
	if err != nil {
		return nil, err
	}
	base := []translate.Option{
		translate.WithDictionary(dict),
		translate.WithPair(a.cfg.Translate.Pair),
		translate.WithModel(a.cfg.Ollama.Model),
		translate.WithLogger(log.Logger.With().Str("component", "translate").Logger()),
	}
	if record {
		hist, err := a.history()
		if err != nil {
			return nil, err
		}
		base = append(base, translate.WithHistory(hist))
	}
	return translate.New(a.ollama(), append(base, opts...)...), nil
}

// output returns the writer for command results.
func output(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

// printJSON writes data in the --json envelope.
func printJSON(cmd *cobra.Command, data interface{}) error {
	return NewJSONResponse(cmd.CommandPath(), data).Write(output(cmd))
}
