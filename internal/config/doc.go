// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for otrans.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (OTRANS_*, OLLAMA_HOST)
//   - ~/.otrans/config.toml
//   - ~/.otrans/config.json
//   - Built-in defaults
//
// OTRANS_HOME relocates the whole ~/.otrans directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dictPath, _ := cfg.DictionaryPath()
package config
