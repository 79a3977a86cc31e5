// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the otrans command line with cobra.
//
// # Commands
//
//	otrans                      interactive translator (Bubble Tea)
//	otrans translate [text]     one-shot translation; stdin when piped
//	otrans repl                 line-by-line translation with liner
//	otrans models               installed Ollama models
//	otrans dict ...             pairs, list, add, update, remove, clear, import, export
//	otrans history ...          list, show, search, delete, clear, export
//	otrans config ...           show, path, init, get, set, keys
//	otrans status               connection check and local state
//
// Every command accepts --json for machine-readable output. Errors are
// returned from RunE and displayed once by Execute, which maps them to exit
// codes (see GetExitCode).
package cli
