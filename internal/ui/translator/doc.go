// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package translator provides the Bubble Tea translate page.
//
// The page is a thin presentation layer over a translate.Controller: it
// owns no session state of its own. Controller snapshots and notifications
// reach the Update loop through a Bridge; user actions call the controller
// from tea.Cmd goroutines so Update never blocks on the network.
//
// Layout: header (pair, model), source and translation panes side by side
// on wide terminals or stacked on narrow ones, a toast line, and a status
// bar. F2-F5 open the model, language, dictionary and history overlays.
package translator
