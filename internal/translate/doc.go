// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package translate implements the translation session controller.
//
// A Controller owns one session: the model list, the selected model and
// language pair, the source text and the text streamed back so far. It moves
// through these states:
//
//	Idle -> LoadingModels -> Ready -> Translating -> Completed
//	                                              -> Cancelled
//	                                              -> Failed
//
// Every attempt resolves to exactly one terminal state. Completed attempts
// are written to the history sink; every other outcome produces exactly one
// Notification. Precondition failures (ErrEmptyInput, ErrNoModelSelected)
// never reach the network.
//
// # Usage
//
//	ctrl := translate.New(client,
//	    translate.WithDictionary(dict),
//	    translate.WithHistory(store),
//	    translate.WithObserver(func(s translate.Snapshot) { render(s) }),
//	)
//	_ = ctrl.LoadModels(ctx)
//	err := ctrl.Translate(ctx, "안녕", "")
//
// Stop may be called from any goroutine while Translate blocks.
package translate
