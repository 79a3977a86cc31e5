// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translator

import (
	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/translate"
)

// =============================================================================
// CONTROLLER EVENTS
// =============================================================================

// snapshotMsg carries the newest controller state.
type snapshotMsg translate.Snapshot

// notificationMsg carries one controller notification.
type notificationMsg translate.Notification

// translateDoneMsg is sent when a Translate call returns.
type translateDoneMsg struct {
	err error
}

// modelsLoadedMsg is sent when LoadModels returns.
type modelsLoadedMsg struct {
	err error
}

// =============================================================================
// PAGE EVENTS
// =============================================================================

// historyLoadedMsg carries the history list for the overlay.
type historyLoadedMsg struct {
	items []history.Item
	err   error
}

// toastExpiredMsg hides the toast with the given id.
type toastExpiredMsg struct {
	id int
}
