// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the stores and the
// presentation layers: crash-safe file writes and width-aware string
// truncation for CJK text.
package util
