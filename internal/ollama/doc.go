// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The client is a thin, stateless transport: it lists installed models and
// opens streaming chat requests, decoding the newline-delimited JSON
// response into StreamChunk values.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: role-tagged chat message
//   - ModelInfo: installed model descriptor from /api/tags
//   - StreamChunk: one decoded fragment of a chat stream
//   - ClientError: typed error with an ErrorType for classification
//
// # Usage
//
//	client := ollama.NewClient()
//	models, err := client.ListModels(ctx)
//	...
//	err = client.ChatStream(ctx, models[0].Name, messages, func(c ollama.StreamChunk) {
//	    fmt.Print(c.Content)
//	})
//	if ollama.IsCancelled(err) {
//	    // user stopped the request
//	}
//
// # Errors
//
// Every error returned is a *ClientError. Use IsNotRunning, IsMalformed,
// IsCancelled, IsModelError, IsModelNotFound and IsTimeout to tell them
// apart. A malformed stream line fails the whole call; it is never skipped.
package ollama
