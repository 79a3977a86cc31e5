// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message roles understood by /api/chat.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}

// ChatRequest is the request body for /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`             // Model name (e.g., "llama3")
	Messages []Message `json:"messages"`          // Ordered prompt
	Stream   bool      `json:"stream"`            // Always true for translations
	Options  *Options  `json:"options,omitempty"` // Model parameters
}

// Options contains model parameters for inference.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	Seed        int     `json:"seed,omitempty"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo describes a model installed on the server.
// Values are immutable once returned by ListModels.
type ModelInfo struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the response from /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// VersionResponse is the response from /api/version endpoint.
type VersionResponse struct {
	Version string `json:"version"`
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// chatStreamLine is one NDJSON object of a streaming /api/chat response.
type chatStreamLine struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done               bool   `json:"done"`
	DoneReason         string `json:"done_reason,omitempty"`
	TotalDuration      int64  `json:"total_duration,omitempty"`
	LoadDuration       int64  `json:"load_duration,omitempty"`
	PromptEvalCount    *int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64  `json:"prompt_eval_duration,omitempty"`
	EvalCount          *int   `json:"eval_count,omitempty"`
	EvalDuration       int64  `json:"eval_duration,omitempty"`
	Error              string `json:"error,omitempty"`
}

// StreamChunk represents a single decoded fragment of a streaming response.
type StreamChunk struct {
	// Content fragment (message.content)
	Content string

	// Timing information (only populated on final chunk)
	Done               bool
	DoneReason         string
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	// Token counts, nil when the server did not report them
	PromptTokens     *int
	CompletionTokens *int

	Model string
}

// HasUsage reports whether the chunk carries token-count metadata.
func (c StreamChunk) HasUsage() bool {
	return c.PromptTokens != nil || c.CompletionTokens != nil
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// OllamaError represents an error body from the Ollama API.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// HELPER METHODS
// =============================================================================

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// FormatSize formats the model size in human-readable form.
func (m *ModelInfo) FormatSize() string {
	if m.Size <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(m.Size))
}

// Summary returns a short "family params quant" description for pickers.
func (m *ModelInfo) Summary() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Details.Family, m.Details.ParameterSize, m.Details.QuantizationLevel} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return m.FormatSize()
	}
	return strings.Join(parts, " ")
}
