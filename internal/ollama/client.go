// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches any ClientError of the same Type, so the sentinels below work
// with errors.Is regardless of message or cause.
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeNotRunning: the server could not be contacted.
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	// ErrTypeModel: the server reported an error while serving the model.
	ErrTypeModel
	// ErrTypeConnection: the connection failed after it was established.
	ErrTypeConnection
	// ErrTypeInvalidResponse: the payload could not be decoded.
	ErrTypeInvalidResponse
	// ErrTypeCancelled: the caller's context was cancelled.
	ErrTypeCancelled
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotRunning:
		return "unreachable"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeModelNotFound:
		return "model_not_found"
	case ErrTypeModel:
		return "model_error"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeInvalidResponse:
		return "malformed_response"
	case ErrTypeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning        = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not reachable"}
	ErrTimeout           = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound     = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrModel             = &ClientError{Type: ErrTypeModel, Message: "model error"}
	ErrMalformedResponse = &ClientError{Type: ErrTypeInvalidResponse, Message: "malformed response"}
	ErrCancelled         = &ClientError{Type: ErrTypeCancelled, Message: "request cancelled"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for non-streaming requests (default: 30s).
	// Streaming requests are bounded only by their context.
	Timeout time.Duration

	// Logger receives debug output. Defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// DefaultBaseURL is used when no URL is configured.
const DefaultBaseURL = "http://127.0.0.1:11434"

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
// It holds no session state and is safe for concurrent use.
//
// Example:
//
//	client := ollama.NewClient()
//	err := client.ChatStream(ctx, "llama3", messages, func(c ollama.StreamChunk) {
//	    fmt.Print(c.Content)
//	})
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	log          zerolog.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		// SECURITY: TLS not required - Ollama runs locally over HTTP.
		// No client timeout: a stream lives as long as its context.
		streamClient: &http.Client{},
		log:          logger.With().Str("component", "ollama").Logger(),
	}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return requestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	return nil
}

// Version returns the server version reported by /api/version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var result VersionResponse
	if err := c.getJSON(ctx, "/api/version", &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all available models from Ollama, in server order.
// An empty list is not an error.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result ListModelsResponse
	if err := c.getJSON(ctx, "/api/tags", &result); err != nil {
		return nil, err
	}
	if result.Models == nil {
		result.Models = []ModelInfo{}
	}
	c.log.Debug().Int("count", len(result.Models)).Msg("listed models")
	return result.Models, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return requestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "GET " + path + " failed: " + resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextError(ctxErr)
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamCallback is called for each chunk received during streaming.
type StreamCallback func(chunk StreamChunk)

// ChatStream sends a streaming chat request and calls the callback for each
// decoded chunk, synchronously and in arrival order. It returns nil once a
// chunk with Done set has been delivered, even if the server keeps the
// connection open.
//
// Cancelling ctx aborts the request; the returned error then satisfies
// IsCancelled. A line that cannot be decoded fails the call with
// ErrTypeInvalidResponse. The response body is released on every path.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, callback StreamCallback) error {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}
	if model == "" {
		return &ClientError{Type: ErrTypeModelNotFound, Message: "no model specified"}
	}

	body, err := json.Marshal(ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	c.log.Debug().Str("model", model).Int("messages", len(messages)).Msg("opening chat stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return requestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, model)
	}

	reader := NewStreamReader(resp.Body)
	err = reader.Process(ctx, callback)
	c.log.Debug().
		Str("model", model).
		Int("chunks", reader.ChunkCount()).
		Err(err).
		Msg("chat stream finished")
	return err
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// requestError maps a failed http.Client.Do to a ClientError. A cancelled
// context wins over whatever the transport reported.
func requestError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: ErrNotRunning.Message, Cause: err}
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	return &ClientError{Type: ErrTypeCancelled, Message: ErrCancelled.Message, Cause: err}
}

func statusError(resp *http.Response, model string) error {
	var ollamaErr OllamaError
	msg := ""
	if err := json.NewDecoder(resp.Body).Decode(&ollamaErr); err == nil {
		msg = ollamaErr.Error
	}

	if resp.StatusCode == http.StatusNotFound {
		if msg == "" {
			msg = "model '" + model + "' not found"
		}
		return &ClientError{Type: ErrTypeModelNotFound, Message: msg}
	}
	if msg != "" {
		return &ClientError{Type: ErrTypeModel, Message: msg}
	}
	return &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: "stream request failed: " + resp.Status,
	}
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return isType(err, ErrTypeModelNotFound)
}

// IsNotRunning checks if an error indicates Ollama could not be reached.
func IsNotRunning(err error) bool {
	return isType(err, ErrTypeNotRunning)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return isType(err, ErrTypeTimeout)
}

// IsCancelled checks if an error was caused by cancelling the request.
func IsCancelled(err error) bool {
	return isType(err, ErrTypeCancelled)
}

// IsMalformed checks if an error is a payload decoding failure.
func IsMalformed(err error) bool {
	return isType(err, ErrTypeInvalidResponse)
}

// IsModelError checks if the server reported an error for the model.
func IsModelError(err error) bool {
	return isType(err, ErrTypeModel)
}

func isType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}
