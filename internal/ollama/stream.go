// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 4 << 20

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader decodes a newline-delimited JSON chat stream.
// It is not safe for concurrent use.
type StreamReader struct {
	reader *bufio.Reader
	model  string
	chunks int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls the callback for each chunk.
// It blocks until a done chunk is delivered, the stream fails, or ctx is
// cancelled. The context is checked before every line and every callback.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return contextError(err)
		}

		chunk, err := s.readChunk()
		if err != nil {
			// A read torn down by cancellation surfaces as a transport error.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return contextError(ctxErr)
			}
			return err
		}
		if chunk == nil {
			continue
		}

		if err := ctx.Err(); err != nil {
			return contextError(err)
		}
		s.chunks++
		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
}

// readChunk reads and decodes a single line. It returns (nil, nil) for blank
// lines.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, readErr := s.readLine()
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: readErr}
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		if readErr != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before completion"}
		}
		return nil, nil
	}

	var response chatStreamLine
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: fmt.Sprintf("malformed stream line %d", s.chunks+1),
			Cause:   err,
		}
	}
	if response.Error != "" {
		return nil, &ClientError{Type: ErrTypeModel, Message: response.Error}
	}

	if response.Model != "" {
		s.model = response.Model
	}

	chunk := &StreamChunk{
		Content:    response.Message.Content,
		Done:       response.Done,
		DoneReason: response.DoneReason,
		Model:      s.model,
	}

	if response.Done {
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.LoadDuration = time.Duration(response.LoadDuration)
		chunk.PromptEvalDuration = time.Duration(response.PromptEvalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}

	return chunk, nil
}

// readLine returns the next line without its terminator. Lines longer than
// maxLineSize are rejected.
func (s *StreamReader) readLine() ([]byte, error) {
	var buf []byte
	for {
		part, isPrefix, err := s.reader.ReadLine()
		buf = append(buf, part...)
		if err != nil {
			return buf, err
		}
		if len(buf) > maxLineSize {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "stream line too long"}
		}
		if !isPrefix {
			return buf, nil
		}
	}
}

// ChunkCount returns the number of chunks delivered so far.
func (s *StreamReader) ChunkCount() int {
	return s.chunks
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected from the final chunk.
type StreamStats struct {
	TotalDuration    time.Duration
	EvalDuration     time.Duration
	PromptTokens     int
	CompletionTokens int
	TokensPerSecond  float64
}

// StatsFromChunk computes statistics from a done chunk. ok is false when the
// server reported no usage.
func StatsFromChunk(chunk StreamChunk) (stats StreamStats, ok bool) {
	if !chunk.HasUsage() {
		return StreamStats{TotalDuration: chunk.TotalDuration}, false
	}
	stats.TotalDuration = chunk.TotalDuration
	stats.EvalDuration = chunk.EvalDuration
	if chunk.PromptTokens != nil {
		stats.PromptTokens = *chunk.PromptTokens
	}
	if chunk.CompletionTokens != nil {
		stats.CompletionTokens = *chunk.CompletionTokens
	}
	if stats.EvalDuration > 0 {
		stats.TokensPerSecond = float64(stats.CompletionTokens) / stats.EvalDuration.Seconds()
	}
	return stats, true
}

// Format returns a one-line summary such as "1.2s | 42 tokens | 35.0 tok/s".
func (s StreamStats) Format() string {
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s",
		s.TotalDuration.Round(100*time.Millisecond), s.CompletionTokens, s.TokensPerSecond)
}
