// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// STREAMING: Line-oriented SSE parsing

// streamChunk is one decoded `data:` frame of a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// content returns the first choice's delta content.
func (c *streamChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

var (
	dataPrefix = []byte("data: ")
	doneMarker = []byte("[DONE]")
)

// SendChatMessage streams a completion for messages from model. onChunk is
// called, in arrival order, with every non-empty content fragment; the
// fragments concatenate to the full reply. It returns nil once the stream
// signals completion.
//
// A non-success status returns an *APIError before any chunk is delivered.
// A failure after streaming began returns a *StreamError with the partial
// text; the stream is never silently truncated.
func (c *OpenRouterClient) SendChatMessage(ctx context.Context, messages []ChatMessage, model, credential string, onChunk func(string)) error {
	if credential == "" {
		return ErrNoCredential
	}
	if model == "" {
		return errors.New("model must not be empty")
	}
	if len(messages) == 0 {
		return errors.New("messages must not be empty")
	}

	bodyBytes, err := json.Marshal(ChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(req, credential)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := readResponse(resp)
		return handleErrorResponse(resp.StatusCode, body)
	}

	return c.processStream(ctx, resp.Body, onChunk)
}

// processStream splits body into lines and delivers every `data: ` frame.
func (c *OpenRouterClient) processStream(ctx context.Context, body io.Reader, onChunk func(string)) error {
	reader := bufio.NewReader(body)
	var partial strings.Builder

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if done := c.handleLine(bytes.TrimRight(line, "\r\n"), &partial, onChunk); done {
				return nil
			}
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			readErr = ctxErr
		}
		return &StreamError{Partial: partial.String(), Err: readErr}
	}
}

// handleLine processes one SSE line and reports whether the stream is done.
func (c *OpenRouterClient) handleLine(line []byte, partial *strings.Builder, onChunk func(string)) bool {
	if !bytes.HasPrefix(line, dataPrefix) {
		// Comments (": OPENROUTER PROCESSING"), event:, id:, blank lines
		return false
	}
	data := line[len(dataPrefix):]
	if bytes.Equal(data, doneMarker) {
		return true
	}

	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		c.malformed.Do(func() {
			c.logger.Debug("skipping malformed stream frame", "bytes", len(data), "error", err)
		})
		return false
	}

	if text := chunk.content(); text != "" {
		partial.WriteString(text)
		onChunk(text)
	}
	return false
}
