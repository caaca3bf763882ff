// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatflow/internal/model"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenRouterClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenRouterClient().WithBaseURL(server.URL)
}

func sseFrame(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	return "data: " + string(b) + "\n\n"
}

func collect(chunks *[]string) func(string) {
	return func(s string) { *chunks = append(*chunks, s) }
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestSendChatMessage_StreamsInOrder(t *testing.T) {
	var gotReq ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, DefaultSiteName, r.Header.Get("X-Title"))
		assert.NotEmpty(t, r.Header.Get("HTTP-Referer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		fmt.Fprint(w, sseFrame("Hi"))
		fmt.Fprint(w, sseFrame(""))
		fmt.Fprint(w, sseFrame(" there"))
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, sseFrame("ignored after done"))
	})

	var chunks []string
	msgs := []ChatMessage{{Role: "user", Content: "Hello"}}
	err := client.SendChatMessage(context.Background(), msgs, "m1", testKey, collect(&chunks))

	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there"}, chunks)
	assert.Equal(t, "m1", gotReq.Model)
	assert.True(t, gotReq.Stream)
	assert.Equal(t, msgs, gotReq.Messages)
}

func TestSendChatMessage_SkipsMalformedFrames(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseFrame("a"))
		fmt.Fprint(w, "data: {not json\n\n")
		fmt.Fprint(w, "data: {\"choices\": \"wrong\"}\n\n")
		fmt.Fprint(w, sseFrame("b"))
	})

	var chunks []string
	err := client.SendChatMessage(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, "m", testKey, collect(&chunks))

	require.NoError(t, err, "clean EOF without [DONE] is completion")
	assert.Equal(t, []string{"a", "b"}, chunks)
}

func TestSendChatMessage_FrameSplitAcrossWrites(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		frame := sseFrame("split")
		half := len(frame) / 2
		fmt.Fprint(w, frame[:half])
		flusher.Flush()
		time.Sleep(10 * time.Millisecond)
		fmt.Fprint(w, frame[half:])
		fmt.Fprint(w, "data: [DONE]")
	})

	var chunks []string
	err := client.SendChatMessage(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, "m", testKey, collect(&chunks))
	require.NoError(t, err)
	assert.Equal(t, []string{"split"}, chunks)
}

func TestSendChatMessage_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		kind     ErrorKind
		message  string
	}{
		{"rate limited", 429, `{"error":{"message":"slow down"}}`, ErrRateLimited, KindRateLimited, msgRateLimited},
		{"unauthenticated", 401, ``, ErrAuthFailed, KindUnauthenticated, msgAuthFailed},
		{"forbidden", 403, ``, ErrForbidden, KindForbidden, msgForbidden},
		{"not found", 404, `{"error":{"message":"No endpoints found"}}`, ErrModelNotFound, KindNotFound, "No endpoints found"},
		{"error.message", 500, `{"error":{"code":502,"message":"upstream down"}}`, nil, KindGeneric, "upstream down"},
		{"top-level message", 400, `{"message":"bad request"}`, nil, KindGeneric, "bad request"},
		{"raw body", 502, `gateway exploded`, nil, KindGeneric, "gateway exploded"},
		{"empty body", 500, ``, nil, KindGeneric, "API error: 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			called := false
			err := client.SendChatMessage(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, "m", testKey, func(string) { called = true })

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "expected *APIError, got %T", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.message, apiErr.Message)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.False(t, called)
		})
	}
}

func TestSendChatMessage_MidStreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than are sent so the client sees an unexpected EOF
		w.Header().Set("Content-Length", "100000")
		fmt.Fprint(w, sseFrame("partial"))
		w.(http.Flusher).Flush()
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	})

	var chunks []string
	err := client.SendChatMessage(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, "m", testKey, collect(&chunks))

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr), "expected *StreamError, got %v", err)
	assert.Equal(t, "partial", streamErr.Partial)
	assert.Equal(t, []string{"partial"}, chunks)
}

func TestSendChatMessage_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseFrame("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := client.SendChatMessage(ctx, []ChatMessage{{Role: "user", Content: "x"}}, "m", testKey, func(string) { cancel() })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendChatMessage_InputValidation(t *testing.T) {
	client := NewOpenRouterClient()
	msgs := []ChatMessage{{Role: "user", Content: "x"}}

	assert.ErrorIs(t, client.SendChatMessage(context.Background(), msgs, "m", "", func(string) {}), ErrNoCredential)
	assert.Error(t, client.SendChatMessage(context.Background(), msgs, "", testKey, func(string) {}))
	assert.Error(t, client.SendChatMessage(context.Background(), nil, "m", testKey, func(string) {}))
}

// =============================================================================
// MODEL CATALOG TESTS
// =============================================================================

const catalogBody = `{"data":[
	{"id":"openai/gpt-4o","name":"GPT-4o","pricing":{"prompt":"0.0000025","completion":"0.00001"}},
	{"id":"meta/llama","name":"","description":"open weights"},
	{"id":"anthropic/claude-3.5-sonnet","name":"Claude 3.5 Sonnet"}
]}`

func TestFetchAvailableModels_All(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		fmt.Fprint(w, catalogBody)
	})

	catalog, err := client.FetchAvailableModels(context.Background(), testKey, nil)
	require.NoError(t, err)
	require.Len(t, catalog.Models, 3)
	assert.Equal(t, "meta/llama", catalog.Models[1].Name, "name defaults to id")
	assert.Equal(t, "open weights", catalog.Models[1].Description)
	assert.Nil(t, catalog.Models[1].Pricing)
	require.NotNil(t, catalog.Models[0].Pricing)
	assert.Equal(t, "0.0000025", catalog.Models[0].Pricing.Prompt)
	assert.Empty(t, catalog.Missing)
}

func TestFetchAvailableModels_AllowList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, catalogBody)
	})

	allow := []string{"anthropic/claude-3.5-sonnet", "google/gemini-pro", "openai/gpt-4o"}
	catalog, err := client.FetchAvailableModels(context.Background(), testKey, allow)
	require.NoError(t, err)

	var got []string
	for _, m := range catalog.Models {
		got = append(got, m.ID)
	}
	assert.Equal(t, []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}, got, "catalog order kept")
	assert.Equal(t, []string{"google/gemini-pro"}, catalog.Missing)
}

func TestFetchAvailableModels_Errors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.FetchAvailableModels(context.Background(), testKey, nil)
	assert.ErrorIs(t, err, ErrAuthFailed)

	bad := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>")
	})
	_, err = bad.FetchAvailableModels(context.Background(), testKey, nil)
	assert.Error(t, err)

	_, err = NewOpenRouterClient().FetchAvailableModels(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoCredential)
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestKeyFingerprint(t *testing.T) {
	fp := KeyFingerprint(testKey)
	assert.Len(t, fp, 8)
	assert.False(t, strings.Contains(testKey, fp))
	assert.Equal(t, fp, KeyFingerprint(testKey))
	assert.Equal(t, "none", KeyFingerprint(""))
}

func TestToChatMessages(t *testing.T) {
	msgs := []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "q", Timestamp: 1, Model: "x"},
		{ID: "2", Role: model.RoleAssistant, Content: "a", Timestamp: 2, Feedback: model.FeedbackLike},
	}
	assert.Equal(t, []ChatMessage{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}}, ToChatMessages(msgs))
}
