// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenRouter chat-completion client.
//
// OpenRouter exposes many LLM providers behind one OpenAI-compatible API.
// This package streams chat completions over Server-Sent Events and fetches
// the model catalog for a credential.
//
// # Key Types
//
//   - OpenRouterClient: HTTP client; the credential is supplied per call
//   - ChatMessage: wire-format message ({role, content})
//   - APIError: classified non-success response (rate limit, auth, ...)
//   - StreamError: mid-stream transport failure carrying the partial text
//   - Catalog: models usable with a credential, plus missing allow-list ids
//
// # Usage
//
// Stream a reply:
//
//	client := cloud.NewOpenRouterClient()
//	err := client.SendChatMessage(ctx, msgs, "openai/gpt-4o", apiKey, func(s string) {
//	    fmt.Print(s)
//	})
//
// # Retries
//
// Nothing is retried. The caller's context governs cancellation and there is
// no client-side timeout on streaming requests.
//
// # Security
//
// API keys are never logged. A short SHA-256 fingerprint identifies a key in
// log lines.
package cloud
