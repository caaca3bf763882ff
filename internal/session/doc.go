// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session advances one conversation a turn at a time and decides
// when to persist it.
//
// A Controller owns the in-memory message list of the active conversation.
// It appends the user turn optimistically, streams the assistant reply into
// the list fragment by fragment, rolls back on failure, and saves the
// conversation through a trailing debounce once it is idle.
//
// # Key Types
//
//   - Controller: turn state machine (Idle, Sending, Streaming)
//   - Streamer: chat-completion transport (implemented by cloud.OpenRouterClient)
//   - Persister: chat store (implemented by storage.Store)
//   - Scheduler, Debouncer: cancellable delayed work
//   - Notice, Notifier: user-facing messages
//
// # Usage
//
//	ctl := session.NewController(client, store, session.DefaultConfig()).
//	    WithNotifier(session.NotifierFunc(show))
//	ctl.SwitchModel("openai/gpt-4o", "GPT-4o")
//	err := ctl.Send(ctx, "Hello", nil)
//
// # Concurrency
//
// All methods are safe for concurrent use. At most one turn is in flight;
// Send and Regenerate while busy are no-ops. Load and Reset cancel the
// in-flight turn and discard its late fragments.
package session
