// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewstate

import (
	"net/url"
	"sync"
)

// ChatParam is the query parameter naming the active chat.
const ChatParam = "chat"

// ChatLocation returns the location referencing chatID, or "" for none.
func ChatLocation(chatID string) string {
	return WithChat("", chatID)
}

// ChatIDFrom extracts the chat id from a location such as "?chat=abc" or
// "https://host/?chat=abc". Unparseable locations carry no chat.
func ChatIDFrom(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get(ChatParam)
}

// WithChat returns location with its chat parameter set to chatID, or removed
// when chatID is empty. Other parameters are kept.
func WithChat(location, chatID string) string {
	u, err := url.Parse(location)
	if err != nil {
		u = &url.URL{}
	}
	q := u.Query()
	if chatID == "" {
		q.Del(ChatParam)
	} else {
		q.Set(ChatParam, chatID)
	}
	u.RawQuery = q.Encode()
	if u.RawQuery == "" {
		u.ForceQuery = false
	}
	return u.String()
}

// =============================================================================
// HISTORY
// =============================================================================

// History is a back/forward stack of locations. Push and Replace are silent;
// Back and Forward notify subscribers with the new location.
type History struct {
	mu        sync.Mutex
	entries   []string
	index     int
	nextSub   int
	listeners map[int]func(location string)
}

// NewHistory creates a history positioned at initial.
func NewHistory(initial string) *History {
	return &History{
		entries:   []string{initial},
		listeners: make(map[int]func(string)),
	}
}

// Location returns the current location.
func (h *History) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// ChatID returns the chat referenced by the current location.
func (h *History) ChatID() string {
	return ChatIDFrom(h.Location())
}

// Push adds a new entry after the current one, dropping any forward entries.
func (h *History) Push(location string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], location)
	h.index++
}

// Replace overwrites the current entry.
func (h *History) Replace(location string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = location
}

// Back moves one entry back. It reports false at the oldest entry.
func (h *History) Back() bool {
	return h.move(-1)
}

// Forward moves one entry forward. It reports false at the newest entry.
func (h *History) Forward() bool {
	return h.move(1)
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Subscribe registers fn for back/forward navigation and returns a function
// that removes it.
func (h *History) Subscribe(fn func(location string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

func (h *History) move(delta int) bool {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = next
	location := h.entries[next]
	listeners := make([]func(string), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(location)
	}
	return true
}
