// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package viewstate keeps the active conversation, the store's current chat
// pointer and the location's chat parameter in agreement.
package viewstate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jeranaias/chatflow/internal/model"
)

// ErrNoChat is returned by operations that need an active chat.
var ErrNoChat = errors.New("no active chat")

// EventKind identifies what prompted a reconciliation.
type EventKind int

const (
	// InitialLoad resolves the starting location.
	InitialLoad EventKind = iota
	// Persisted follows a save by the session; ChatID is the saved id or "".
	Persisted
	// Navigated follows a back/forward move.
	Navigated
	// Select opens ChatID.
	Select
	// Deleted reports that ChatID was removed from the store.
	Deleted
	// Archived reports that ChatID was archived.
	Archived
	// NewChat starts an empty conversation.
	NewChat
	// StorageChanged reports a write to the store by someone else.
	StorageChanged
)

var kindNames = [...]string{
	InitialLoad:    "initial-load",
	Persisted:      "persisted",
	Navigated:      "navigated",
	Select:         "select",
	Deleted:        "deleted",
	Archived:       "archived",
	NewChat:        "new-chat",
	StorageChanged: "storage-changed",
}

// String returns the event kind name.
func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one input to Reconcile.
type Event struct {
	Kind   EventKind
	ChatID string
}

// Session is the in-memory conversation.
type Session interface {
	ChatID() string
	Load(chat model.Chat)
	Reset()
}

// Store is the persisted side of the triangle.
type Store interface {
	GetChatByID(id string) (model.Chat, error)
	GetChatList() model.ChatList
	SetCurrentChatID(id string) error
}

// Synchronizer applies events to the session and then converges the location
// and the store on the session's chat.
type Synchronizer struct {
	mu      sync.Mutex
	session Session
	store   Store
	history *History
	logger  *slog.Logger

	// session chat as last seen in the active list
	activeID string
}

// New creates a synchronizer over the three mirrors.
func New(session Session, store Store, history *History) *Synchronizer {
	return &Synchronizer{
		session: session,
		store:   store,
		history: history,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger.
func (s *Synchronizer) WithLogger(logger *slog.Logger) *Synchronizer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// History returns the location history.
func (s *Synchronizer) History() *History {
	return s.history
}

// Attach reconciles on every back/forward move until the returned function
// is called.
func (s *Synchronizer) Attach() func() {
	return s.history.Subscribe(func(string) {
		if err := s.Reconcile(Event{Kind: Navigated}); err != nil {
			s.logger.Warn("navigation reconcile failed", "error", err)
		}
	})
}

// Reconcile applies ev and converges the mirrors.
func (s *Synchronizer) Reconcile(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	push := false
	switch ev.Kind {
	case InitialLoad:
		id := s.history.ChatID()
		if id == "" || !s.open(id) {
			s.session.Reset()
		}

	case Persisted:
		// Session already holds the saved chat

	case Navigated:
		id := s.history.ChatID()
		current := s.session.ChatID()
		switch {
		case id == "" && current != "":
			s.session.Reset()
		case id != "" && id != current:
			if !s.open(id) {
				s.session.Reset()
			}
		}

	case Select:
		if ev.ChatID != s.session.ChatID() {
			chat, err := s.store.GetChatByID(ev.ChatID)
			if err != nil {
				return fmt.Errorf("select chat %s: %w", ev.ChatID, err)
			}
			s.session.Load(chat)
		}
		push = true

	case Deleted, Archived:
		current := s.session.ChatID()
		if current != "" && (current == ev.ChatID || !s.exists(current)) {
			s.session.Reset()
		}

	case NewChat:
		s.session.Reset()
		push = true

	case StorageChanged:
		current := s.session.ChatID()
		if current == "" {
			break
		}
		list := s.store.GetChatList()
		switch {
		case list.Find(current) == nil:
			s.logger.Info("active chat removed externally", "chat", current)
			s.session.Reset()
		case current == s.activeID && list.IndexActive(current) < 0:
			// Saving it again would quietly restore it
			s.logger.Info("active chat archived externally", "chat", current)
			s.session.Reset()
		}

	default:
		return fmt.Errorf("unknown event %v", ev.Kind)
	}

	return s.converge(ev.Kind, push)
}

// open loads id into the session and reports whether it resolved.
func (s *Synchronizer) open(id string) bool {
	chat, err := s.store.GetChatByID(id)
	if err != nil {
		s.logger.Debug("chat reference not resolvable", "chat", id, "error", err)
		return false
	}
	s.session.Load(chat)
	return true
}

func (s *Synchronizer) exists(id string) bool {
	_, err := s.store.GetChatByID(id)
	return err == nil
}

// converge makes the location and the store's current pointer follow the
// session. Only an active chat may be current.
func (s *Synchronizer) converge(kind EventKind, push bool) error {
	id := s.session.ChatID()

	current := s.history.Location()
	if want := WithChat(current, id); want != current {
		if push {
			s.history.Push(want)
		} else {
			s.history.Replace(want)
		}
	}

	list := s.store.GetChatList()
	want := ""
	if id != "" && list.IndexActive(id) >= 0 {
		want = id
	}
	s.activeID = want
	if list.CurrentChatID == want {
		return nil
	}
	if err := s.store.SetCurrentChatID(want); err != nil {
		return fmt.Errorf("set current chat: %w", err)
	}
	s.logger.Debug("view state converged", "event", kind.String(), "chat", id, "current", want)
	return nil
}

// ShareLocation returns the location referencing the session's chat.
func (s *Synchronizer) ShareLocation() (string, error) {
	id := s.session.ChatID()
	if id == "" {
		return "", ErrNoChat
	}
	return ChatLocation(id), nil
}
