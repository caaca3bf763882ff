// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/chatflow/internal/cloud"
	"github.com/jeranaias/chatflow/internal/model"
)

// defaultTitle is used when the first user message yields no title text.
const defaultTitle = "New Chat"

var (
	// ErrNoModel is returned by Send and Regenerate when no model is selected.
	ErrNoModel = errors.New("no model selected")

	// ErrMessageNotFound is returned when a message id is not in the
	// conversation or does not have the required role.
	ErrMessageNotFound = errors.New("message not found")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Streamer sends a chat completion and delivers the reply incrementally.
type Streamer interface {
	SendChatMessage(ctx context.Context, messages []cloud.ChatMessage, model, credential string, onChunk func(string)) error
}

// Persister is the subset of the chat store the controller writes to.
type Persister interface {
	GetChatByID(id string) (model.Chat, error)
	SaveChat(chat model.Chat) error
	SetChatModel(id, modelID string) error
	SaveSelectedModel(modelID string) error
}

// =============================================================================
// STATE
// =============================================================================

// State is the turn state of a conversation.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

// Config holds configuration for the controller.
type Config struct {
	// Credential is the API key sent with every turn.
	Credential string

	// DebounceDelay is the quiet period before a save (default: 500ms)
	DebounceDelay time.Duration

	// ModelSwitchGuard suppresses saves right after a model switch (default: 500ms)
	ModelSwitchGuard time.Duration

	// Temporary conversations are never persisted.
	Temporary bool
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:    500 * time.Millisecond,
		ModelSwitchGuard: 500 * time.Millisecond,
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller advances the active conversation and persists it.
type Controller struct {
	mu sync.Mutex

	streamer  Streamer
	store     Persister
	notifier  Notifier
	scheduler Scheduler
	logger    *slog.Logger
	now       func() int64
	cfg       Config

	// Conversation
	messages  []model.Message
	modelID   string
	chatID    string
	temporary bool

	// Turn tracking
	state      State
	generation uint64
	cancelTurn context.CancelFunc

	// Persistence
	persist    *Debouncer
	switching  bool
	guardTimer Timer

	// Hooks, called without the lock held
	onPersist func(chatID string)
	onChange  func()
}

// NewController creates a controller with an empty conversation.
func NewController(streamer Streamer, store Persister, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}
	if cfg.ModelSwitchGuard <= 0 {
		cfg.ModelSwitchGuard = def.ModelSwitchGuard
	}

	c := &Controller{
		streamer:  streamer,
		store:     store,
		notifier:  discardNotifier{},
		scheduler: RealScheduler{},
		logger:    slog.Default(),
		now:       model.NowMillis,
		cfg:       cfg,
		messages:  []model.Message{},
		temporary: cfg.Temporary,
	}
	c.persist = NewDebouncer(c.scheduler, cfg.DebounceDelay, c.persistNow)
	return c
}

// WithNotifier sets the receiver of user-facing notices.
func (c *Controller) WithNotifier(n Notifier) *Controller {
	if n != nil {
		c.notifier = n
	}
	return c
}

// WithScheduler replaces the timer source for the debounce and the model
// switch guard.
func (c *Controller) WithScheduler(s Scheduler) *Controller {
	if s != nil {
		c.scheduler = s
		c.persist = NewDebouncer(s, c.cfg.DebounceDelay, c.persistNow)
	}
	return c
}

// WithLogger sets the logger.
func (c *Controller) WithLogger(logger *slog.Logger) *Controller {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithClock replaces the millisecond clock used for chat timestamps.
func (c *Controller) WithClock(now func() int64) *Controller {
	if now != nil {
		c.now = now
	}
	return c
}

// OnPersist registers fn to run after every save with the saved chat id, or
// with "" when an emptied conversation drops its id.
func (c *Controller) OnPersist(fn func(chatID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPersist = fn
}

// OnChange registers fn to run after every change to the message list.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Messages returns a copy of the conversation.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneMessages(c.messages)
}

// State returns the turn state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsBusy reports whether a turn is in flight.
func (c *Controller) IsBusy() bool {
	return c.State() != StateIdle
}

// Model returns the selected model id.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelID
}

// ChatID returns the id of the conversation, or "" before its first save.
func (c *Controller) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// IsTemporary reports whether the conversation is kept out of the store.
func (c *Controller) IsTemporary() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.temporary
}

// SetCredential changes the API key used by later turns.
func (c *Controller) SetCredential(credential string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Credential = credential
}

// SetTemporary switches persistence off or back on. Turning it off schedules
// a save of the current conversation.
func (c *Controller) SetTemporary(on bool) {
	c.mu.Lock()
	changed := c.temporary != on
	c.temporary = on
	c.mu.Unlock()

	if !changed {
		return
	}
	if on {
		c.persist.Cancel()
	} else {
		c.persist.Trigger()
	}
}

// SetModel selects a model without the switch guard or notices. It is used
// to restore the last selection at start-up.
func (c *Controller) SetModel(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modelID = modelID
}

// =============================================================================
// TURNS
// =============================================================================

// turn carries what a running turn needs after the lock is released.
type turn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	history    []cloud.ChatMessage
	modelID    string
	credential string
	snapshot   []model.Message
}

// Send appends a user turn built from draft and attachments, then streams the
// reply. It is a no-op while a turn is in flight or when there is nothing to
// send. On failure the conversation is rolled back, a notice is raised and
// the error is returned.
func (c *Controller) Send(ctx context.Context, draft string, attachments []string) error {
	draft = strings.TrimSpace(draft)

	c.mu.Lock()
	if c.state != StateIdle || (draft == "" && len(attachments) == 0) {
		c.mu.Unlock()
		return nil
	}
	if c.modelID == "" {
		c.mu.Unlock()
		c.notifier.Notify(errorNotice("Error", "No model selected. Please select a model."))
		return ErrNoModel
	}

	snapshot := model.CloneMessages(c.messages)
	c.messages = append(model.CloneMessages(c.messages), model.NewUserMessage(BuildContent(draft, attachments)))
	t := c.beginTurnLocked(ctx, snapshot)
	c.mu.Unlock()

	c.changed()
	return c.runTurn(t, false)
}

// Regenerate replaces the assistant message messageID, and everything after
// it, with a fresh reply to the preceding history.
func (c *Controller) Regenerate(ctx context.Context, messageID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}

	idx := indexMessage(c.messages, messageID)
	if idx < 0 || !c.messages[idx].IsAssistant() {
		c.mu.Unlock()
		return ErrMessageNotFound
	}
	if c.modelID == "" {
		c.mu.Unlock()
		c.notifier.Notify(errorNotice("Error", "No model selected. Please select a model."))
		return ErrNoModel
	}

	truncated := model.CloneMessages(c.messages[:idx])
	if !hasUserMessage(truncated) {
		c.mu.Unlock()
		c.notifier.Notify(infoNotice("Nothing to regenerate", "Cannot regenerate: no user message found"))
		return nil
	}

	snapshot := model.CloneMessages(c.messages)
	c.messages = truncated
	t := c.beginTurnLocked(ctx, snapshot)
	c.mu.Unlock()

	c.changed()
	return c.runTurn(t, true)
}

// beginTurnLocked moves to Sending and captures the turn's inputs.
func (c *Controller) beginTurnLocked(ctx context.Context, snapshot []model.Message) *turn {
	c.state = StateSending
	c.persist.Cancel()

	turnCtx, cancel := context.WithCancel(ctx)
	c.cancelTurn = cancel
	return &turn{
		ctx:        turnCtx,
		cancel:     cancel,
		generation: c.generation,
		history:    cloud.ToChatMessages(c.messages),
		modelID:    c.modelID,
		credential: c.cfg.Credential,
		snapshot:   snapshot,
	}
}

// runTurn streams the reply into the tail of the conversation. The first
// fragment appends the assistant message; later fragments replace it with
// the grown content.
func (c *Controller) runTurn(t *turn, regenerate bool) error {
	defer t.cancel()

	var content strings.Builder
	started := false

	err := c.streamer.SendChatMessage(t.ctx, t.history, t.modelID, t.credential, func(fragment string) {
		c.mu.Lock()
		if c.generation != t.generation {
			// Conversation was replaced; drop late fragments
			c.mu.Unlock()
			return
		}
		content.WriteString(fragment)
		if !started {
			started = true
			c.state = StateStreaming
			c.messages = append(c.messages, model.NewAssistantMessage(t.modelID))
		}
		tail := c.messages[len(c.messages)-1]
		tail.Content = content.String()
		c.messages[len(c.messages)-1] = tail
		c.mu.Unlock()

		c.changed()
	})

	c.mu.Lock()
	if c.generation != t.generation {
		c.mu.Unlock()
		if err == nil {
			err = context.Canceled
		}
		return err
	}
	c.state = StateIdle
	c.cancelTurn = nil
	if err != nil {
		c.messages = t.snapshot
	}
	c.mu.Unlock()

	c.persist.Trigger()
	c.changed()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("turn cancelled", "model", t.modelID)
		} else {
			c.logger.Warn("turn failed", "model", t.modelID, "error", err)
			c.notifier.Notify(Classify(err, t.modelID))
		}
		return err
	}
	if regenerate {
		c.notifier.Notify(infoNotice("Regenerated", "Response has been regenerated"))
	}
	return nil
}

// abortTurnLocked cancels the in-flight turn and invalidates its callbacks.
func (c *Controller) abortTurnLocked() {
	c.generation++
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	c.state = StateIdle
}

// =============================================================================
// CONVERSATION MUTATIONS
// =============================================================================

// SetFeedback toggles the rating of an assistant message: setting the
// current value clears it, setting the other value replaces it.
func (c *Controller) SetFeedback(messageID string, fb model.Feedback) error {
	if !fb.Valid() {
		return fmt.Errorf("invalid feedback %q", fb)
	}

	c.mu.Lock()
	idx := indexMessage(c.messages, messageID)
	if idx < 0 || !c.messages[idx].IsAssistant() {
		c.mu.Unlock()
		return ErrMessageNotFound
	}
	msg := c.messages[idx]
	if msg.Feedback == fb {
		msg.Feedback = model.FeedbackNone
	} else {
		msg.Feedback = fb
	}
	c.messages[idx] = msg
	c.mu.Unlock()

	c.persist.Trigger()
	c.changed()
	return nil
}

// SwitchModel selects modelID for later turns. Selecting the current model,
// or switching while a previous switch is still settling, is a no-op. The
// choice is remembered, the saved chat is rewritten immediately, and the
// debounced save resumes once the guard delay has passed. It reports whether
// the switch happened.
func (c *Controller) SwitchModel(modelID, displayName string) bool {
	c.mu.Lock()
	if modelID == "" || modelID == c.modelID || c.switching {
		c.mu.Unlock()
		return false
	}
	c.switching = true
	c.modelID = modelID
	chatID := c.chatID
	temporary := c.temporary
	c.guardTimer = c.scheduler.AfterFunc(c.cfg.ModelSwitchGuard, c.releaseGuard)
	c.mu.Unlock()

	c.persist.Cancel()

	if err := c.store.SaveSelectedModel(modelID); err != nil {
		c.logger.Warn("failed to save selected model", "model", modelID, "error", err)
	}
	if chatID != "" && !temporary {
		if err := c.store.SetChatModel(chatID, modelID); err != nil {
			c.logger.Debug("chat model not updated", "chat", chatID, "error", err)
		}
	}

	if displayName == "" {
		displayName = modelID
	}
	c.notifier.Notify(infoNotice("Model Changed", "Switched to "+displayName))
	return true
}

func (c *Controller) releaseGuard() {
	c.mu.Lock()
	c.switching = false
	c.guardTimer = nil
	c.mu.Unlock()

	c.persist.Trigger()
}

// Load replaces the conversation with a saved chat. An in-flight turn is
// cancelled and a pending save is dropped.
func (c *Controller) Load(chat model.Chat) {
	c.mu.Lock()
	c.abortTurnLocked()
	c.messages = model.CloneMessages(chat.Messages)
	if c.messages == nil {
		c.messages = []model.Message{}
	}
	c.chatID = chat.ID
	if chat.CurrentModel != "" {
		c.modelID = chat.CurrentModel
	}
	c.temporary = false
	c.mu.Unlock()

	c.persist.Cancel()
	c.changed()
}

// Reset starts a new, empty conversation with the same model.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.abortTurnLocked()
	c.messages = []model.Message{}
	c.chatID = ""
	c.mu.Unlock()

	c.persist.Cancel()
	c.changed()
}

// Flush performs a pending save immediately.
func (c *Controller) Flush() {
	c.persist.Flush()
}

// Close cancels the in-flight turn and all timers. Pending saves are dropped;
// call Flush first to keep them.
func (c *Controller) Close() {
	c.mu.Lock()
	c.abortTurnLocked()
	if c.guardTimer != nil {
		c.guardTimer.Stop()
		c.guardTimer = nil
	}
	c.switching = false
	c.mu.Unlock()

	c.persist.Cancel()
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persistNow saves the conversation if it is settled and worth saving.
func (c *Controller) persistNow() {
	c.mu.Lock()
	if c.state != StateIdle || c.switching || c.temporary {
		c.mu.Unlock()
		return
	}

	if len(c.messages) == 0 {
		cleared := c.chatID != ""
		c.chatID = ""
		hook := c.onPersist
		c.mu.Unlock()
		if cleared && hook != nil {
			hook("")
		}
		return
	}

	first, ok := firstUserMessage(c.messages)
	if !ok || c.modelID == "" {
		c.mu.Unlock()
		return
	}

	if c.chatID == "" {
		c.chatID = model.NewChatID()
	}
	now := c.now()
	chat := model.Chat{
		ID:           c.chatID,
		Title:        DeriveTitle(first.Content),
		Messages:     model.CloneMessages(c.messages),
		CurrentModel: c.modelID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if chat.Title == "" {
		chat.Title = defaultTitle
	}
	if existing, err := c.store.GetChatByID(chat.ID); err == nil {
		chat.Title = existing.Title
		chat.CreatedAt = existing.CreatedAt
		chat.FolderID = existing.FolderID
		chat.Tags = existing.Tags
		chat.Touch(existing.UpdatedAt)
	}

	err := c.store.SaveChat(chat)
	hook := c.onPersist
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("failed to save chat", "chat", chat.ID, "error", err)
		c.notifier.Notify(errorNotice("Save Failed", "The conversation could not be saved: "+err.Error()))
		return
	}
	c.logger.Debug("chat saved", "chat", chat.ID, "messages", len(chat.Messages))
	if hook != nil {
		hook(chat.ID)
	}
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// BuildContent appends attachment markup to the draft text.
func BuildContent(draft string, attachments []string) string {
	if len(attachments) == 0 {
		return draft
	}
	parts := make([]string, len(attachments))
	for i, a := range attachments {
		parts[i] = fmt.Sprintf("\n![Image %d](%s)", i+1, a)
	}
	return draft + strings.Join(parts, "\n")
}

func indexMessage(msgs []model.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func hasUserMessage(msgs []model.Message) bool {
	_, ok := firstUserMessage(msgs)
	return ok
}

func firstUserMessage(msgs []model.Message) (model.Message, bool) {
	for _, m := range msgs {
		if m.IsUser() {
			return m, true
		}
	}
	return model.Message{}, false
}
