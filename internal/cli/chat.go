// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatflow/internal/cloud"
	"github.com/jeranaias/chatflow/internal/config"
	"github.com/jeranaias/chatflow/internal/model"
	"github.com/jeranaias/chatflow/internal/session"
	"github.com/jeranaias/chatflow/internal/storage"
	"github.com/jeranaias/chatflow/internal/viewstate"
)

var (
	chatFlagID        string
	chatFlagModel     string
	chatFlagKey       string
	chatFlagTemporary bool
	chatFlagResume    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat.

Replies stream as they arrive and the conversation is saved automatically a
moment after it settles. Type /help for commands. Ctrl+C cancels a reply in
progress; Ctrl+D or /quit leaves.

Examples:
  chatflow chat
  chatflow chat --resume
  chatflow chat --chat 3f2a
  chatflow chat --model anthropic/claude-3.5-sonnet --key Secondary
  chatflow chat --temporary`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatFlagID, "chat", "c", "", "open this chat (id, id prefix or ?chat= location)")
	chatCmd.Flags().StringVarP(&chatFlagModel, "model", "m", "", "model for new turns")
	chatCmd.Flags().StringVarP(&chatFlagKey, "key", "k", "", "API key name")
	chatCmd.Flags().BoolVarP(&chatFlagTemporary, "temporary", "t", false, "do not save this conversation")
	chatCmd.Flags().BoolVarP(&chatFlagResume, "resume", "r", false, "reopen the current chat")
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := requireTTY(); err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}

	location := ""
	switch {
	case chatFlagID != "":
		id, err := resolveChatID(s.GetChatList(), chatFlagID)
		if err != nil {
			return err
		}
		location = viewstate.ChatLocation(id)
	case chatFlagResume:
		if id := s.GetChatList().CurrentChatID; id != "" {
			location = viewstate.ChatLocation(id)
		}
	}

	key, err := selectKey(chatFlagKey)
	if err != nil {
		return err
	}
	return startChat(cmd.Context(), location, key)
}

// startChat runs the REPL at location with key until the user leaves.
func startChat(ctx context.Context, location string, key config.APIKey) error {
	client := newClient()
	cs := newChatSession(os.Stdout, client, client, store, key, location)
	defer cs.Close()

	if err := cs.Start(ctx, chatFlagModel, chatFlagTemporary); err != nil {
		return err
	}

	input := newLineEditor()
	defer input.Close()
	return cs.Run(ctx, input)
}

// =============================================================================
// LINE EDITING
// =============================================================================

// lineReader reads one line of input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// lineEditor provides input history and line editing for the REPL.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

// newLineEditor creates a line editor with history loaded from the
// configuration directory.
func newLineEditor() *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlash)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(e.historyFile); err == nil {
		_, _ = e.line.ReadHistory(f)
		f.Close()
	}
	return e
}

// ReadInput reads a line, recording non-empty input in the history.
func (e *lineEditor) ReadInput(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (owner read/write only) and restores the terminal.
func (e *lineEditor) Close() {
	if err := os.MkdirAll(filepath.Dir(e.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = e.line.WriteHistory(f)
			f.Close()
		}
	}
	e.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatSession couples a controller with the synchronizer, store and terminal.
type chatSession struct {
	out    io.Writer
	client *cloud.OpenRouterClient
	store  *storage.Store
	ctrl   *session.Controller
	sync   *viewstate.Synchronizer
	md     *markdownRenderer

	mu          sync.Mutex
	key         config.APIKey
	catalogs    []keyCatalog
	attachments []string
	cancelTurn  context.CancelFunc

	detach    func()
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// newChatSession wires a controller and synchronizer over st, starting from
// location. Turns go through streamer; client serves model catalogs.
func newChatSession(out io.Writer, streamer session.Streamer, client *cloud.OpenRouterClient, st *storage.Store, key config.APIKey, location string) *chatSession {
	cs := &chatSession{
		out:    out,
		client: client,
		store:  st,
		key:    key,
	}
	cs.md = newMarkdownRenderer(cfg.UI.Theme, cfg.UI.Markdown, GetTerminalWidth()-4)

	cs.ctrl = session.NewController(&echoStreamer{inner: streamer, session: cs}, st, session.Config{
		Credential:       key.Key,
		DebounceDelay:    cfg.DebounceDelay(),
		ModelSwitchGuard: cfg.ModelSwitchGuard(),
	}).
		WithLogger(logger).
		WithNotifier(session.NotifierFunc(cs.notify))

	cs.sync = viewstate.New(cs.ctrl, st, viewstate.NewHistory(location)).WithLogger(logger)
	cs.ctrl.OnPersist(func(chatID string) {
		if err := cs.sync.Reconcile(viewstate.Event{Kind: viewstate.Persisted, ChatID: chatID}); err != nil {
			logger.Warn("reconcile after save failed", "error", err)
		}
	})
	return cs
}

// Start performs the initial load, picks the model and starts watching the
// store for changes made by other processes.
func (cs *chatSession) Start(ctx context.Context, modelFlag string, temporary bool) error {
	if err := cs.sync.Reconcile(viewstate.Event{Kind: viewstate.InitialLoad}); err != nil {
		return err
	}
	cs.detach = cs.sync.Attach()

	switch {
	case modelFlag != "":
		cs.ctrl.SetModel(modelFlag)
	case cs.ctrl.Model() != "":
		// From the loaded chat
	case cs.store.LoadSelectedModel() != "":
		cs.ctrl.SetModel(cs.store.LoadSelectedModel())
	case cfg.DefaultModel != "":
		cs.ctrl.SetModel(cfg.DefaultModel)
	default:
		cats := cs.fetchCatalogs(ctx)
		for _, c := range cats {
			if c.Key.Name == cs.key.Name && len(c.Catalog.Models) > 0 {
				cs.ctrl.SetModel(c.Catalog.Models[0].ID)
				break
			}
		}
	}
	if temporary {
		cs.ctrl.SetTemporary(true)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	cs.stopWatch = cancel
	cs.watchDone = make(chan struct{})
	go func() {
		defer close(cs.watchDone)
		cs.watchStore(watchCtx)
	}()

	cs.printBanner()
	return nil
}

// watchStore repairs the view when the chat list is changed elsewhere. It
// returns once ctx is done.
func (cs *chatSession) watchStore(ctx context.Context) {
	err := cs.store.Watch(ctx, func() {
		before := cs.ctrl.ChatID()
		if err := cs.sync.Reconcile(viewstate.Event{Kind: viewstate.StorageChanged}); err != nil {
			logger.Warn("reconcile after external change failed", "error", err)
			return
		}
		if before != "" && cs.ctrl.ChatID() == "" {
			fmt.Fprintf(cs.out, "\n%s\n", WarningStyle.Render("This chat was removed elsewhere; starting a new one."))
		}
	})
	switch {
	case errors.Is(err, storage.ErrWatchUnsupported):
		logger.Debug("store changes from other processes will not be noticed")
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Warn("store watch stopped", "error", err)
	}
}

// Run reads input until EOF or /quit. Ctrl+C while a reply streams cancels
// the turn; at the prompt it leaves.
func (cs *chatSession) Run(ctx context.Context, input lineReader) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if cs.cancelCurrent() {
				fmt.Fprintln(cs.out, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		line, err := input.ReadInput(cs.prompt())
		if err != nil {
			// Ctrl+C, Ctrl+D or a closed terminal
			fmt.Fprintln(cs.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			keepGoing, err := cs.handleSlash(ctx, line)
			if err != nil {
				fmt.Fprintf(cs.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}
		cs.send(ctx, line)
	}
}

// send runs one turn, streaming the reply to the terminal.
func (cs *chatSession) send(ctx context.Context, text string) {
	turnCtx := cs.beginTurn(ctx)
	defer cs.endTurn()

	cs.mu.Lock()
	attachments := cs.attachments
	cs.attachments = nil
	cs.mu.Unlock()

	err := cs.ctrl.Send(turnCtx, text, attachments)
	if err != nil {
		logger.Debug("send failed", "error", err)
	}
}

func (cs *chatSession) beginTurn(ctx context.Context) context.Context {
	turnCtx, cancel := context.WithCancel(ctx)
	cs.mu.Lock()
	cs.cancelTurn = cancel
	cs.mu.Unlock()
	return turnCtx
}

func (cs *chatSession) endTurn() {
	cs.mu.Lock()
	if cs.cancelTurn != nil {
		cs.cancelTurn()
		cs.cancelTurn = nil
	}
	cs.mu.Unlock()
}

// cancelCurrent cancels a streaming turn and reports whether one was running.
func (cs *chatSession) cancelCurrent() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.cancelTurn == nil || !cs.ctrl.IsBusy() {
		return false
	}
	cs.cancelTurn()
	cs.cancelTurn = nil
	return true
}

// Close stops the store watch, saves pending changes and releases the
// session. No watch callback runs after Close returns.
func (cs *chatSession) Close() {
	if cs.stopWatch != nil {
		cs.stopWatch()
		<-cs.watchDone
		cs.stopWatch = nil
	}
	if cs.detach != nil {
		cs.detach()
	}
	cs.ctrl.Flush()
	cs.ctrl.Close()
}

// notify prints controller notices.
func (cs *chatSession) notify(n session.Notice) {
	if n.Level == session.LevelError {
		fmt.Fprintf(cs.out, "%s %s\n", ErrorStyle.Render("✗ "+n.Title+":"), n.Description)
		return
	}
	fmt.Fprintf(cs.out, "%s %s\n", InfoStyle.Render("• "+n.Title+":"), DimStyle.Render(n.Description))
}

func (cs *chatSession) prompt() string {
	var b strings.Builder
	if cs.ctrl.IsTemporary() {
		b.WriteString("[temp] ")
	}
	if id := cs.ctrl.ChatID(); id != "" {
		b.WriteString(shortID(id) + " ")
	}
	b.WriteString("› ")
	// liner measures the prompt itself, so it must stay free of escapes
	return b.String()
}

func (cs *chatSession) printBanner() {
	fmt.Fprintln(cs.out, TitleStyle.Render("chatflow")+" "+DimStyle.Render(Version))
	fmt.Fprintln(cs.out, RenderField("Key", cs.currentKey().String()))
	m := cs.ctrl.Model()
	if m == "" {
		m = WarningStyle.Render("none (use /models and /model)")
	}
	fmt.Fprintln(cs.out, RenderField("Model", m))
	if cs.ctrl.IsTemporary() {
		fmt.Fprintln(cs.out, temporaryStyle.Render("Temporary chat: nothing will be saved"))
	}
	if msgs := cs.ctrl.Messages(); len(msgs) > 0 {
		fmt.Fprintln(cs.out, RenderSeparator(GetTerminalWidth()-2))
		printMessages(cs.out, msgs, cs.md)
	}
	fmt.Fprintln(cs.out, DimStyle.Render("Type /help for commands."))
}

func (cs *chatSession) currentKey() config.APIKey {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.key
}

// fetchCatalogs returns the model catalogs of every key, fetching them once.
func (cs *chatSession) fetchCatalogs(ctx context.Context) []keyCatalog {
	cs.mu.Lock()
	cached := cs.catalogs
	cs.mu.Unlock()
	if cached != nil {
		return cached
	}

	keys := creds.Keys
	if len(keys) == 0 {
		keys = []config.APIKey{cs.currentKey()}
	}
	results := fetchCatalogs(ctx, cs.client, keys, creds.Models)

	cs.mu.Lock()
	cs.catalogs = results
	cs.mu.Unlock()
	return results
}

// =============================================================================
// STREAM ECHO
// =============================================================================

// echoStreamer prints reply fragments as they arrive and forwards them to the
// controller.
type echoStreamer struct {
	inner   session.Streamer
	session *chatSession
}

// SendChatMessage implements session.Streamer.
func (e *echoStreamer) SendChatMessage(ctx context.Context, messages []cloud.ChatMessage, modelID, credential string, onChunk func(string)) error {
	out := e.session.out
	started := false
	err := e.inner.SendChatMessage(ctx, messages, modelID, credential, func(fragment string) {
		if !started {
			started = true
			fmt.Fprintf(out, "%s %s\n", assistantLabelStyle.Render(model.RoleAssistant.DisplayName()), modelTagStyle.Render(modelID))
		}
		fmt.Fprint(out, fragment)
		onChunk(fragment)
	})
	if started {
		fmt.Fprint(out, "\n\n")
	}
	return err
}
