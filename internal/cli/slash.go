// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/chatflow/internal/export"
	"github.com/jeranaias/chatflow/internal/model"
	"github.com/jeranaias/chatflow/internal/session"
	"github.com/jeranaias/chatflow/internal/storage"
	"github.com/jeranaias/chatflow/internal/viewstate"
)

// errQuit ends the REPL.
var errQuit = errors.New("quit")

// errNotSaved is returned by commands that need a saved chat.
var errNotSaved = errors.New("this chat has not been saved yet")

// slashCommand is one REPL command.
type slashCommand struct {
	name    string
	aliases []string
	usage   string
	help    string
	run     func(cs *chatSession, ctx context.Context, args []string) error
}

var slashCommands []slashCommand

func init() {
	slashCommands = []slashCommand{
		{name: "new", usage: "/new", help: "start a new chat", run: (*chatSession).cmdNew},
		{name: "open", usage: "/open ID", help: "open a saved chat", run: (*chatSession).cmdOpen},
		{name: "chats", aliases: []string{"ls"}, usage: "/chats [QUERY]", help: "list or search saved chats", run: (*chatSession).cmdChats},
		{name: "back", usage: "/back", help: "go to the previous chat", run: (*chatSession).cmdBack},
		{name: "forward", usage: "/forward", help: "go to the next chat", run: (*chatSession).cmdForward},
		{name: "model", usage: "/model [ID]", help: "show or switch the model", run: (*chatSession).cmdModel},
		{name: "models", usage: "/models", help: "list models for the current key", run: (*chatSession).cmdModels},
		{name: "key", usage: "/key [NAME]", help: "show or switch the API key", run: (*chatSession).cmdKey},
		{name: "regen", aliases: []string{"regenerate"}, usage: "/regen [N]", help: "regenerate the last reply, or reply N", run: (*chatSession).cmdRegen},
		{name: "like", usage: "/like [N]", help: "like the last reply, or reply N", run: (*chatSession).cmdLike},
		{name: "dislike", usage: "/dislike [N]", help: "dislike the last reply, or reply N", run: (*chatSession).cmdDislike},
		{name: "attach", usage: "/attach [URL]", help: "attach an image URL to the next message", run: (*chatSession).cmdAttach},
		{name: "rename", usage: "/rename TITLE", help: "rename this chat", run: (*chatSession).cmdRename},
		{name: "archive", usage: "/archive", help: "archive this chat", run: (*chatSession).cmdArchive},
		{name: "delete", usage: "/delete", help: "delete this chat", run: (*chatSession).cmdDelete},
		{name: "folder", usage: "/folder [NAME|-]", help: "file this chat in a folder (- removes it)", run: (*chatSession).cmdFolder},
		{name: "tag", usage: "/tag [TAG|-TAG]", help: "show, add or remove tags", run: (*chatSession).cmdTag},
		{name: "export", usage: "/export [md|json|html] [DIR]", help: "export this chat", run: (*chatSession).cmdExport},
		{name: "share", usage: "/share", help: "print the chat location and a transcript", run: (*chatSession).cmdShare},
		{name: "temp", aliases: []string{"temporary"}, usage: "/temp", help: "toggle saving for this chat", run: (*chatSession).cmdTemp},
		{name: "history", usage: "/history", help: "print the conversation", run: (*chatSession).cmdHistory},
		{name: "help", aliases: []string{"?"}, usage: "/help", help: "show this help", run: (*chatSession).cmdHelp},
		{name: "quit", aliases: []string{"exit", "q"}, usage: "/quit", help: "leave", run: func(*chatSession, context.Context, []string) error { return errQuit }},
	}
}

// lookupSlash finds a command by name or alias.
func lookupSlash(name string) (slashCommand, bool) {
	name = strings.ToLower(name)
	for _, c := range slashCommands {
		if c.name == name {
			return c, true
		}
		for _, a := range c.aliases {
			if a == name {
				return c, true
			}
		}
	}
	return slashCommand{}, false
}

// completeSlash completes command names for the line editor.
func completeSlash(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.ContainsRune(line, ' ') {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix("/"+c.name, line) {
			out = append(out, "/"+c.name)
		}
	}
	return out
}

// handleSlash runs a slash command and reports whether the REPL continues.
func (cs *chatSession) handleSlash(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return true, nil
	}
	cmd, ok := lookupSlash(fields[0])
	if !ok {
		return true, fmt.Errorf("unknown command /%s (try /help)", fields[0])
	}
	err := cmd.run(cs, ctx, fields[1:])
	if errors.Is(err, errQuit) {
		return false, nil
	}
	return true, err
}

// =============================================================================
// NAVIGATION
// =============================================================================

func (cs *chatSession) cmdNew(ctx context.Context, args []string) error {
	cs.ctrl.Flush()
	if err := cs.sync.Reconcile(viewstate.Event{Kind: viewstate.NewChat}); err != nil {
		return err
	}
	fmt.Fprintln(cs.out, SuccessStyle.Render("New chat"))
	return nil
}

func (cs *chatSession) cmdOpen(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /open ID")
	}
	id, err := resolveChatID(cs.store.GetChatList(), args[0])
	if err != nil {
		return err
	}
	cs.ctrl.Flush()
	if err := cs.sync.Reconcile(viewstate.Event{Kind: viewstate.Select, ChatID: id}); err != nil {
		return err
	}
	cs.printCurrent()
	return nil
}

func (cs *chatSession) cmdChats(ctx context.Context, args []string) error {
	list := cs.store.GetChatList()
	if len(args) > 0 {
		matches := cs.store.SearchChats(strings.Join(args, " "), false)
		list.Chats = matches
	}
	rows := buildRows(list, true, false)
	if len(rows) == 0 {
		fmt.Fprintln(cs.out, "No chats found.")
		return nil
	}
	for i := range rows {
		rows[i].Current = rows[i].Chat.ID == cs.ctrl.ChatID()
	}
	printChatTable(cs.out, rows, GetTerminalWidth())
	return nil
}

func (cs *chatSession) cmdBack(ctx context.Context, args []string) error {
	cs.ctrl.Flush()
	if !cs.sync.History().Back() {
		fmt.Fprintln(cs.out, DimStyle.Render("Nothing to go back to."))
		return nil
	}
	cs.printCurrent()
	return nil
}

func (cs *chatSession) cmdForward(ctx context.Context, args []string) error {
	cs.ctrl.Flush()
	if !cs.sync.History().Forward() {
		fmt.Fprintln(cs.out, DimStyle.Render("Nothing to go forward to."))
		return nil
	}
	cs.printCurrent()
	return nil
}

// printCurrent shows which chat is open and its messages.
func (cs *chatSession) printCurrent() {
	id := cs.ctrl.ChatID()
	if id == "" {
		fmt.Fprintln(cs.out, SuccessStyle.Render("New chat"))
		return
	}
	title := shortID(id)
	if chat, err := cs.store.GetChatByID(id); err == nil {
		title = chat.Title
	}
	fmt.Fprintln(cs.out, TitleStyle.Render(title))
	printMessages(cs.out, cs.ctrl.Messages(), cs.md)
}

// =============================================================================
// MODELS AND KEYS
// =============================================================================

func (cs *chatSession) cmdModel(ctx context.Context, args []string) error {
	if len(args) == 0 {
		m := cs.ctrl.Model()
		if m == "" {
			m = "none"
		}
		fmt.Fprintln(cs.out, RenderField("Model", m))
		return nil
	}

	id := args[0]
	display := id
	cs.mu.Lock()
	cached := cs.catalogs
	cs.mu.Unlock()
	if cached != nil {
		info, ok := catalogIndex(cached)[id]
		if !ok {
			fmt.Fprintf(cs.out, "%s %s is not in any fetched catalog\n", RenderStatus("warn"), id)
		} else {
			display = info.DisplayName()
		}
	}

	if !cs.ctrl.SwitchModel(id, display) {
		if cs.ctrl.Model() == id {
			fmt.Fprintf(cs.out, "Already using %s\n", id)
			return nil
		}
		return fmt.Errorf("a model switch is still settling; try again in a moment")
	}
	return nil
}

func (cs *chatSession) cmdModels(ctx context.Context, args []string) error {
	current := cs.currentKey()
	for _, r := range cs.fetchCatalogs(ctx) {
		if r.Key.Name == current.Name {
			printCatalog(cs.out, r, false)
		}
	}
	fmt.Fprintln(cs.out, RenderField("Current", cs.ctrl.Model()))
	return nil
}

func (cs *chatSession) cmdKey(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(cs.out, RenderField("Key", cs.currentKey().String()))
		if names := creds.Names(); len(names) > 1 {
			fmt.Fprintln(cs.out, RenderField("Available", strings.Join(names, ", ")))
		}
		return nil
	}
	k, err := creds.Key(strings.Join(args, " "))
	if err != nil {
		return err
	}
	cs.mu.Lock()
	cs.key = k
	cs.mu.Unlock()
	cs.ctrl.SetCredential(k.Key)
	fmt.Fprintf(cs.out, "%s Using key %s\n", RenderStatus("ok"), k.String())
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// assistantTarget returns the assistant message numbered by args[0] (1-based,
// as shown by /history), or the last assistant message.
func (cs *chatSession) assistantTarget(args []string) (model.Message, error) {
	msgs := cs.ctrl.Messages()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(msgs) {
			return model.Message{}, fmt.Errorf("no message %s", args[0])
		}
		if !msgs[n-1].IsAssistant() {
			return model.Message{}, fmt.Errorf("message %d is not a reply", n)
		}
		return msgs[n-1], nil
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() {
			return msgs[i], nil
		}
	}
	return model.Message{}, fmt.Errorf("no reply yet")
}

func (cs *chatSession) cmdRegen(ctx context.Context, args []string) error {
	target, err := cs.assistantTarget(args)
	if err != nil {
		return err
	}
	turnCtx := cs.beginTurn(ctx)
	defer cs.endTurn()
	err = cs.ctrl.Regenerate(turnCtx, target.ID)
	if errors.Is(err, session.ErrMessageNotFound) {
		return err
	}
	if err != nil {
		// Reported through a notice
		logger.Debug("regenerate failed", "error", err)
	}
	return nil
}

func (cs *chatSession) cmdLike(ctx context.Context, args []string) error {
	return cs.rate(args, model.FeedbackLike)
}

func (cs *chatSession) cmdDislike(ctx context.Context, args []string) error {
	return cs.rate(args, model.FeedbackDislike)
}

func (cs *chatSession) rate(args []string, fb model.Feedback) error {
	target, err := cs.assistantTarget(args)
	if err != nil {
		return err
	}
	if err := cs.ctrl.SetFeedback(target.ID, fb); err != nil {
		return err
	}
	if target.Feedback == fb {
		fmt.Fprintln(cs.out, DimStyle.Render("Rating cleared"))
	} else {
		fmt.Fprintln(cs.out, DimStyle.Render("Rated "+string(fb)))
	}
	return nil
}

func (cs *chatSession) cmdAttach(ctx context.Context, args []string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(args) == 0 {
		if len(cs.attachments) == 0 {
			fmt.Fprintln(cs.out, DimStyle.Render("No attachments."))
		}
		for i, a := range cs.attachments {
			fmt.Fprintf(cs.out, "  %d. %s\n", i+1, a)
		}
		return nil
	}
	cs.attachments = append(cs.attachments, args...)
	fmt.Fprintf(cs.out, "%s %d attachment(s) will be sent with the next message\n", RenderStatus("ok"), len(cs.attachments))
	return nil
}

// =============================================================================
// CHAT MANAGEMENT
// =============================================================================

// savedChatID flushes pending changes and returns the id of the saved chat.
func (cs *chatSession) savedChatID() (string, error) {
	cs.ctrl.Flush()
	id := cs.ctrl.ChatID()
	if id == "" || cs.ctrl.IsTemporary() {
		return "", errNotSaved
	}
	return id, nil
}

func (cs *chatSession) cmdRename(ctx context.Context, args []string) error {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return fmt.Errorf("usage: /rename TITLE")
	}
	id, err := cs.savedChatID()
	if err != nil {
		return err
	}
	if err := cs.store.RenameChat(id, title); err != nil {
		return err
	}
	fmt.Fprintf(cs.out, "%s Renamed to %q\n", RenderStatus("ok"), title)
	return nil
}

func (cs *chatSession) cmdArchive(ctx context.Context, args []string) error {
	id, err := cs.savedChatID()
	if err != nil {
		return err
	}
	if err := cs.store.ArchiveChat(id); err != nil {
		return err
	}
	if err := cs.sync.Reconcile(viewstate.Event{Kind: viewstate.Archived, ChatID: id}); err != nil {
		return err
	}
	fmt.Fprintf(cs.out, "%s Archived %s; starting a new chat\n", RenderStatus("ok"), shortID(id))
	return nil
}

func (cs *chatSession) cmdDelete(ctx context.Context, args []string) error {
	id, err := cs.savedChatID()
	if err != nil {
		return err
	}
	if err := cs.store.DeleteChat(id); err != nil {
		return err
	}
	if err := cs.sync.Reconcile(viewstate.Event{Kind: viewstate.Deleted, ChatID: id}); err != nil {
		return err
	}
	fmt.Fprintf(cs.out, "%s Deleted %s; starting a new chat\n", RenderStatus("ok"), shortID(id))
	return nil
}

func (cs *chatSession) cmdFolder(ctx context.Context, args []string) error {
	list := cs.store.GetChatList()
	if len(args) == 0 {
		current := ""
		if c := list.Find(cs.ctrl.ChatID()); c != nil {
			current = folderName(list, c.FolderID)
		}
		for _, f := range list.Folders {
			marker := "  "
			if f.Name == current {
				marker = SuccessStyle.Render("* ")
			}
			fmt.Fprintf(cs.out, "%s%s\n", marker, f.Name)
		}
		if len(list.Folders) == 0 {
			fmt.Fprintln(cs.out, DimStyle.Render("No folders. /folder NAME creates one."))
		}
		return nil
	}

	id, err := cs.savedChatID()
	if err != nil {
		return err
	}
	name := strings.Join(args, " ")
	if name == "-" {
		if err := cs.store.MoveChatToFolder(id, ""); err != nil {
			return err
		}
		fmt.Fprintln(cs.out, DimStyle.Render("Removed from folder"))
		return nil
	}

	folderID, err := resolveFolderID(list, name)
	if errors.Is(err, storage.ErrFolderNotFound) {
		f, cerr := cs.store.CreateFolder(name, "")
		if cerr != nil {
			return cerr
		}
		folderID, err = f.ID, nil
		fmt.Fprintf(cs.out, "%s Created folder %q\n", RenderStatus("ok"), f.Name)
	}
	if err != nil {
		return err
	}
	if err := cs.store.MoveChatToFolder(id, folderID); err != nil {
		return err
	}
	fmt.Fprintf(cs.out, "%s Moved to %s\n", RenderStatus("ok"), folderName(cs.store.GetChatList(), folderID))
	return nil
}

func (cs *chatSession) cmdTag(ctx context.Context, args []string) error {
	id, err := cs.savedChatID()
	if err != nil {
		return err
	}
	for _, arg := range args {
		if tag, ok := strings.CutPrefix(arg, "-"); ok {
			err = cs.store.RemoveTagFromChat(id, tag)
		} else {
			err = cs.store.AddTagToChat(id, arg)
		}
		if err != nil {
			return err
		}
	}

	chat, err := cs.store.GetChatByID(id)
	if err != nil {
		return err
	}
	if len(chat.Tags) == 0 {
		fmt.Fprintln(cs.out, DimStyle.Render("No tags."))
		return nil
	}
	tags := make([]string, len(chat.Tags))
	for i, t := range chat.Tags {
		tags[i] = "#" + t
	}
	fmt.Fprintln(cs.out, InfoStyle.Render(strings.Join(tags, " ")))
	return nil
}

// =============================================================================
// SHARING
// =============================================================================

// currentChat returns the saved chat, or an unsaved snapshot of the
// conversation for temporary and new chats.
func (cs *chatSession) currentChat() (model.Chat, error) {
	if id, err := cs.savedChatID(); err == nil {
		return cs.store.GetChatByID(id)
	}
	msgs := cs.ctrl.Messages()
	if len(msgs) == 0 {
		return model.Chat{}, export.ErrEmptyChat
	}
	chat := model.Chat{
		Messages:     msgs,
		CurrentModel: cs.ctrl.Model(),
		CreatedAt:    msgs[0].Timestamp,
		UpdatedAt:    msgs[len(msgs)-1].Timestamp,
	}
	if first, ok := chat.FirstUserMessage(); ok {
		chat.Title = session.DeriveTitle(first.Content)
	}
	return chat, nil
}

func (cs *chatSession) cmdExport(ctx context.Context, args []string) error {
	format, dir := "md", "."
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		dir = args[1]
	}

	chat, err := cs.currentChat()
	if err != nil {
		return err
	}
	opts := exportOptions(dir)
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return err
	}
	path, err := writeExport(chat, exporter, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cs.out, "%s Exported to %s\n", RenderStatus("ok"), path)
	return nil
}

func (cs *chatSession) cmdShare(ctx context.Context, args []string) error {
	msgs := cs.ctrl.Messages()
	if len(msgs) == 0 {
		return export.ErrEmptyChat
	}
	cs.ctrl.Flush()
	if loc, err := cs.sync.ShareLocation(); err == nil && !cs.ctrl.IsTemporary() {
		fmt.Fprintln(cs.out, RenderField("Location", loc))
	}
	fmt.Fprintln(cs.out, RenderSeparator(GetTerminalWidth()-2))
	fmt.Fprintln(cs.out, export.Transcript(msgs))
	return nil
}

// =============================================================================
// SESSION
// =============================================================================

func (cs *chatSession) cmdTemp(ctx context.Context, args []string) error {
	on := !cs.ctrl.IsTemporary()
	cs.ctrl.SetTemporary(on)
	if on {
		fmt.Fprintln(cs.out, temporaryStyle.Render("Temporary chat: nothing will be saved"))
	} else {
		fmt.Fprintln(cs.out, SuccessStyle.Render("Saving is back on"))
	}
	return nil
}

func (cs *chatSession) cmdHistory(ctx context.Context, args []string) error {
	msgs := cs.ctrl.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(cs.out, DimStyle.Render("No messages yet."))
		return nil
	}
	printMessages(cs.out, msgs, cs.md)
	return nil
}

func (cs *chatSession) cmdHelp(ctx context.Context, args []string) error {
	fmt.Fprintln(cs.out, TitleStyle.Render("Commands"))
	for _, c := range slashCommands {
		fmt.Fprintf(cs.out, "  %s %s\n", InfoStyle.Render(fitCell(c.usage, 30)), c.help)
	}
	return nil
}
