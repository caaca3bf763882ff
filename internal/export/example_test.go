// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"
	"time"

	"github.com/jeranaias/chatflow/internal/export"
	"github.com/jeranaias/chatflow/internal/model"
)

func fixedOptions() *export.Options {
	opts := export.DefaultOptions()
	opts.Location = time.UTC
	opts.Now = func() time.Time { return time.Date(2025, 1, 24, 14, 30, 52, 0, time.UTC) }
	return opts
}

// ExampleMarkdownExporter demonstrates exporting a chat to Markdown.
func ExampleMarkdownExporter() {
	chat := model.Chat{
		ID:    "c1",
		Title: "Hello World",
		Messages: []model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "Say hi", Timestamp: 1737729000000},
			{ID: "m2", Role: model.RoleAssistant, Content: "Hi!", Timestamp: 1737729001000, Model: "openai/gpt-4o"},
		},
	}

	out, err := export.NewMarkdownExporter(fixedOptions()).Export(chat)
	if err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}
	fmt.Print(string(out))
	// Output:
	// # Hello World
	//
	// Generated: 2025-01-24 14:30:52
	//
	// ---
	//
	// ## You (2025-01-24 14:30:00)
	//
	// Say hi
	//
	// ---
	//
	// ## Assistant (2025-01-24 14:30:01)
	//
	// Hi!
	//
	// *Model: openai/gpt-4o*
	//
	// ---
}

// ExampleTranscript demonstrates the plain-text share format.
func ExampleTranscript() {
	fmt.Println(export.Transcript([]model.Message{
		{Role: model.RoleUser, Content: "2+2?"},
		{Role: model.RoleAssistant, Content: "4"},
	}))
	// Output:
	// user: 2+2?
	//
	// assistant: 4
}

// ExampleFilename demonstrates filename slugs.
func ExampleFilename() {
	fmt.Println(export.Filename("Café: déjà vu?"))
	fmt.Println(export.Filename("***"))
	// Output:
	// cafe-deja-vu
	// chat-export
}
