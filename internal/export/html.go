// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/chatflow/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports chats to a self-contained, printable HTML document.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a chat to HTML.
func (e *HTMLExporter) Export(chat model.Chat) ([]byte, error) {
	if len(chat.Messages) == 0 {
		return nil, ErrEmptyChat
	}

	title := chat.Title
	if title == "" {
		title = "Chat Export"
	}
	theme := e.options.Theme
	if theme != "dark" {
		theme = "light"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(title)))
	sb.WriteString("    <meta name=\"generator\" content=\"chatflow\">\n")
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))

	sb.WriteString(fmt.Sprintf("    <h1>%s</h1>\n", html.EscapeString(title)))
	sb.WriteString("    <div class=\"meta\">\n")
	sb.WriteString(fmt.Sprintf("        Generated: %s<br>\n", formatTimestamp(e.options.now())))
	sb.WriteString(fmt.Sprintf("        Total Messages: %d\n", len(chat.Messages)))
	sb.WriteString("    </div>\n")

	for _, msg := range chat.Messages {
		sb.WriteString(e.renderMessage(msg))
	}

	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderMessage(msg model.Message) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("    <div class=\"message %s\">\n", html.EscapeString(string(msg.Role))))
	sb.WriteString(fmt.Sprintf("        <div class=\"message-header\">%s (%s)</div>\n",
		roleLabel(msg.Role), formatTimestamp(e.options.messageTime(msg.Timestamp))))
	sb.WriteString("        <div class=\"message-content\">")
	sb.WriteString(e.formatContent(msg.Content))
	sb.WriteString("</div>\n")
	if msg.Model != "" {
		sb.WriteString(fmt.Sprintf("        <div class=\"message-meta\">Model: %s</div>\n", html.EscapeString(msg.Model)))
	}
	sb.WriteString("    </div>\n")

	return sb.String()
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

var codeBlockRegex = regexp.MustCompile("```([a-zA-Z0-9_+#.-]*)[^\\n]*\\n([\\s\\S]*?)```")

// formatContent escapes prose and highlights fenced code blocks. Prose keeps
// its line breaks through the white-space: pre-wrap rule.
func (e *HTMLExporter) formatContent(content string) string {
	var sb strings.Builder
	last := 0
	for _, loc := range codeBlockRegex.FindAllStringSubmatchIndex(content, -1) {
		sb.WriteString(html.EscapeString(content[last:loc[0]]))
		lang := content[loc[2]:loc[3]]
		code := content[loc[4]:loc[5]]
		sb.WriteString(e.highlight(strings.TrimRight(code, "\n"), lang))
		last = loc[1]
	}
	sb.WriteString(html.EscapeString(content[last:]))
	return sb.String()
}

// highlight renders code as inline-styled HTML, falling back to an escaped
// <pre> block.
func (e *HTMLExporter) highlight(code, lang string) string {
	label := ""
	if lang != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}
	plain := fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>", label, html.EscapeString(code))

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(e.options.CodeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plain
	}

	var buf strings.Builder
	formatter := chromahtml.New(chromahtml.Standalone(false), chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return plain
	}
	return fmt.Sprintf("<div class=\"code-block\">%s%s</div>", label, buf.String())
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const htmlCSS = `    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 20px;
        }
        .light-theme { color: #333; background: #fff; }
        .dark-theme { color: #c0caf5; background: #1a1b26; }
        h1 { border-bottom: 2px solid #666; padding-bottom: 10px; margin-bottom: 20px; }
        .meta { color: #666; font-size: 14px; margin-bottom: 30px; padding-bottom: 15px; border-bottom: 1px solid #ddd; }
        .message { margin-bottom: 30px; padding: 15px; border-left: 4px solid #ddd; }
        .message.user { border-left-color: #4CAF50; }
        .message.assistant { border-left-color: #2196F3; }
        .light-theme .message.user { background: #e8f5e9; }
        .light-theme .message.assistant { background: #e3f2fd; }
        .message-header { font-weight: bold; margin-bottom: 10px; }
        .message-content { white-space: pre-wrap; word-wrap: break-word; }
        .message-meta { font-size: 12px; color: #666; margin-top: 10px; font-style: italic; }
        .code-block { margin: 8px 0; white-space: normal; }
        .code-block pre { padding: 10px; overflow-x: auto; white-space: pre; }
        .code-lang { font-size: 12px; color: #666; font-family: monospace; }
        @media print {
            body { padding: 0; }
            .message { page-break-inside: avoid; }
        }
    </style>
`
