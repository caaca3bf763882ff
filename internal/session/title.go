// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"regexp"
	"strings"

	"github.com/jeranaias/chatflow/internal/util"
)

const (
	titleMaxLen     = 50
	titleSummaryLen = 47
	titleMinSummary = 10
)

var (
	fencedCodeRe    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe    = regexp.MustCompile("`[^`]*`")
	firstSentenceRe = regexp.MustCompile(`^[^.!?]+[.!?]`)
	stopWordRe      = regexp.MustCompile(`(?i)\b(a|an|and|are|as|at|be|by|for|from|has|he|in|is|it|its|of|on|that|the|to|was|will|with)\b`)
)

// DeriveTitle builds a chat title from the first user message. The result
// depends only on the input. Lengths count characters.
func DeriveTitle(firstMessage string) string {
	text := strings.TrimSpace(firstMessage)
	text = fencedCodeRe.ReplaceAllString(text, "")
	text = inlineCodeRe.ReplaceAllString(text, "")
	text = util.CollapseWhitespace(text)

	if util.RuneLen(text) <= titleMaxLen {
		return text
	}

	if s := firstSentenceRe.FindString(text); s != "" && util.RuneLen(s) <= titleMaxLen {
		return strings.TrimSpace(s)
	}

	summary := ""
	for _, word := range strings.Fields(text) {
		if util.RuneLen(word) <= 2 || stopWordRe.MatchString(word) {
			continue
		}
		if util.RuneLen(summary)+1+util.RuneLen(word) > titleSummaryLen {
			break
		}
		if summary != "" {
			summary += " "
		}
		summary += word
	}
	if util.RuneLen(summary) > titleMinSummary {
		return summary + "..."
	}

	return util.TruncateRunes(util.FirstLine(text), titleMaxLen)
}
