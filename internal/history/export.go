// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Markdown renders a single item as a Markdown section.
func (i Item) Markdown() string {
	var sb strings.Builder
	title := i.PairID
	if title == "" {
		title = "translation"
	}
	sb.WriteString("## " + title + " · " + i.Model + "\n\n")
	sb.WriteString("ID: `" + i.ID + "`  \n")
	sb.WriteString("Created: " + i.CreatedAt.Format(time.RFC3339) + "\n")
	if i.Usage != nil {
		sb.WriteString(fmt.Sprintf("Tokens: %d prompt, %d completion",
			i.Usage.PromptTokens, i.Usage.CompletionTokens))
		if i.Usage.Duration > 0 {
			sb.WriteString(" in " + i.Usage.Duration.Round(time.Millisecond).String())
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n**Source**\n\n")
	sb.WriteString(i.SourceText)
	sb.WriteString("\n\n**Translation**\n\n")
	sb.WriteString(i.TranslatedText)
	sb.WriteString("\n")
	return sb.String()
}

// Age returns a relative creation time such as "3 minutes ago".
func (i Item) Age() string {
	return humanize.Time(i.CreatedAt)
}

// ExportMarkdown renders items as one Markdown document.
func ExportMarkdown(items []Item) string {
	var sb strings.Builder
	sb.WriteString("# Translation History\n\n")
	sb.WriteString("Exported: " + time.Now().Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, it := range items {
		sb.WriteString(it.Markdown())
		sb.WriteString("\n---\n\n")
	}
	return sb.String()
}

// ExportJSON exports items as a pretty-printed JSON array.
func ExportJSON(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.MarshalIndent(items, "", "  ")
}
