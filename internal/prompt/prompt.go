// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles the chat messages for one translation request.
//
// Assembly is pure: the same inputs always produce the same messages, and
// nothing is validated here. Callers reject empty source text first.
package prompt

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/ollama"
)

const glossaryHeader = "Glossary:\n" +
	"When the text contains a term on the left, translate it exactly as the term on the right.\n"

// Build returns exactly two messages: a system message with instructions
// and the rendered glossary, then a user message holding sourceText
// verbatim. userEntries override defaultEntries with the same source term.
func Build(instructions, sourceText string, userEntries, defaultEntries []dictionary.Entry) []ollama.Message {
	system := instructions
	if glossary := RenderGlossary(MergeGlossary(userEntries, defaultEntries)); glossary != "" {
		system = strings.TrimRight(system, "\n") + "\n\n" + glossary
	}

	return []ollama.Message{
		ollama.NewSystemMessage(system),
		ollama.NewUserMessage(sourceText),
	}
}

// MergeGlossary returns the defaults not overridden by the user, followed by
// the user entries. Within each list the last entry for a term wins, so
// every term appears exactly once. Terms are compared after trimming and
// Unicode NFC normalisation; invalid entries are skipped.
func MergeGlossary(userEntries, defaultEntries []dictionary.Entry) []dictionary.Entry {
	users := lastWins(userEntries)

	overridden := make(map[string]bool, len(users))
	for _, e := range users {
		overridden[Key(e.From)] = true
	}

	merged := make([]dictionary.Entry, 0, len(users)+len(defaultEntries))
	for _, e := range lastWins(defaultEntries) {
		if !overridden[Key(e.From)] {
			merged = append(merged, e)
		}
	}
	return append(merged, users...)
}

// lastWins drops every entry whose term reappears later in the list,
// keeping the survivors in their original relative order.
func lastWins(entries []dictionary.Entry) []dictionary.Entry {
	seen := make(map[string]bool, len(entries))
	kept := make([]dictionary.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.Valid() {
			continue
		}
		k := Key(e.From)
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, dictionary.Entry{From: strings.TrimSpace(e.From), To: strings.TrimSpace(e.To)})
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// Key is the comparison form of a source term.
func Key(term string) string {
	return norm.NFC.String(strings.TrimSpace(term))
}

// RenderGlossary renders entries one per line as "from" -> "to" under a
// short header. It returns "" for an empty list.
func RenderGlossary(entries []dictionary.Entry) string {
	if len(entries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(glossaryHeader)
	for _, e := range entries {
		sb.WriteString(GlossaryLine(e))
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// GlossaryLine renders one entry.
func GlossaryLine(e dictionary.Entry) string {
	return strconv.Quote(e.From) + " -> " + strconv.Quote(e.To)
}
