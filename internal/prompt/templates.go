// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/ollama"
)

// Template describes one language pair: its instructions and the glossary
// that applies before any user entries.
type Template struct {
	PairID            string
	Label             string
	SourceLang        string
	TargetLang        string
	Instructions      string
	DefaultDictionary []dictionary.Entry
}

// Build assembles messages for sourceText using this template's
// instructions and default dictionary.
func (t Template) Build(sourceText string, userEntries []dictionary.Entry) []ollama.Message {
	return Build(t.Instructions, sourceText, userEntries, t.DefaultDictionary)
}

var builtin = map[string]Template{
	"ko-en": newTemplate("ko", "en", []dictionary.Entry{
		{From: "카카오톡", To: "KakaoTalk"},
		{From: "네이버", To: "Naver"},
	}),
	"en-ko": newTemplate("en", "ko", []dictionary.Entry{
		{From: "KakaoTalk", To: "카카오톡"},
	}),
	"ja-ko": newTemplate("ja", "ko", nil),
	"ko-ja": newTemplate("ko", "ja", nil),
}

// Lookup returns the built-in template for pairID.
func Lookup(pairID string) (Template, bool) {
	t, ok := builtin[strings.ToLower(strings.TrimSpace(pairID))]
	return t, ok
}

// ForPair returns the built-in template for pairID, or a generic one built
// from the BCP 47 codes in the pair ID. It fails only for IDs that are not
// of the form <source>-<target>.
func ForPair(pairID string) (Template, error) {
	if t, ok := Lookup(pairID); ok {
		return t, nil
	}
	src, dst, ok := strings.Cut(strings.ToLower(strings.TrimSpace(pairID)), "-")
	if !ok || src == "" || dst == "" {
		return Template{}, fmt.Errorf("invalid language pair %q, expected <source>-<target>", pairID)
	}
	if _, err := language.Parse(src); err != nil {
		return Template{}, fmt.Errorf("unknown source language %q: %w", src, err)
	}
	if _, err := language.Parse(dst); err != nil {
		return Template{}, fmt.Errorf("unknown target language %q: %w", dst, err)
	}
	return newTemplate(src, dst, nil), nil
}

// Templates returns the built-in templates ordered by pair ID.
func Templates() []Template {
	out := make([]Template, 0, len(builtin))
	for _, t := range builtin {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairID < out[j].PairID })
	return out
}

func newTemplate(src, dst string, defaults []dictionary.Entry) Template {
	srcName, dstName := LanguageName(src), LanguageName(dst)
	return Template{
		PairID:            src + "-" + dst,
		Label:             srcName + " → " + dstName,
		SourceLang:        srcName,
		TargetLang:        dstName,
		Instructions:      instructions(srcName, dstName),
		DefaultDictionary: defaults,
	}
}

func instructions(src, dst string) string {
	return fmt.Sprintf(`You are a professional translator. Your task is to translate %[1]s text to %[2]s.

Rules:
- Translate the given %[1]s text to natural, fluent %[2]s.
- Maintain the original tone and style (formal/informal).
- Preserve any proper nouns, brand names, or technical terms appropriately.
- Do NOT add explanations, comments, or notes.
- Output ONLY the translated %[2]s text, nothing else.`, src, dst)
}

// LanguageName returns the English name for a BCP 47 code, or the code
// itself when it is not recognised.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
