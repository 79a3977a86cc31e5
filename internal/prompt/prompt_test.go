// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/ollama"
)

func TestBuild_Shape(t *testing.T) {
	source := "  안녕하세요\n반갑습니다  "
	msgs := Build("Translate.", source, nil, nil)

	require.Len(t, msgs, 2)
	assert.Equal(t, ollama.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Translate.", msgs[0].Content, "no glossary block without entries")
	assert.Equal(t, ollama.RoleUser, msgs[1].Role)
	assert.Equal(t, source, msgs[1].Content, "source must be passed verbatim")
}

func TestBuild_UserOverridesDefault(t *testing.T) {
	defaults := []dictionary.Entry{{From: "hello", To: "hi"}}
	users := []dictionary.Entry{{From: "hello", To: "yo"}}

	msgs := Build("Translate.", "hello world", users, defaults)
	system := msgs[0].Content

	assert.Contains(t, system, `"hello" -> "yo"`)
	assert.NotContains(t, system, `"hello" -> "hi"`)
	assert.Equal(t, 1, strings.Count(system, `"hello" ->`))
}

func TestMergeGlossary_OrderAndLastWins(t *testing.T) {
	defaults := []dictionary.Entry{
		{From: "a", To: "d-a"},
		{From: "b", To: "d-b"},
		{From: "c", To: "d-c1"},
		{From: "c", To: "d-c2"},
	}
	users := []dictionary.Entry{
		{From: "x", To: "u-x1"},
		{From: "b", To: "u-b"},
		{From: "x", To: "u-x2"},
	}

	got := MergeGlossary(users, defaults)
	assert.Equal(t, []dictionary.Entry{
		{From: "a", To: "d-a"},
		{From: "c", To: "d-c2"},
		{From: "b", To: "u-b"},
		{From: "x", To: "u-x2"},
	}, got)
}

func TestMergeGlossary_NormalisesKeys(t *testing.T) {
	// Precomposed "é" versus "e" followed by a combining acute accent.
	defaults := []dictionary.Entry{{From: "caf\u00e9", To: "default"}}
	users := []dictionary.Entry{{From: " cafe\u0301 ", To: "user"}}

	got := MergeGlossary(users, defaults)
	require.Len(t, got, 1)
	assert.Equal(t, "user", got[0].To)
	assert.Equal(t, "cafe\u0301", got[0].From, "rendered term is trimmed but not rewritten")
}

func TestMergeGlossary_SkipsInvalid(t *testing.T) {
	got := MergeGlossary([]dictionary.Entry{{From: " ", To: "x"}}, []dictionary.Entry{{From: "a", To: ""}})
	assert.Empty(t, got)
}

func TestBuild_Deterministic(t *testing.T) {
	users := []dictionary.Entry{{From: "사과", To: "apple"}, {From: "배", To: "pear"}}
	first := Build("I", "사과와 배", users, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build("I", "사과와 배", users, nil))
	}
}

func TestRenderGlossary(t *testing.T) {
	assert.Empty(t, RenderGlossary(nil))

	out := RenderGlossary([]dictionary.Entry{{From: `say "hi"`, To: "인사"}})
	assert.True(t, strings.HasPrefix(out, "Glossary:\n"))
	assert.True(t, strings.HasSuffix(out, `"say \"hi\"" -> "인사"`))
}

func TestTemplates_KoreanToEnglish(t *testing.T) {
	tmpl, ok := Lookup("ko-en")
	require.True(t, ok)
	assert.Equal(t, "Korean → English", tmpl.Label)
	assert.True(t, strings.HasPrefix(tmpl.Instructions,
		"You are a professional translator. Your task is to translate Korean text to English."))
	assert.Contains(t, tmpl.Instructions, "- Output ONLY the translated English text, nothing else.")

	msgs := tmpl.Build("카카오톡 메시지", []dictionary.Entry{{From: "메시지", To: "DM"}})
	assert.Contains(t, msgs[0].Content, `"카카오톡" -> "KakaoTalk"`)
	assert.Contains(t, msgs[0].Content, `"메시지" -> "DM"`)
}

func TestTemplates_Listing(t *testing.T) {
	ids := make([]string, 0)
	for _, tmpl := range Templates() {
		ids = append(ids, tmpl.PairID)
	}
	assert.Equal(t, []string{"en-ko", "ja-ko", "ko-en", "ko-ja"}, ids)
}

func TestForPair(t *testing.T) {
	tmpl, err := ForPair("KO-EN")
	require.NoError(t, err)
	assert.NotEmpty(t, tmpl.DefaultDictionary)

	tmpl, err = ForPair("de-fr")
	require.NoError(t, err)
	assert.Equal(t, "de-fr", tmpl.PairID)
	assert.Equal(t, "German → French", tmpl.Label)
	assert.Empty(t, tmpl.DefaultDictionary)

	_, err = ForPair("korean")
	assert.Error(t, err)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Japanese", LanguageName("ja"))
	assert.Equal(t, "??", LanguageName("??"))
}
