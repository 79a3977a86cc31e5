// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points OTRANS_HOME at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OTRANS_HOME", dir)
	for _, k := range []string{"OTRANS_OLLAMA_URL", "OLLAMA_HOST", "OTRANS_MODEL", "OTRANS_PAIR", "OTRANS_DATA_DIR", "OTRANS_LOG_LEVEL", "OTRANS_LOG_FILE"} {
		t.Setenv(k, "")
	}
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Ollama.URL)
	assert.Equal(t, "ko-en", cfg.Translate.Pair)
	assert.Equal(t, 500, cfg.Storage.HistoryLimit)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Ollama.Model = "llama3:latest"
	cfg.Translate.Pair = "en-ko"
	cfg.Storage.HistoryLimit = 10
	require.NoError(t, Save(cfg))

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3:latest", loaded.Ollama.Model)
	assert.Equal(t, "en-ko", loaded.Translate.Pair)
	assert.Equal(t, 10, loaded.Storage.HistoryLimit)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ollama]\nurll = \"http://x\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama.urll")
}

func TestLoadFromPath_JSON(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"translate":{"pair":"ja-ko"}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "ja-ko", cfg.Translate.Pair)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Ollama.URL)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Ollama.URL = "localhost"
	cfg.Translate.Pair = "korean"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"ollama.url", "translate.pair", "log.format"}, fields)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OTRANS_MODEL", "gemma2:2b")
	t.Setenv("OTRANS_PAIR", "en-ko")
	t.Setenv("OLLAMA_HOST", "10.0.0.5")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "gemma2:2b", cfg.Ollama.Model)
	assert.Equal(t, "en-ko", cfg.Translate.Pair)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Ollama.URL)

	t.Setenv("OTRANS_OLLAMA_URL", "http://gpu-box:11434")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.URL)
}

func TestPaths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	p, err := cfg.DictionaryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dictionary.json"), p)

	cfg.Storage.DataDir = filepath.Join(dir, "data")
	p, err = cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "history.db"), p)

	cfg.Log.File = "-"
	p, err = cfg.LogPath()
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("storage.history_limit", "42"))
	assert.Equal(t, 42, cfg.Storage.HistoryLimit)

	require.NoError(t, cfg.Set("ui.markdown", "false"))
	assert.False(t, cfg.UI.Markdown)

	v, err := cfg.Get("translate.pair")
	require.NoError(t, err)
	assert.Equal(t, "ko-en", v)

	assert.Error(t, cfg.Set("ui.markdown", "maybe"))
	assert.Error(t, cfg.Set("nope.key", "x"))
	_, err = cfg.Get("ollama")
	assert.Error(t, err)
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "ollama.url")
	assert.Contains(t, keys, "translate.pair")
	assert.Contains(t, keys, "log.level")
	assert.NotContains(t, keys, "ollama")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}
