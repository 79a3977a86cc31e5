// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// statusReport is what `otrans status` prints.
type statusReport struct {
	ConfigPath   string `json:"config_path"`
	DataDir      string `json:"data_dir"`
	OllamaURL    string `json:"ollama_url"`
	Running      bool   `json:"running"`
	Version      string `json:"version,omitempty"`
	Error        string `json:"error,omitempty"`
	Models       int    `json:"models"`
	Model        string `json:"model"`
	Pair         string `json:"pair"`
	Entries      int    `json:"dictionary_entries"`
	HistoryItems int    `json:"history_items"`
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the Ollama connection and show local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := collectStatus(cmd.Context(), a)
			if err != nil {
				return err
			}
			if a.opts.json {
				return printJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
}

func collectStatus(ctx context.Context, a *app) (statusReport, error) {
	r := statusReport{
		ConfigPath: a.cfgPath,
		OllamaURL:  a.cfg.Ollama.URL,
		Model:      a.cfg.Ollama.Model,
		Pair:       a.cfg.Translate.Pair,
	}
	dir, err := a.cfg.DataDir()
	if err != nil {
		return r, err
	}
	r.DataDir = dir

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Ollama.TimeoutSecs)*time.Second)
	defer cancel()
	client := a.ollama()
	if err := client.CheckRunning(ctx); err != nil {
		r.Error = err.Error()
	} else {
		r.Running = true
		r.Version, _ = client.Version(ctx)
		if models, err := client.ListModels(ctx); err == nil {
			r.Models = len(models)
			if r.Model == "" && len(models) > 0 {
				r.Model = models[0].Name
			}
		}
	}

	dict, err := a.dictionary()
	if err != nil {
		return r, err
	}
	r.Entries = len(dict.Get(r.Pair))

	hist, err := a.history()
	if err != nil {
		return r, err
	}
	if r.HistoryItems, err = hist.Count(ctx); err != nil {
		return r, err
	}
	return r, nil
}

func printStatus(cmd *cobra.Command, r statusReport) {
	w := output(cmd)
	fmt.Fprintln(w, TitleStyle.Render("otrans "+Version))
	row := func(label, value string) {
		fmt.Fprintf(w, "%s%s\n", RenderLabel(label), ValueStyle.Render(value))
	}

	if r.Running {
		version := r.Version
		if version == "" {
			version = "unknown version"
		}
		row("Ollama", fmt.Sprintf("%s %s (%s)", RenderStatus("ok"), r.OllamaURL, version))
		row("Models", humanize.Comma(int64(r.Models)))
	} else {
		row("Ollama", fmt.Sprintf("%s %s", RenderStatus("fail"), r.OllamaURL))
		fmt.Fprintln(w, DimStyle.Render("  "+r.Error))
	}
	row("Model", modelOrNone(r.Model))
	row("Language pair", fmt.Sprintf("%s (%s)", r.Pair, pairLabel(r.Pair)))
	row("Dictionary", fmt.Sprintf("%d entries for %s", r.Entries, r.Pair))
	row("History", humanize.Comma(int64(r.HistoryItems))+" translations")
	row("Config", r.ConfigPath)
	row("Data", r.DataDir)
}
