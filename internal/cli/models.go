// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/ollama"
)

func newModelsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Aliases: []string{"ls-models"},
		Short:   "List the models installed in Ollama",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := a.ollama().ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if a.opts.json {
				return printJSON(cmd, models)
			}
			if len(models) == 0 {
				fmt.Fprintln(output(cmd), WarningStyle.Render("No models are installed. Pull one with `ollama pull <model>`."))
				return nil
			}
			fmt.Fprint(output(cmd), renderModels(models, a.cfg.Ollama.Model))
			return nil
		},
	}
}

// renderModels lists models, marking selected with an asterisk.
func renderModels(models []ollama.ModelInfo, selected string) string {
	if len(models) == 0 {
		return DimStyle.Render("(no models)") + "\n"
	}
	t := newTable("", "NAME", "SIZE", "DETAILS", "MODIFIED")
	for _, m := range models {
		mark := ""
		if m.Name == selected || m.Model == selected || strings.TrimSuffix(m.Name, ":latest") == selected {
			mark = HighlightStyle.Render("*")
		}
		modified := "-"
		if !m.ModifiedAt.IsZero() {
			modified = humanize.Time(m.ModifiedAt)
		}
		t.add(mark, m.Name, m.FormatSize(), m.Summary(), modified)
	}
	return t.String()
}
