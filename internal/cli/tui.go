// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/translate"
	"github.com/jeranaias/otrans/internal/ui/styles"
	"github.com/jeranaias/otrans/internal/ui/translator"
)

// runTUI opens the interactive translator.
func runTUI(cmd *cobra.Command, a *app) error {
	if err := RequiresTTY("start the interactive translator"); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger := log.Logger.With().Str("component", "tui").Logger()
	bridge := translator.NewBridge(logger)
	ctrl, err := a.controller(true,
		translate.WithObserver(bridge.Observe),
		translate.WithNotifier(bridge),
	)
	if err != nil {
		return err
	}
	dict, err := a.dictionary()
	if err != nil {
		return err
	}
	hist, err := a.history()
	if err != nil {
		return err
	}
	a.watchDictionary(ctx, dict)
	dict.OnChange(func() {
		a.log.Debug().Str("pair", ctrl.Snapshot().PairID).Msg("dictionary changed")
	})

	page := translator.New(translator.Options{
		Controller: ctrl,
		Bridge:     bridge,
		Dictionary: dict,
		History:    hist,
		Theme:      styles.NewTheme(a.cfg.UI.Theme),
		ShowUsage:  a.cfg.UI.ShowUsage,
		Context:    ctx,
		Logger:     &logger,
	})

	p := tea.NewProgram(page, tea.WithAltScreen())
	_, err = p.Run()

	// Leave no request streaming once the screen is gone.
	ctrl.Stop()
	if err != nil {
		return fmt.Errorf("interactive translator: %w", err)
	}
	return nil
}
