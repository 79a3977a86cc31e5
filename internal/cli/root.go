// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationNoConfig marks commands that must run even when the config
// file is broken, such as `config init --force`.
const annotationNoConfig = "otrans/no-config"

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	pair       string
	model      string
	ollamaURL  string
	logLevel   string
	json       bool
	noColor    bool
}

// Execute runs the otrans command line and returns the process exit code.
func Execute() int {
	root, a := newRootCommand()
	defer a.Close()

	err := root.ExecuteContext(context.Background())
	if err != nil {
		DisplayError(root.ErrOrStderr(), err, a.opts.json)
	}
	return GetExitCode(err)
}

// NewRootCommand returns the otrans root command. Call the returned close
// function when the command has finished.
func NewRootCommand() (*cobra.Command, func()) {
	root, a := newRootCommand()
	return root, a.Close
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "otrans",
		Short: "Translate text with a local Ollama model",
		Long: `otrans streams translations from a locally running Ollama server.

Without a subcommand it opens the interactive translator. Per-language-pair
dictionaries pin how specific terms are translated, and every completed
translation is kept in a searchable history.`,
		Example: `  otrans
  otrans translate "안녕하세요"
  echo "こんにちは" | otrans translate --pair ja-ko
  otrans dict add 카카오톡 KakaoTalk --pair ko-en`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.opts.noColor {
				ForceColorsEnabled(false)
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			if cmd.Annotations[annotationNoConfig] == "true" {
				return nil
			}
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("otrans {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", "", "config file (default: ~/.otrans/config.toml)")
	flags.StringVarP(&a.opts.pair, "pair", "p", "", "language pair such as ko-en (overrides translate.pair)")
	flags.StringVarP(&a.opts.model, "model", "m", "", "Ollama model (overrides ollama.model)")
	flags.StringVar(&a.opts.ollamaURL, "ollama-url", "", "Ollama server URL (overrides ollama.url)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level (trace/debug/info/warn/error)")
	flags.BoolVar(&a.opts.json, "json", false, "print machine-readable JSON")
	flags.BoolVar(&a.opts.noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	root.AddCommand(
		newTranslateCommand(a),
		newReplCommand(a),
		newModelsCommand(a),
		newDictCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
		newStatusCommand(a),
	)
	return root, a
}
