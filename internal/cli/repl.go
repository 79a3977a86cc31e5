// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/prompt"
	"github.com/jeranaias/otrans/internal/translate"
)

func newReplCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Translate line by line in an interactive prompt",
		Long: `Start a line-oriented translator. Each line you enter is translated
with the active pair and model. Arrow keys browse earlier input.

Commands:
  :pair [id]     show or change the language pair
  :model [name]  show or change the model
  :models        list installed models
  :dict          show the dictionary for the active pair
  :reset         clear the session
  :help          show this help
  :quit          leave (Ctrl+D also works)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("start the REPL"); err != nil {
				return err
			}
			return runRepl(cmd, a)
		},
	}
}

func runRepl(cmd *cobra.Command, a *app) error {
	historyPath, err := a.cfg.ReplHistoryPath()
	if err != nil {
		return err
	}
	line := newLineEditor(historyPath)
	defer line.Close()

	r, err := newRepl(cmd, a, line)
	if err != nil {
		return err
	}
	return r.run(cmd.Context())
}

// =============================================================================
// LINE EDITING
// =============================================================================

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// lineEditor wraps liner with history persisted to disk.
type lineEditor struct {
	*liner.State
	historyFile string
}

func newLineEditor(historyFile string) *lineEditor {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	e := &lineEditor{State: state, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		state.ReadHistory(f)
		f.Close()
	}
	return e
}

// Close saves history and restores the terminal.
func (e *lineEditor) Close() error {
	// SECURITY: owner read/write only; history holds source text.
	if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		e.State.WriteHistory(f)
		f.Close()
	}
	return e.State.Close()
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	a       *app
	ctrl    *translate.Controller
	dict    *dictionary.Store
	in      lineReader
	out     io.Writer
	errOut  io.Writer
	printer *streamPrinter
}

func newRepl(cmd *cobra.Command, a *app, in lineReader) (*repl, error) {
	r := &repl{
		a:       a,
		in:      in,
		out:     output(cmd),
		errOut:  cmd.ErrOrStderr(),
		printer: newStreamPrinter(output(cmd)),
	}
	dict, err := a.dictionary()
	if err != nil {
		return nil, err
	}
	r.dict = dict
	r.ctrl, err = a.controller(true,
		translate.WithObserver(r.printer.Observe),
		translate.WithNotifier(&cliNotifier{w: r.errOut, printer: r.printer}),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.a.watchDictionary(ctx, r.dict)

	if err := r.ctrl.LoadModels(ctx); err != nil {
		// Discovery failures were reported; an explicit model may still work.
		fmt.Fprintln(r.errOut, ErrorStyle.Render("[ERROR]"), err)
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type text to translate, :help for commands, Ctrl+D to quit."))

	for {
		snap := r.ctrl.Snapshot()
		input, err := r.in.Prompt(snap.PairID + "> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if strings.HasPrefix(input, ":") {
			if quit := r.command(ctx, input); quit {
				return nil
			}
			continue
		}
		r.translate(ctx, input)
	}
}

// translate runs one translation; Ctrl+C stops it without leaving the REPL.
func (r *repl) translate(ctx context.Context, text string) {
	tctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	err := r.ctrl.Translate(tctx, text, "")
	r.printer.endLine()
	switch translate.Classify(err) {
	case translate.OutcomeOK, translate.OutcomeCancelled:
	default:
		fmt.Fprintln(r.errOut, ErrorStyle.Render("[ERROR]"), err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(r.errOut, DimStyle.Render(hint))
		}
	}
}

// command handles a ":" command and reports whether to quit.
func (r *repl) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(strings.TrimPrefix(input, ":"), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(name) {
	case "q", "quit", "exit":
		return true
	case "help", "h", "?":
		fmt.Fprintln(r.out, replHelp)
	case "pair":
		if arg == "" {
			snap := r.ctrl.Snapshot()
			fmt.Fprintf(r.out, "%s (%s)\n", snap.PairID, pairLabel(snap.PairID))
			break
		}
		err = r.ctrl.SetPair(arg)
	case "model":
		if arg == "" {
			fmt.Fprintln(r.out, modelOrNone(r.ctrl.Snapshot().Model))
			break
		}
		err = r.ctrl.SelectModel(arg)
	case "models":
		if err = r.ctrl.LoadModels(ctx); err == nil {
			snap := r.ctrl.Snapshot()
			fmt.Fprint(r.out, renderModels(snap.Models, snap.Model))
		}
	case "dict":
		pair := r.ctrl.Snapshot().PairID
		fmt.Fprint(r.out, renderEntries(r.dict.Get(pair)))
	case "reset":
		r.ctrl.Reset()
	default:
		err = &ValidationError{Field: "command", Value: input, Reason: "unknown command", Example: ":help"}
	}
	if err != nil {
		fmt.Fprintln(r.errOut, ErrorStyle.Render("[ERROR]"), err)
	}
	return false
}

const replHelp = `:pair [id]     show or change the language pair
:model [name]  show or change the model
:models        list installed models
:dict          show the dictionary for the active pair
:reset         clear the session
:quit          leave`

func pairLabel(pairID string) string {
	t, err := prompt.ForPair(pairID)
	if err != nil {
		return pairID
	}
	return t.Label
}

func modelOrNone(model string) string {
	if model == "" {
		return "(none)"
	}
	return model
}
