// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/translate"
)

type translateOptions struct {
	file      string
	stats     bool
	noHistory bool
}

func newTranslateCommand(a *app) *cobra.Command {
	var o translateOptions
	cmd := &cobra.Command{
		Use:     "translate [text...]",
		Aliases: []string{"t"},
		Short:   "Translate text once and print the result",
		Long: `Translate text once, streaming the result to stdout.

The text comes from the arguments, from --file, or from stdin when it is
piped. Press Ctrl+C to stop; the partial translation stays on screen and is
not recorded in history.`,
		Example: `  otrans translate "안녕하세요"
  otrans translate --pair en-ko --model llama3 "Good morning"
  cat notes.txt | otrans translate --stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, a, &o, args)
		},
	}
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "read the source text from a file (- for stdin)")
	cmd.Flags().BoolVar(&o.stats, "stats", false, "print token usage to stderr (also translate.show_stats)")
	cmd.Flags().BoolVar(&o.noHistory, "no-history", false, "do not record the result in history")
	return cmd
}

func runTranslate(cmd *cobra.Command, a *app, o *translateOptions, args []string) error {
	source, err := readSource(cmd, o.file, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var printer *streamPrinter
	notifier := &cliNotifier{w: cmd.ErrOrStderr()}
	opts := []translate.Option{translate.WithNotifier(notifier)}
	if !a.opts.json {
		printer = newStreamPrinter(output(cmd))
		notifier.printer = printer
		opts = append(opts, translate.WithObserver(printer.Observe))
	}

	ctrl, err := a.controller(!o.noHistory, opts...)
	if err != nil {
		return err
	}
	if a.cfg.Ollama.Model == "" {
		if err := ctrl.LoadModels(ctx); err != nil {
			return err
		}
	}

	err = ctrl.Translate(ctx, source, "")
	if printer != nil {
		printer.endLine()
	}
	if errors.Is(err, translate.ErrCancelled) {
		return errInterrupted
	}
	if err != nil {
		return err
	}

	snap := ctrl.Snapshot()
	if a.opts.json {
		return printJSON(cmd, resultFromSnapshot(snap))
	}
	if o.stats || a.cfg.Translate.ShowStats {
		fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render(formatUsage(snap)))
	}
	return nil
}

// readSource picks the source text from --file, the arguments or piped
// stdin, in that order. Trailing newlines from files and pipes are dropped.
func readSource(cmd *cobra.Command, file string, args []string) (string, error) {
	var data []byte
	var err error
	switch {
	case file == "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	case file != "":
		data, err = os.ReadFile(file)
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case isPiped(cmd.InOrStdin()):
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		return "", ErrMissingArgument("text", `otrans translate "안녕하세요"`)
	}
	if err != nil {
		return "", fmt.Errorf("read source text: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// translationResult is the --json shape of one translation.
type translationResult struct {
	ID          string         `json:"id,omitempty"`
	Pair        string         `json:"pair"`
	Model       string         `json:"model"`
	Source      string         `json:"source"`
	Translation string         `json:"translation"`
	Usage       *history.Usage `json:"usage,omitempty"`
}

func resultFromSnapshot(s translate.Snapshot) translationResult {
	return translationResult{
		ID:          s.HistoryID,
		Pair:        s.PairID,
		Model:       s.Model,
		Source:      s.SourceText,
		Translation: s.Text,
		Usage:       s.Usage,
	}
}

// formatUsage renders the stats line printed after a translation.
func formatUsage(s translate.Snapshot) string {
	if s.Usage == nil {
		return fmt.Sprintf("%s · %s · no usage reported", s.PairID, s.Model)
	}
	stats := translate.UsageStats(*s.Usage)
	return fmt.Sprintf("%s · %s · %s prompt tokens · %s",
		s.PairID, s.Model, humanize.Comma(int64(stats.PromptTokens)), stats.Format())
}

// =============================================================================
// STREAM OUTPUT
// =============================================================================

// streamPrinter writes the new suffix of each snapshot's text, so chunks
// appear as they arrive. Snapshots older than one already printed are
// ignored, and a terminal snapshot closes the line.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	seq     uint64
	attempt uint64
	printed int
	open    bool
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out}
}

// Observe is passed to translate.WithObserver.
func (p *streamPrinter) Observe(s translate.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Seq != 0 {
		if s.Seq <= p.seq {
			return
		}
		p.seq = s.Seq
	}
	if s.Attempt != p.attempt {
		p.attempt = s.Attempt
		p.printed = 0
	}
	if len(s.Text) > p.printed {
		delta := s.Text[p.printed:]
		io.WriteString(p.out, delta)
		p.printed = len(s.Text)
		p.open = !strings.HasSuffix(delta, "\n")
	}
	if s.Status.IsTerminal() && p.open {
		io.WriteString(p.out, "\n")
		p.open = false
	}
}

// endLine terminates a partially written line.
func (p *streamPrinter) endLine() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		io.WriteString(p.out, "\n")
		p.open = false
	}
}

// cliNotifier prints informational notifications to stderr. Errors and
// rejected preconditions are returned by the controller call and reported
// once by Execute.
type cliNotifier struct {
	w       io.Writer
	printer *streamPrinter
}

func (n *cliNotifier) Notify(note translate.Notification) {
	if note.Level == translate.LevelError || note.Kind == translate.KindPrecondition {
		return
	}
	if n.printer != nil {
		n.printer.endLine()
	}
	tag := InfoStyle.Render("[i]")
	if note.Level == translate.LevelWarning {
		tag = WarningStyle.Render("[!]")
	}
	fmt.Fprintf(n.w, "%s %s\n", tag, note.Message)
}
