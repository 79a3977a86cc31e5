// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/util"
)

// sourcePreviewWidth bounds the source column in history listings.
const sourcePreviewWidth = 48

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse and manage past translations",
		Long: `Completed translations are recorded in history. Items are addressed by
ID; any unique prefix of at least one character works.`,
	}
	cmd.AddCommand(
		newHistoryListCommand(a),
		newHistoryShowCommand(a),
		newHistorySearchCommand(a),
		newHistoryDeleteCommand(a),
		newHistoryClearCommand(a),
		newHistoryExportCommand(a),
	)
	return cmd
}

func newHistoryListCommand(a *app) *cobra.Command {
	var opts history.ListOptions
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent translations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			// Only an explicit --pair filters; the configured pair does not.
			if a.opts.pair != "" {
				opts.PairID = a.cfg.Translate.Pair
			}
			items, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			return printItems(cmd, a, items, fmt.Sprintf("Showing %d of %s translations", len(items), humanize.Comma(int64(total))))
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of items")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "skip this many items")
	return cmd
}

func newHistorySearchCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find translations whose source or result contains query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			items, err := store.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			return printItems(cmd, a, items, fmt.Sprintf("%d matches for %q", len(items), query))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of items")
	return cmd
}

func newHistoryShowCommand(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one translation in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			item, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.opts.json {
				return printJSON(cmd, item)
			}
			md := item.Markdown()
			if !raw && a.cfg.UI.Markdown && isTerminal(cmd.OutOrStdout()) {
				md = renderMarkdown(md)
			}
			fmt.Fprint(output(cmd), md)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source instead of rendering it")
	return cmd
}

func newHistoryDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete translations by ID",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			deleted := make([]string, 0, len(args))
			for _, id := range args {
				item, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := store.Delete(cmd.Context(), item.ID); err != nil {
					return err
				}
				deleted = append(deleted, item.ID)
				if !a.opts.json {
					fmt.Fprintf(output(cmd), "%s Deleted %s\n", RenderStatus("ok"), item.ShortID())
				}
			}
			if a.opts.json {
				return printJSON(cmd, map[string]interface{}{"deleted": deleted})
			}
			return nil
		},
	}
}

func newHistoryClearCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded translation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			if !force {
				total, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				ok, err := confirm(cmd, fmt.Sprintf("Delete all %d translations?", total))
				if err != nil || !ok {
					return err
				}
			}
			n, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if a.opts.json {
				return printJSON(cmd, map[string]interface{}{"removed": n})
			}
			fmt.Fprintf(output(cmd), "%s Deleted %d translations\n", RenderStatus("ok"), n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not ask for confirmation")
	return cmd
}

func newHistoryExportCommand(a *app) *cobra.Command {
	var (
		format string
		file   string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export history as Markdown or JSON",
		Example: `  otrans history export --format markdown -o history.md
  otrans history export --format json --limit 100 > recent.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			switch format {
			case "md", "markdown", "json":
			default:
				return ErrUnsupportedFormat(format, []string{"markdown", "json"})
			}

			store, err := a.history()
			if err != nil {
				return err
			}
			items, err := store.List(cmd.Context(), history.ListOptions{Limit: limit})
			if err != nil {
				return err
			}

			var data []byte
			if format == "json" {
				if data, err = history.ExportJSON(items); err != nil {
					return err
				}
				data = append(data, '\n')
			} else {
				data = []byte(history.ExportMarkdown(items))
			}

			if file == "" || file == "-" {
				_, err = output(cmd).Write(data)
				return err
			}
			// SECURITY: owner read/write only; history holds source text.
			if err := util.AtomicWriteFile(file, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported %d translations to %s\n", RenderStatus("ok"), len(items), file)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format (markdown/json)")
	cmd.Flags().StringVarP(&file, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "export only the newest n items (0 = all)")
	return cmd
}

// printItems renders a history listing.
func printItems(cmd *cobra.Command, a *app, items []history.Item, caption string) error {
	if a.opts.json {
		if items == nil {
			items = []history.Item{}
		}
		return printJSON(cmd, items)
	}
	w := output(cmd)
	if len(items) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No translations found."))
		return nil
	}
	t := newTable("ID", "WHEN", "PAIR", "MODEL", "SOURCE")
	for _, it := range items {
		t.add(it.ShortID(), it.Age(), it.PairID, it.Model,
			util.TruncateWidth(util.OneLine(it.SourceText), sourcePreviewWidth))
	}
	fmt.Fprint(w, t.String())
	fmt.Fprintln(w, DimStyle.Render(caption))
	return nil
}
