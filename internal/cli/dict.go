// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/prompt"
)

func newDictCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dict",
		Aliases: []string{"dictionary"},
		Short:   "Manage per-language-pair term dictionaries",
		Long: `Dictionary entries force the model to translate a term a specific way.
Entries belong to the active pair (--pair, default translate.pair) and are
numbered from 1 in the order they were added. When two entries share a
source term, the later one wins.`,
	}
	cmd.AddCommand(
		newDictPairsCommand(a),
		newDictListCommand(a),
		newDictAddCommand(a),
		newDictUpdateCommand(a),
		newDictRemoveCommand(a),
		newDictClearCommand(a),
		newDictImportCommand(a),
		newDictExportCommand(a),
	)
	return cmd
}

// pairSummary describes one pair for `dict pairs`.
type pairSummary struct {
	Pair     string `json:"pair"`
	Label    string `json:"label"`
	Entries  int    `json:"entries"`
	Defaults int    `json:"defaults"`
	Builtin  bool   `json:"builtin"`
}

func newDictPairsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pairs",
		Short: "List language pairs and their entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.dictionary()
			if err != nil {
				return err
			}

			byID := make(map[string]*pairSummary)
			for _, t := range prompt.Templates() {
				byID[t.PairID] = &pairSummary{Pair: t.PairID, Label: t.Label, Defaults: len(t.DefaultDictionary), Builtin: true}
			}
			for _, id := range store.Pairs() {
				s, ok := byID[id]
				if !ok {
					s = &pairSummary{Pair: id, Label: pairLabel(id)}
					byID[id] = s
				}
				s.Entries = len(store.Get(id))
			}
			pairs := make([]pairSummary, 0, len(byID))
			for _, s := range byID {
				pairs = append(pairs, *s)
			}
			sort.Slice(pairs, func(i, j int) bool { return pairs[i].Pair < pairs[j].Pair })

			if a.opts.json {
				return printJSON(cmd, pairs)
			}
			t := newTable("", "PAIR", "LANGUAGES", "ENTRIES", "DEFAULTS")
			for _, p := range pairs {
				mark := ""
				if p.Pair == a.cfg.Translate.Pair {
					mark = HighlightStyle.Render("*")
				}
				t.add(mark, p.Pair, p.Label, strconv.Itoa(p.Entries), strconv.Itoa(p.Defaults))
			}
			fmt.Fprint(output(cmd), t.String())
			return nil
		},
	}
}

func newDictListCommand(a *app) *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the entries for the active pair",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.dictionary()
			if err != nil {
				return err
			}
			pair := a.cfg.Translate.Pair
			entries := store.Get(pair)

			var builtin []dictionary.Entry
			if defaults {
				if t, ok := prompt.Lookup(pair); ok {
					builtin = t.DefaultDictionary
				}
			}

			if a.opts.json {
				data := map[string]interface{}{"pair": pair, "entries": entries}
				if defaults {
					data["defaults"] = nonNil(builtin)
					data["glossary"] = nonNil(prompt.MergeGlossary(entries, builtin))
				}
				return printJSON(cmd, data)
			}

			w := output(cmd)
			fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Dictionary %s (%s)", pair, pairLabel(pair))))
			fmt.Fprint(w, renderEntries(entries))
			if defaults {
				fmt.Fprintln(w, TitleStyle.Render("Built-in defaults"))
				fmt.Fprint(w, renderEntries(builtin))
				fmt.Fprintln(w, TitleStyle.Render("Glossary sent to the model"))
				fmt.Fprint(w, prompt.RenderGlossary(prompt.MergeGlossary(entries, builtin)))
				fmt.Fprintln(w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "also show built-in entries and the merged glossary")
	return cmd
}

func newDictAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "add <from> <to>",
		Short:   "Add an entry to the active pair",
		Example: `  otrans dict add 카카오톡 KakaoTalk --pair ko-en`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.dictionary()
			if err != nil {
				return err
			}
			e := dictionary.Entry{From: args[0], To: args[1]}
			if err := store.Add(a.cfg.Translate.Pair, e); err != nil {
				return err
			}
			return reportEntry(cmd, a, "Added", len(store.Get(a.cfg.Translate.Pair)), e)
		},
	}
}

func newDictUpdateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <n> <from> <to>",
		Short: "Replace entry number n of the active pair",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseEntryNumber(args[0])
			if err != nil {
				return err
			}
			store, err := a.dictionary()
			if err != nil {
				return err
			}
			e := dictionary.Entry{From: args[1], To: args[2]}
			if err := store.Update(a.cfg.Translate.Pair, n-1, e); err != nil {
				return err
			}
			return reportEntry(cmd, a, "Updated", n, e)
		},
	}
}

func newDictRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <n>",
		Aliases: []string{"rm"},
		Short:   "Remove entry number n from the active pair",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseEntryNumber(args[0])
			if err != nil {
				return err
			}
			store, err := a.dictionary()
			if err != nil {
				return err
			}
			entries := store.Get(a.cfg.Translate.Pair)
			if err := store.Remove(a.cfg.Translate.Pair, n-1); err != nil {
				return err
			}
			return reportEntry(cmd, a, "Removed", n, entries[n-1])
		},
	}
}

func newDictClearCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the active pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.dictionary()
			if err != nil {
				return err
			}
			pair := a.cfg.Translate.Pair
			n := len(store.Get(pair))
			if !force {
				ok, err := confirm(cmd, fmt.Sprintf("Remove all %d entries for %s?", n, pair))
				if err != nil || !ok {
					return err
				}
			}
			if err := store.Clear(pair); err != nil {
				return err
			}
			if a.opts.json {
				return printJSON(cmd, map[string]interface{}{"pair": pair, "removed": n})
			}
			fmt.Fprintf(output(cmd), "%s Removed %d entries for %s\n", RenderStatus("ok"), n, pair)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not ask for confirmation")
	return cmd
}

func newDictImportCommand(a *app) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import entries from a JSON file",
		Long: `Import entries from a JSON file. The file holds either a list of
{"from": ..., "to": ...} objects for the active pair, or the dictionary file
layout {"dictionaries": {"ko-en": [...]}} covering several pairs.

Entries are appended unless --replace is given. Entries with a blank side
are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := readDictionaryFile(args[0], a.cfg.Translate.Pair)
			if err != nil {
				return err
			}
			store, err := a.dictionary()
			if err != nil {
				return err
			}

			pairs := make([]string, 0, len(sets))
			for pair := range sets {
				pairs = append(pairs, pair)
			}
			sort.Strings(pairs)

			imported := make(map[string]int, len(sets))
			for _, pair := range pairs {
				entries := dictionary.Filter(sets[pair])
				if !replace {
					entries = append(store.Get(pair), entries...)
				}
				if err := store.Set(pair, entries); err != nil {
					return fmt.Errorf("import %s: %w", pair, err)
				}
				imported[pair] = len(dictionary.Filter(sets[pair]))
			}

			if a.opts.json {
				return printJSON(cmd, imported)
			}
			for _, pair := range pairs {
				fmt.Fprintf(output(cmd), "%s Imported %d entries for %s\n", RenderStatus("ok"), imported[pair], pair)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace existing entries instead of appending")
	return cmd
}

func newDictExportCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the dictionary as JSON for import elsewhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.dictionary()
			if err != nil {
				return err
			}
			var data interface{} = store.Get(a.cfg.Translate.Pair)
			if all {
				dicts := make(map[string][]dictionary.Entry)
				for _, pair := range store.Pairs() {
					dicts[pair] = store.Get(pair)
				}
				data = map[string]interface{}{"dictionaries": dicts}
			}
			enc := json.NewEncoder(output(cmd))
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(data)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "export every pair in the dictionary file layout")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// readDictionaryFile decodes either import layout into pair -> entries.
func readDictionaryFile(path, defaultPair string) (map[string][]dictionary.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []dictionary.Entry
	if err := json.Unmarshal(data, &list); err == nil {
		return map[string][]dictionary.Entry{defaultPair: list}, nil
	}

	var file struct {
		Dictionaries map[string][]dictionary.Entry `json:"dictionaries"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, ErrInvalidFormat("dictionary file", path, `[{"from": "카카오톡", "to": "KakaoTalk"}]`)
	}
	out := make(map[string][]dictionary.Entry, len(file.Dictionaries))
	for pair, entries := range file.Dictionaries {
		pair = strings.ToLower(strings.TrimSpace(pair))
		if pair != "" {
			out[pair] = append(out[pair], entries...)
		}
	}
	return out, nil
}

func parseEntryNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidFormat("entry number", s, "a number from 'otrans dict list', starting at 1")
	}
	return n, nil
}

func reportEntry(cmd *cobra.Command, a *app, verb string, n int, e dictionary.Entry) error {
	if a.opts.json {
		return printJSON(cmd, map[string]interface{}{
			"pair":  a.cfg.Translate.Pair,
			"index": n,
			"entry": e,
		})
	}
	fmt.Fprintf(output(cmd), "%s %s #%d %s (%s)\n", RenderStatus("ok"), verb, n, e, a.cfg.Translate.Pair)
	return nil
}

// renderEntries numbers entries from 1.
func renderEntries(entries []dictionary.Entry) string {
	if len(entries) == 0 {
		return DimStyle.Render("(no entries)") + "\n"
	}
	t := newTable("#", "FROM", "TO")
	for i, e := range entries {
		t.add(strconv.Itoa(i+1), e.From, e.To)
	}
	return t.String()
}

func nonNil(entries []dictionary.Entry) []dictionary.Entry {
	if entries == nil {
		return []dictionary.Entry{}
	}
	return entries
}

// confirm asks a yes/no question on stdin. Without a terminal it refuses
// rather than guessing.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	if !isTerminal(cmd.InOrStdin()) {
		return false, &ValidationError{Field: "confirmation", Reason: "stdin is not a terminal", Example: "re-run with --force"}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
