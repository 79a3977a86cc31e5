// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/otrans/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCommand(a),
		newConfigPathCommand(a),
		newConfigInitCommand(a),
		newConfigGetCommand(a),
		newConfigSetCommand(a),
		newConfigKeysCommand(a),
	)
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file, environment and flags)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.opts.json {
				return printJSON(cmd, a.cfg)
			}
			fmt.Fprint(output(cmd), a.cfg.String())
			return nil
		},
	}
}

func newConfigPathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration and data file locations",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath(a)
			if a.opts.json {
				return printJSON(cmd, map[string]string{"config": path})
			}
			fmt.Fprintln(output(cmd), path)
			return nil
		},
	}
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with default values",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath(a)
			if _, err := os.Stat(path); err == nil && !force {
				return &ValidationError{Field: "config", Value: path, Reason: "file already exists", Example: "otrans config init --force"}
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(output(cmd), "%s Wrote %s\n", RenderStatus("ok"), path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective setting, e.g. ollama.url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return &ValidationError{Field: "key", Value: args[0], Reason: err.Error(), Example: "otrans config keys"}
			}
			if a.opts.json {
				return printJSON(cmd, map[string]interface{}{args[0]: v})
			}
			fmt.Fprintln(output(cmd), v)
			return nil
		},
	}
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the configuration file",
		Long: `Change one setting in the configuration file. Only the file is
edited; environment variables and flags are not written back.`,
		Example:     `  otrans config set translate.pair en-ko`,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath(a)
			if strings.EqualFold(filepath.Ext(path), ".json") {
				return &ConfigError{Path: path, Err: errors.New("config set only edits TOML files")}
			}

			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return &ConfigError{Path: path, Err: err}
				}
			}
			cfg.SetDefaults()
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &ValidationError{Field: "key", Value: args[0], Reason: err.Error(), Example: "otrans config keys"}
			}
			if err := cfg.Validate(); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			v, _ := cfg.Get(args[0])
			fmt.Fprintf(output(cmd), "%s %s = %v\n", RenderStatus("ok"), args[0], v)
			return nil
		},
	}
}

func newConfigKeysCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "keys",
		Short:       "List every configuration key",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := config.GetAllKeys()
			if a.opts.json {
				return printJSON(cmd, keys)
			}
			fmt.Fprintln(output(cmd), strings.Join(keys, "\n"))
			return nil
		},
	}
}

// configFilePath is --config or the default file location.
func configFilePath(a *app) string {
	if a.opts.configPath != "" {
		return a.opts.configPath
	}
	return defaultConfigPath()
}
