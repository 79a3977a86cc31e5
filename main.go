// otrans - streaming translation through a local Ollama server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/otrans/internal/cli"
)

// Set via -ldflags "-X main.version=... -X main.gitCommit=... -X main.buildDate=...".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = gitCommit
	cli.BuildDate = buildDate
	os.Exit(cli.Execute())
}
