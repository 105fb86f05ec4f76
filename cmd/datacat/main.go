// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

// Command datacat is the entry point for the FCC dataset catalog.
//
// It exposes two subcommands: "serve" runs the HTTP API server with the
// dictionary file watcher, and "import" ingests dictionary files from the
// command line using the same pipeline.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
