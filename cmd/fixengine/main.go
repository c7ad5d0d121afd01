// Command fixengine runs a FIX session as a standalone process, wiring
// pkg/config, pkg/engine, and pkg/metrics together behind a small cobra CLI.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/fixengine/cmd/fixengine/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
