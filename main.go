// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eqviewer/cmd"
	applog "eqviewer/internal/log"
	"eqviewer/pkg/build"
)

// main is the entry point for the equalizer viewer.
//
// 1. Startup: build information, then command line parsing. Configuration
// and logging are set up by the selected command.
//
// 2. Run: the command owns the workbench until it finishes or a termination
// signal cancels its context.
//
// 3. Shutdown: deferred cleanup in the command, then a final log flush.
func main() {
	// Development builds run without ldflags and keep placeholder values.
	_ = build.Initialize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	_ = applog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
