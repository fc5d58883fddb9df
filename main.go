// ./main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/nr-bulk-delete/cmd"
	"github.com/xkilldash9x/nr-bulk-delete/internal/deleter"
	"github.com/xkilldash9x/nr-bulk-delete/internal/observability"
)

// Allows mocking os.Exit and stderr in tests.
var (
	osExit           = os.Exit
	stderr io.Writer = os.Stderr
)

func main() {
	defer handlePanic()

	// Ctrl+C stops the run after the in-flight deletion; the partial summary is still printed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()
	osExit(code)
}

// handlePanic flushes logs and reports the crash with a stack trace instead
// of letting the runtime dump goroutines over the transcript.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()
		fmt.Fprintf(stderr, "panic: %v\n\n%s\n", r, debug.Stack())
		osExit(deleter.ExitError)
	}
}
