// Command tripgroups manages trip participant groups from the command line.
// Each invocation restores the vendor's session from the configured state
// store, applies one operation and saves the session back.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"tripgroups/internal/config"
	"tripgroups/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(runtimeDeps{
		loadConfig: config.Load,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		stop()
		exitFunc(1)
	}
}

// reportError prefixes engine errors with their code.
func reportError(w io.Writer, err error) {
	var coded *domain.Error
	if errors.As(err, &coded) {
		fmt.Fprintf(w, "error [%s]: %v\n", coded.Code, err)
		return
	}
	fmt.Fprintln(w, "error:", err)
}
