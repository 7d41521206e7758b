package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/platform"
)

// Version will be set at build time via -ldflags
var Version = "dev"

const (
	exitError = 1
	exitPanic = 2
)

func main() {
	// Process-wide boundary: anything that escapes a command ends up here.
	defer func() {
		if r := recover(); r != nil {
			reportPanic(os.Stderr, r, debug.Stack())
			os.Exit(exitPanic)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr, platform.NewDetector())
	if err := a.execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitError)
	}
}

func reportPanic(w io.Writer, value any, stack []byte) {
	logger := slog.New(slog.NewTextHandler(w, nil))
	logger.Error("uncaught panic", "panic", fmt.Sprint(value), "stack", string(stack))
}
