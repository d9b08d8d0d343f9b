package util

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// forceExit is swapped out in tests
var forceExit = func() { os.Exit(ExitInterrupted) }

// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM. Running binaries share the terminal's process group, so they see
// the same SIGINT and end with an interrupted status. A second signal exits
// immediately. A nil logger resolves to slog.Default when a signal arrives.
// The returned stop function releases the signal channel.
func SetupSignalHandler(logger *slog.Logger) (context.Context, context.CancelFunc) {
	log := func() *slog.Logger {
		if logger != nil {
			return logger
		}
		return slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			log().Warn("received shutdown signal, stopping run", "signal", sig.String())
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			log().Warn("received second shutdown signal, forcing exit", "signal", sig.String())
			forceExit()
		case <-done:
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		select {
		case <-done:
		default:
			close(done)
		}
		cancel()
	}
	return ctx, stop
}
