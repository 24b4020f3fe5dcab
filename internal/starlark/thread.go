package starlark

import (
	"context"
	"log/slog"

	"go.starlark.net/starlark"
)

// DefaultMaxSteps bounds the work a single script run may do.
const DefaultMaxSteps = 10_000_000

// newThread creates a thread for one script run. print() goes to the logger.
// The returned stop function must be called when the run ends; until then a
// cancelled ctx aborts the script at its next step.
func newThread(ctx context.Context, name string, logger *slog.Logger, maxSteps uint64) (*starlark.Thread, func()) {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Debug("script print", slog.String("script", name), slog.String("msg", msg))
		},
	}
	if maxSteps > 0 {
		thread.SetMaxExecutionSteps(maxSteps)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()
	return thread, func() { close(done) }
}
