package shutdown

import (
	"context"
	"os/signal"
)

// Context is cancelled by the first interrupt or termination signal.
// Calling stop restores default handling, so a second Ctrl+C kills the
// process even if finalization hangs.
func Context(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}
