package follower

import (
	"context"
	"log/slog"
)

// levelTrace extends slog's level set the way several structured-logging
// setups do, for the "silly"/reconnect-chatter logging spec.md calls for
// without requiring every caller to install a custom handler.
const levelTrace = slog.Level(-8)

func logTrace(msg string, args ...any) {
	slog.Log(context.Background(), levelTrace, msg, args...)
}
