package safego

import (
	"context"
	"log/slog"
)

func logPanic(ctx context.Context, l *slog.Logger, info PanicInfo) {
	l.LogAttrs(ctx, slog.LevelError, "safego: panic", info.Attrs()...)
}

func logError(ctx context.Context, l *slog.Logger, info ErrorInfo) {
	l.LogAttrs(ctx, slog.LevelError, "safego: error", info.Attrs()...)
}
