package logger

import (
	"context"
	"io"
	"log/slog"
)

const ansiReset = "\033[0m"

// levelColors buckets by severity threshold rather than exact level, so a
// custom level between two named ones (e.g. an slog.LevelInfo+2 "notice")
// still picks up the next color band instead of falling through to the
// reset default the teacher's exact-match switch would give it.
var levelColors = []struct {
	min   slog.Level
	color string
}{
	{slog.LevelError, "\033[31m"}, // Red
	{slog.LevelWarn, "\033[33m"},  // Yellow
	{slog.LevelInfo, "\033[32m"},  // Green
	{slog.LevelDebug, "\033[36m"}, // Cyan
}

func colorFor(level slog.Level) string {
	for _, lc := range levelColors {
		if level >= lc.min {
			return lc.color
		}
	}
	return ansiReset
}

// ColorTextHandler wraps slog.TextHandler, prefixing each record's level
// with an ANSI color band so a foreground bridge session is easier to
// scan for warnings and errors among routine child-process chatter.
type ColorTextHandler struct {
	*slog.TextHandler
}

// NewColorTextHandler builds a ColorTextHandler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	return &ColorTextHandler{TextHandler: slog.NewTextHandler(w, opts)}
}

// Handle implements slog.Handler by splicing a colored level tag onto the
// front of the message before delegating to the wrapped text handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Message = colorFor(r.Level) + r.Level.String() + ansiReset + "  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}
