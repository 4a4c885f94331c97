package logger

import (
	"io"
	"log/slog"
	"time"
)

// newTextHandler builds the console handler. Timestamps are left out;
// journald or the container runtime adds them.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			if a.Value.Kind() == slog.KindTime && tz != nil {
				a.Value = slog.TimeValue(a.Value.Time().In(tz))
			}
			return replaceLevelName(groups, a)
		},
	})
}

// replaceLevelName renders the custom trace level as "TRACE" instead of "DEBUG-4".
func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if len(groups) != 0 || a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level <= traceLevelValue {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
