package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger at the given level and installs it as the
// process default so library code using slog.Default() picks it up.
func New(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}
