package logging

import (
	"log/slog"
	"os"
)

// New builds the process-wide structured logger. JSON output keeps log
// aggregation happy in both local and cloud deployments.
func New(level slog.Level, service, version string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("version", version),
	)
}
