package telemetry

import (
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// NewLogger builds a slog.Logger for the given format ("json" or "text")
// and level ("debug", "info", "warn", "error"). Unrecognized values fall
// back to json/info rather than failing startup.
func NewLogger(format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewMetricsRegistry builds a fresh Prometheus registry with the given
// collectors registered. A registration failure is logged and skipped
// rather than failing startup, since metrics collection is never
// critical-path for processing.
func NewMetricsRegistry(logger *slog.Logger, collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Warn("metrics collector registration failed", "error", err)
		}
	}
	return reg
}
