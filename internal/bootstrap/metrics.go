package bootstrap

import (
	"log/slog"

	"github.com/festa-portal/portal-client/config"
	"github.com/festa-portal/portal-client/internal/observability/statsd"
)

// BuildMetricsSink returns a StatsD client when metrics are enabled. A dial
// failure is logged and metrics are disabled rather than failing startup.
func BuildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	obsLogger := logger.With("component", "observability")

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  obsLogger,
	})
	if err != nil {
		obsLogger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}
