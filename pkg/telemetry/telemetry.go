package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"globaleaks/tlsworker/pkg/config"
	"globaleaks/tlsworker/pkg/telemetry/health"
	"globaleaks/tlsworker/pkg/telemetry/logging"
	"globaleaks/tlsworker/pkg/telemetry/metrics"
	"globaleaks/tlsworker/pkg/telemetry/tracing"
)

// scrapeTimeout bounds one metrics scrape on the admin listener.
const scrapeTimeout = 10 * time.Second

// scrapeErrorLog reports gathering errors through the process logger.
type scrapeErrorLog struct {
	log *logging.Logger
}

func (l scrapeErrorLog) Println(v ...any) {
	l.log.Warn("metrics scrape error", "error", fmt.Sprint(v...))
}

// Telemetry bundles the logger, metrics collector, tracer and health
// checker built from one TelemetryConfig.
type Telemetry struct {
	cfg *config.TelemetryConfig

	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	health   *health.Checker
	info     health.VersionInfo
}

// New builds every telemetry component. Logs go to out, or stdout when
// out is nil.
func New(cfg *config.TelemetryConfig, info health.VersionInfo, out io.Writer) (*Telemetry, error) {
	if cfg == nil {
		return nil, errors.New("telemetry config is nil")
	}

	logCfg := logging.FromSettings(cfg.Logging)
	logCfg.Writer = out
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	tracer, err := tracing.New(&cfg.Tracing, info.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.NewCollector(&cfg.Metrics, registry),
		tracer:   tracer,
		health:   health.New(cfg.Health.CheckTimeout),
		info:     info,
	}, nil
}

// Logger returns the process logger.
func (t *Telemetry) Logger() *logging.Logger { return t.logger }

// Metrics returns the metrics collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the connection tracer.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Handler returns the admin endpoints: metrics and health, each only when
// enabled. It returns nil when neither is.
func (t *Telemetry) Handler() http.Handler {
	if !t.cfg.Metrics.Enabled && !t.cfg.Health.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	if t.cfg.Metrics.Enabled {
		mux.Handle(t.cfg.Metrics.Path, t.metrics.HandlerWithOptions(promhttp.HandlerOpts{
			ErrorLog:          scrapeErrorLog{log: t.logger.With("component", "metrics")},
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
			Timeout:           scrapeTimeout,
		}))
	}
	if t.cfg.Health.Enabled {
		health.Mount(mux, t.health, health.Paths{
			Liveness:  t.cfg.Health.LivenessPath,
			Readiness: t.cfg.Health.ReadinessPath,
			Version:   t.cfg.Health.VersionPath,
		}, t.info)
	}
	return mux
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
