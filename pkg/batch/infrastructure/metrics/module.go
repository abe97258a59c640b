package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	metrics "github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// NewMetricRecorder builds the recorder named by observability.metrics and
// ties exporters and the /metrics endpoint to the application lifecycle.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.ObservabilityConfig) (metrics.MetricRecorder, error) {
	switch cfg.Metrics {
	case config.MetricsPrometheus:
		r := NewPrometheusRecorder()
		if cfg.MetricsAddr != "" {
			serveMetrics(lc, cfg.MetricsAddr, r.Handler())
		}
		return r, nil
	case config.MetricsOTel:
		mp, err := NewMeterProvider(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: mp.Shutdown})
		return NewOTelRecorder(mp)
	default:
		return metrics.NewNoOpMetricRecorder(), nil
	}
}

// NewTracer returns an OpenTelemetry tracer when tracing is enabled.
func NewTracer(lc fx.Lifecycle, cfg *config.ObservabilityConfig) (metrics.Tracer, error) {
	if !cfg.TracingEnabled {
		return metrics.NewNoOpTracer(), nil
	}
	tp, err := NewTracerProvider(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	return NewOpenTelemetryTracer(tp), nil
}

func serveMetrics(lc fx.Lifecycle, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger.Infof("Serving Prometheus metrics on %s/metrics", ln.Addr())
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics endpoint stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}

// Module provides the configured MetricRecorder and Tracer. It replaces
// core/metrics.Module.
var Module = fx.Provide(NewMetricRecorder, NewTracer)
