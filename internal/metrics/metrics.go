// Package metrics exposes the gateway's Prometheus surface, served on its
// own listener (MetricsAddr) so a slow scrape never competes with the
// Agent/HTTP boundary's accept loop.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentgateway_active_agents",
		Help: "Number of Agent WebSocket sessions currently registered.",
	})

	ActiveConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentgateway_active_conversations",
		Help: "Number of conversations currently bound to an Agent.",
	})

	RpcInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentgateway_rpc_inflight",
		Help: "Number of RPC calls currently awaiting an Agent reply.",
	})

	RpcTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentgateway_rpc_total",
		Help: "Total RPC calls completed, by operation and outcome.",
	}, []string{"operation", "outcome"})

	RpcDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentgateway_rpc_duration_seconds",
		Help:    "RPC round-trip latency from HTTP boundary to Agent reply.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Outcome labels for RpcTotal.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ObserveRPC records one completed RPC call's latency and outcome.
func ObserveRPC(operation string, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	RpcTotal.WithLabelValues(operation, outcome).Inc()
	RpcDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Serve runs a dedicated metrics HTTP server on addr until ctx is cancelled.
// A blank addr means metrics are disabled; Serve returns nil immediately.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
