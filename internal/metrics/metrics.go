// Package metrics exposes Prometheus metrics and a health endpoint for the
// indicator service.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds all Prometheus metrics for the indicator engine.
type Metrics struct {
	ObservationsTotal prometheus.Counter
	RepaintsTotal     prometheus.Counter
	RejectedTotal     *prometheus.CounterVec // labels: reason
	ResultsTotal      *prometheus.CounterVec // labels: indicator
	ComputeDur        prometheus.Histogram

	SnapshotDur     prometheus.Histogram
	SnapshotsTotal  *prometheus.CounterVec // labels: sink
	RedisPublishDur prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram
	ReloadsTotal    prometheus.Counter

	RedisCircuitState    prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBufferedResults prometheus.Gauge

	WSClients        prometheus.Gauge
	WSDroppedResults prometheus.Counter
}

// New registers and returns all metrics.
func New() *Metrics {
	m := &Metrics{
		ObservationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taengine_observations_total",
			Help: "Total observations processed",
		}),
		RepaintsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taengine_repaints_total",
			Help: "Observations that repainted the current bar instead of opening a new one",
		}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taengine_rejected_observations_total",
			Help: "Observations rejected at ingestion",
		}, []string{"reason"}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taengine_results_total",
			Help: "Indicator values computed (by indicator)",
		}, []string{"indicator"}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taengine_compute_duration_seconds",
			Help:    "Engine compute latency per observation",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		SnapshotDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taengine_snapshot_duration_seconds",
			Help:    "Engine checkpoint latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taengine_snapshots_total",
			Help: "Checkpoints written (by sink)",
		}, []string{"sink"}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taengine_redis_publish_duration_seconds",
			Help:    "Redis result pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		ReloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taengine_spec_reloads_total",
			Help: "Successful indicator spec reloads",
		}),
		RedisCircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBufferedResults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taengine_redis_buffered_results",
			Help: "Results buffered locally while the Redis circuit is open",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taengine_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDroppedResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taengine_ws_dropped_results_total",
			Help: "Results dropped because a client send buffer was full",
		}),
	}

	prometheus.MustRegister(
		m.ObservationsTotal,
		m.RepaintsTotal,
		m.RejectedTotal,
		m.ResultsTotal,
		m.ComputeDur,
		m.SnapshotDur,
		m.SnapshotsTotal,
		m.RedisPublishDur,
		m.SQLiteCommitDur,
		m.ReloadsTotal,
		m.RedisCircuitState,
		m.RedisBufferedResults,
		m.WSClients,
		m.WSDroppedResults,
	)
	return m
}

// HealthStatus tracks dependency health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected  bool
	SQLiteOK        bool
	EngineOK        bool
	LastObsTS       int64
	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a health tracker with the start time recorded.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetEngineOK(v bool) {
	h.mu.Lock()
	h.EngineOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastObsTS(ts int64) {
	h.mu.Lock()
	h.LastObsTS = ts
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency probes until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles /healthz.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overall := "healthy"
	code := http.StatusOK
	if !h.EngineOK || (!h.RedisConnected && !h.SQLiteOK) {
		overall = "unhealthy"
		code = http.StatusServiceUnavailable
	} else if !h.RedisConnected || !h.SQLiteOK {
		overall = "degraded"
		code = http.StatusServiceUnavailable
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		EngineOK        bool    `json:"engine_ok"`
		LastObsTS       int64   `json:"last_obs_ts"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overall,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		EngineOK:        h.EngineOK,
		LastObsTS:       h.LastObsTS,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(status)
}

// Server exposes /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  zerolog.Logger
}

// NewServer creates the metrics and health server. Extra handlers (e.g. the
// WebSocket endpoint or a reload hook) can be attached via mux.
func NewServer(addr string, health *HealthStatus, logger zerolog.Logger, mux *http.ServeMux) *Server {
	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		log:  logger.With().Str("component", "metrics").Logger(),
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("listening")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("server error")
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
