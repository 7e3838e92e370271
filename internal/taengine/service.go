// Package taengine wires the indicator engine to its collaborators: the CSV
// feed or a Redis bar stream on the way in, and Redis, SQLite, CSV files and
// the WebSocket hub on the way out.
package taengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"quantedge-ta/internal/feed"
	"quantedge-ta/internal/indicator"
	"quantedge-ta/internal/metrics"
	"quantedge-ta/internal/model"
	"quantedge-ta/internal/output"
	redisstore "quantedge-ta/internal/store/redis"
	sqlitestore "quantedge-ta/internal/store/sqlite"
	"quantedge-ta/internal/stream"
)

// Service is the top-level orchestrator. It owns the engine and serializes
// all access to it; collaborators hang off the sides.
type Service struct {
	cfg Config
	log zerolog.Logger

	mu     sync.Mutex // guards engine and lastTS
	engine *indicator.Engine
	lastTS int64

	redis     *redisstore.Writer
	publisher *redisstore.BufferedPublisher
	sqlWriter *sqlitestore.Writer
	sqlReader *sqlitestore.Reader
	hub       *stream.Hub
	prom      *metrics.Metrics
	health    *metrics.HealthStatus
	httpSrv   *metrics.Server

	resultCh chan model.IndicatorResult
	sqlDone  chan struct{}
}

// New builds the service: connects the optional stores, constructs the
// engine, and restores the warmest checkpoint available (redis first, then
// sqlite, otherwise cold).
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	log := logger.With().Str("component", "taengine").Logger()

	engine, err := indicator.NewEngine(cfg.Symbol, cfg.Specs)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	svc := &Service{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		prom:     metrics.New(),
		health:   metrics.NewHealthStatus(),
		hub:      stream.NewHub(logger),
		resultCh: make(chan model.IndicatorResult, 5000),
	}
	svc.hub.OnClientChange = func(n int) { svc.prom.WSClients.Set(float64(n)) }
	svc.hub.OnDrop = func() { svc.prom.WSDroppedResults.Inc() }

	svc.redis, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Logger:   logger,
	})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, continuing without hot tier")
		svc.redis = nil
	} else {
		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		cb.OnStateChange = func(_, to redisstore.State) {
			svc.prom.RedisCircuitState.Set(float64(to))
		}
		svc.publisher = redisstore.NewBufferedPublisher(svc.redis, cb, 0, logger)
		svc.publisher.OnBuffer = func(int) {
			svc.prom.RedisBufferedResults.Set(float64(svc.publisher.Buffered()))
		}
		svc.publisher.OnFlush = func(int) { svc.prom.RedisBufferedResults.Set(0) }
	}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Logger: logger})
	if err != nil {
		log.Warn().Err(err).Msg("sqlite writer unavailable, continuing without durable tier")
		svc.sqlWriter = nil
	} else {
		svc.sqlWriter.OnCommit = func(took time.Duration) {
			svc.prom.SQLiteCommitDur.Observe(took.Seconds())
		}
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath, logger)
	if err != nil {
		log.Warn().Err(err).Msg("sqlite reader unavailable")
		svc.sqlReader = nil
	}

	svc.restoreEngine()
	svc.health.SetEngineOK(true)
	return svc, nil
}

// restoreEngine tries redis, then sqlite, then starts cold.
func (svc *Service) restoreEngine() {
	var snap *indicator.EngineSnapshot
	var source string

	if svc.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		s, err := svc.redis.ReadSnapshot(ctx, svc.cfg.SnapshotKey)
		cancel()
		if err != nil {
			svc.log.Warn().Err(err).Msg("redis snapshot read failed")
		} else if s != nil {
			snap, source = s, "redis"
		}
	}
	if snap == nil && svc.sqlReader != nil {
		s, err := svc.sqlReader.ReadLatestSnapshot(svc.cfg.Symbol)
		if err != nil {
			svc.log.Warn().Err(err).Msg("sqlite snapshot read failed")
		} else if s != nil {
			snap, source = s, "sqlite"
		}
	}

	if snap == nil {
		svc.log.Info().Msg("no checkpoint found, starting cold")
		return
	}
	restored, cold, err := svc.engine.Restore(snap)
	if err != nil {
		svc.log.Warn().Err(err).Msg("checkpoint restore failed, starting cold")
		return
	}
	svc.lastTS = snap.LastTS
	svc.log.Info().
		Str("source", source).
		Int("restored", restored).
		Int("cold", cold).
		Int64("last_ts", snap.LastTS).
		Msg("engine restored from checkpoint")
}

// Run executes batch mode when an input CSV is configured, otherwise
// consumes the Redis bar stream until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", svc.hub.HandleWS)
	mux.HandleFunc("/reload", svc.handleReload)
	svc.httpSrv = metrics.NewServer(svc.cfg.HTTPAddr, svc.health, svc.log, mux)
	svc.httpSrv.Start()

	var rdb *goredis.Client
	if svc.redis != nil {
		rdb = svc.redis.Client()
	}
	if svc.sqlWriter != nil {
		svc.health.StartLivenessChecker(ctx, rdb, svc.sqlWriter.DB(), 10*time.Second)
	} else {
		svc.health.StartLivenessChecker(ctx, rdb, nil, 10*time.Second)
	}

	svc.sqlDone = make(chan struct{})
	if svc.sqlWriter != nil {
		go func() {
			svc.sqlWriter.Run(context.Background(), svc.resultCh)
			close(svc.sqlDone)
		}()
	} else {
		close(svc.sqlDone)
	}

	var err error
	if svc.cfg.InputCSV != "" {
		err = svc.runBatch(ctx)
	} else {
		go svc.snapshotLoop(ctx)
		err = svc.runStream(ctx)
	}

	svc.shutdown()
	return err
}

// runBatch computes the configured indicators over the whole input file and
// writes one aligned CSV per indicator.
func (svc *Service) runBatch(ctx context.Context) error {
	obs, err := feed.ReadFile(svc.cfg.InputCSV)
	if err != nil {
		return err
	}
	svc.log.Info().Int("observations", len(obs)).Str("file", svc.cfg.InputCSV).Msg("batch input loaded")

	series := make(map[string][]indicator.Value)

	for i, o := range obs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		results, err := svc.process(ctx, o)
		if err != nil {
			return fmt.Errorf("observation ts=%d: %w", o.TS, err)
		}
		appendSeries(series, i, results)
	}

	if err := os.MkdirAll(svc.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	// Re-read the spec set: a /reload during the run may have changed it.
	svc.mu.Lock()
	specs := svc.engine.Specs()
	svc.mu.Unlock()
	for _, spec := range specs {
		name := spec.Name()
		path := filepath.Join(svc.cfg.OutputDir, name+".csv")
		if err := output.WriteSeriesFile(path, spec, obs, series[name]); err != nil {
			return err
		}
		svc.log.Info().Str("file", path).Msg("series written")
	}

	svc.saveSnapshot(ctx)
	return nil
}

// appendSeries records one observation's results, keyed by indicator name so
// a spec reload mid-run cannot misalign the accumulation. An indicator that
// first appears at observation idx is backfilled with not-ready values so its
// series stays aligned to the input.
func appendSeries(series map[string][]indicator.Value, idx int, results []model.IndicatorResult) {
	for _, res := range results {
		vals := series[res.Name]
		for len(vals) < idx {
			vals = append(vals, indicator.Value{})
		}
		series[res.Name] = append(vals, indicator.Value{
			Value: res.Value,
			Upper: res.Upper,
			Lower: res.Lower,
			Ready: res.Ready,
		})
	}
}

// runStream consumes observation JSON from the configured Redis stream.
func (svc *Service) runStream(ctx context.Context) error {
	if svc.redis == nil {
		return fmt.Errorf("streaming mode needs redis (set INPUT_CSV for batch mode)")
	}
	rdb := svc.redis.Client()
	lastID := "$"
	svc.log.Info().Str("stream", svc.cfg.BarStream).Msg("consuming bar stream")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := rdb.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{svc.cfg.BarStream, lastID},
			Count:   100,
			Block:   2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			svc.log.Error().Err(err).Msg("xread error")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				lastID = msg.ID
				data, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}
				var obs model.Observation
				if err := json.Unmarshal([]byte(data), &obs); err != nil {
					svc.log.Warn().Err(err).Str("id", msg.ID).Msg("bad observation json")
					continue
				}
				live, _ := msg.Values["live"].(string)
				if live == "1" || live == "true" {
					svc.peek(ctx, obs)
					continue
				}
				if _, err := svc.process(ctx, obs); err != nil {
					svc.log.Warn().Err(err).Int64("ts", obs.TS).Msg("observation rejected")
				}
			}
		}
	}
}

// process feeds one committed observation through the engine and fans the
// results out to every sink.
func (svc *Service) process(ctx context.Context, obs model.Observation) ([]model.IndicatorResult, error) {
	svc.mu.Lock()
	if obs.TS < svc.lastTS {
		lastTS := svc.lastTS
		svc.mu.Unlock()
		svc.prom.RejectedTotal.WithLabelValues("out_of_order").Inc()
		return nil, fmt.Errorf("observation ts=%d precedes current bar ts=%d", obs.TS, lastTS)
	}
	repaint := svc.lastTS == obs.TS
	start := time.Now()
	results, err := svc.engine.Process(obs)
	took := time.Since(start)
	if err == nil {
		svc.lastTS = obs.TS
	}
	svc.mu.Unlock()

	if err != nil {
		svc.prom.RejectedTotal.WithLabelValues("non_finite").Inc()
		return nil, err
	}

	svc.prom.ObservationsTotal.Inc()
	if repaint {
		svc.prom.RepaintsTotal.Inc()
	}
	svc.prom.ComputeDur.Observe(took.Seconds())
	svc.health.SetLastObsTS(obs.TS)
	for _, res := range results {
		if res.Ready {
			svc.prom.ResultsTotal.WithLabelValues(res.Name).Inc()
		}
	}

	svc.publish(ctx, results)
	svc.hub.BroadcastBatch(results)
	if svc.sqlWriter != nil {
		for _, res := range results {
			select {
			case svc.resultCh <- res:
			default:
			}
		}
	}
	return results, nil
}

// peek previews a forming bar; results are published and broadcast but never
// persisted.
func (svc *Service) peek(ctx context.Context, obs model.Observation) {
	svc.mu.Lock()
	results := svc.engine.ProcessPeek(obs)
	svc.mu.Unlock()

	svc.publish(ctx, results)
	svc.hub.BroadcastBatch(results)
}

func (svc *Service) publish(ctx context.Context, results []model.IndicatorResult) {
	if svc.publisher == nil || len(results) == 0 {
		return
	}
	start := time.Now()
	if err := svc.publisher.PublishResults(ctx, results); err != nil {
		svc.log.Warn().Err(err).Msg("redis publish failed")
		return
	}
	svc.prom.RedisPublishDur.Observe(time.Since(start).Seconds())
}

// snapshotLoop checkpoints the engine periodically.
func (svc *Service) snapshotLoop(ctx context.Context) {
	interval := time.Duration(svc.cfg.SnapshotIntervalS) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.saveSnapshot(ctx)
		}
	}
}

func (svc *Service) saveSnapshot(ctx context.Context) {
	svc.mu.Lock()
	snap := svc.engine.Snapshot(svc.lastTS)
	svc.mu.Unlock()

	start := time.Now()
	if svc.redis != nil {
		if err := svc.redis.WriteSnapshot(ctx, svc.cfg.SnapshotKey, snap); err != nil {
			svc.log.Warn().Err(err).Msg("redis snapshot write failed")
		} else {
			svc.prom.SnapshotsTotal.WithLabelValues("redis").Inc()
		}
	}
	if svc.sqlWriter != nil {
		if err := svc.sqlWriter.SaveSnapshot(snap); err != nil {
			svc.log.Warn().Err(err).Msg("sqlite snapshot write failed")
		} else {
			svc.prom.SnapshotsTotal.WithLabelValues("sqlite").Inc()
		}
	}
	svc.prom.SnapshotDur.Observe(time.Since(start).Seconds())
}

// handleReload swaps the indicator spec set without restarting. The body is
// the same format as INDICATOR_SPECS, e.g. "SMA:50,RSI:14,BB:20:2.5".
// Surviving indicators keep their state.
func (svc *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	specs, err := ParseSpecs(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	svc.mu.Lock()
	preserved, created, err := svc.engine.ReloadSpecs(specs)
	svc.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	svc.prom.ReloadsTotal.Inc()
	svc.log.Info().Int("preserved", preserved).Int("created", created).Msg("specs reloaded")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"preserved": preserved, "created": created})
}

// shutdown takes a final checkpoint and closes every collaborator.
func (svc *Service) shutdown() {
	svc.log.Info().Msg("shutting down, saving final checkpoint")

	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	svc.saveSnapshot(shutCtx)

	if svc.publisher != nil {
		svc.publisher.Flush(shutCtx)
	}

	// Drain pending sqlite writes before closing the db.
	close(svc.resultCh)
	select {
	case <-svc.sqlDone:
	case <-shutCtx.Done():
	}
	svc.hub.Shutdown()
	if svc.httpSrv != nil {
		svc.httpSrv.Stop(shutCtx)
	}
	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
	if svc.redis != nil {
		svc.redis.Close()
	}
	svc.log.Info().Msg("shutdown complete")
}
