// Package redis is the hot tier: it fans computed indicator results out to
// stream consumers and keeps the most recent engine checkpoint for fast
// restarts. Durability lives in sqlite; everything here carries a TTL or a
// capped stream length.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"quantedge-ta/internal/indicator"
	"quantedge-ta/internal/model"
)

const (
	// streamMaxLen caps each indicator stream to roughly a day of 1m bars.
	streamMaxLen     = 1500
	defaultLatestTTL = 30 * time.Minute
	snapshotTTL      = 24 * time.Hour
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	Logger   zerolog.Logger
}

// Writer publishes indicator results and engine checkpoints to Redis.
type Writer struct {
	client *goredis.Client
	log    zerolog.Logger
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log := cfg.Logger.With().Str("component", "redis").Logger()
	log.Info().Str("addr", cfg.Addr).Msg("connected")
	return &Writer{client: client, log: log}, nil
}

// PublishResults writes a batch of results in one pipeline. Committed ready
// results get the full treatment: XADD to the indicator stream, SET of the
// latest-value key, and PUBLISH for live subscribers. Forming (Live) results
// are publish-only, and warm-up results are skipped entirely.
func (w *Writer) PublishResults(ctx context.Context, results []model.IndicatorResult) error {
	if len(results) == 0 {
		return nil
	}

	pipe := w.client.Pipeline()
	for i := range results {
		res := &results[i]
		if !res.Ready {
			continue
		}

		payload := string(res.JSON())
		pubsubCh := res.PubSubChannel()

		if res.Live {
			pipe.Publish(ctx, pubsubCh, payload)
			continue
		}

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: res.StreamKey(),
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		})
		pipe.Set(ctx, res.LatestKey(), payload, defaultLatestTTL)
		pipe.Publish(ctx, pubsubCh, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis result pipeline (%d results): %w", len(results), err)
	}
	return nil
}

// WriteSnapshot stores an engine checkpoint under key. The TTL is generous
// because sqlite keeps the durable copy.
func (w *Writer) WriteSnapshot(ctx context.Context, key string, snap *indicator.EngineSnapshot) error {
	data, err := snap.JSON()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return w.client.Set(ctx, key, string(data), snapshotTTL).Err()
}

// ReadSnapshot loads the engine checkpoint stored under key. Returns
// (nil, nil) when no checkpoint exists.
func (w *Writer) ReadSnapshot(ctx context.Context, key string) (*indicator.EngineSnapshot, error) {
	data, err := w.client.Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get snapshot %s: %w", key, err)
	}
	return indicator.ParseEngineSnapshot([]byte(data))
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
