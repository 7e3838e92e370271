package redis

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"quantedge-ta/internal/model"
)

const defaultMaxBuffered = 10000

// BufferedPublisher wraps a Writer with a circuit breaker. While the breaker
// is open, committed results are buffered in memory instead of being dropped,
// and flushed in order once Redis recovers. Forming (Live) results are never
// buffered: a stale preview is worthless by the time the circuit closes.
type BufferedPublisher struct {
	writer *Writer
	cb     *CircuitBreaker
	log    zerolog.Logger

	mu     sync.Mutex
	buffer []model.IndicatorResult
	maxBuf int

	// OnBuffer and OnFlush feed metrics, when set.
	OnBuffer func(count int)
	OnFlush  func(count int)
}

// NewBufferedPublisher wraps w with cb. maxBuffered <= 0 selects the default
// cap; past the cap the oldest buffered results are dropped.
func NewBufferedPublisher(w *Writer, cb *CircuitBreaker, maxBuffered int, logger zerolog.Logger) *BufferedPublisher {
	if maxBuffered <= 0 {
		maxBuffered = defaultMaxBuffered
	}
	bp := &BufferedPublisher{
		writer: w,
		cb:     cb,
		log:    logger.With().Str("component", "redis-buffer").Logger(),
		buffer: make([]model.IndicatorResult, 0, 256),
		maxBuf: maxBuffered,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		bp.log.Warn().Stringer("from", from).Stringer("to", to).Msg("circuit state change")
		if to == StateClosed {
			go bp.Flush(context.Background())
		}
	}
	return bp
}

// PublishResults publishes through the circuit breaker, buffering committed
// results while the circuit is open.
func (bp *BufferedPublisher) PublishResults(ctx context.Context, results []model.IndicatorResult) error {
	err := bp.cb.Execute(func() error {
		return bp.writer.PublishResults(ctx, results)
	})
	if err == ErrCircuitOpen {
		bp.bufferCommitted(results)
		return nil
	}
	return err
}

// State returns the breaker state, for health reporting.
func (bp *BufferedPublisher) State() State {
	return bp.cb.CurrentState()
}

// Buffered returns how many results are currently held.
func (bp *BufferedPublisher) Buffered() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}

// Flush publishes everything buffered. Called automatically when the circuit
// closes; safe to call at shutdown as a last attempt.
func (bp *BufferedPublisher) Flush(ctx context.Context) {
	bp.mu.Lock()
	pending := bp.buffer
	bp.buffer = make([]model.IndicatorResult, 0, 256)
	bp.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	if err := bp.writer.PublishResults(ctx, pending); err != nil {
		bp.log.Error().Err(err).Int("count", len(pending)).Msg("flush failed, results dropped")
		return
	}
	bp.log.Info().Int("count", len(pending)).Msg("flushed buffered results")
	if bp.OnFlush != nil {
		bp.OnFlush(len(pending))
	}
}

func (bp *BufferedPublisher) bufferCommitted(results []model.IndicatorResult) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	added := 0
	for _, r := range results {
		if !r.Ready || r.Live {
			continue
		}
		bp.buffer = append(bp.buffer, r)
		added++
	}
	if over := len(bp.buffer) - bp.maxBuf; over > 0 {
		bp.buffer = bp.buffer[over:]
		bp.log.Warn().Int("dropped", over).Msg("buffer cap reached, dropped oldest")
	}
	if added > 0 && bp.OnBuffer != nil {
		bp.OnBuffer(added)
	}
}
