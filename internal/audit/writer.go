package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bastion/internal/platform/metrics"
	"bastion/pkg/requestcontext"
	"bastion/pkg/sentinel"
)

var tracer trace.Tracer = otel.Tracer("bastion/internal/audit")

// State is the writer lifecycle phase.
type State int

const (
	// StateIdle: constructed, timer not started. Log is accepted.
	StateIdle State = iota
	// StateRunning: timer active.
	StateRunning
	// StateDraining: Shutdown in progress, timer stopped, flush loop active.
	StateDraining
	// StateStopped: queue drained, no further background activity.
	StateStopped
)

// Config tunes the writer's batching behavior.
type Config struct {
	// FlushInterval is the timer cadence for background flushes.
	FlushInterval time.Duration
	// BatchSize is the maximum events removed per flush; reaching it on
	// enqueue also triggers an immediate flush.
	BatchSize int
	// MaxQueueDepth caps the in-memory queue. Zero means unbounded; when
	// exceeded the oldest event is shed and counted in Dropped.
	MaxQueueDepth int
}

// DefaultConfig matches the production cadence: flush every second or every
// hundred events, whichever comes first, with no queue cap.
func DefaultConfig() Config {
	return Config{
		FlushInterval: time.Second,
		BatchSize:     100,
	}
}

// drainRetryDelay spaces out flush retries while Shutdown drains against a
// failing sink.
const drainRetryDelay = 100 * time.Millisecond

// Writer buffers audit events and flushes them to a Sink in FIFO batches.
//
// Log is fire-and-forget: persistence failures never propagate to producers.
// The only signals of a sustained sink outage are the logged errors and the
// growing QueueDepth, which operators monitor via metrics.
type Writer struct {
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config

	mu      sync.Mutex // guards queue, dropped, state
	queue   []Event
	dropped int64
	state   State

	// flushMu serializes flush bodies so a failed batch is requeued at the
	// head before the next flush dequeues; this keeps batches persisted in
	// append order even when a size-triggered flush and a timer flush race.
	flushMu sync.Mutex

	lifecycleMu sync.Mutex
	stopTimer   chan struct{}
}

// Option configures a Writer.
type Option func(*Writer)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(w *Writer) {
		w.cfg = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) {
		w.metrics = m
	}
}

// New constructs a Writer. The flush timer is NOT started; call Start once
// the process is ready for background activity. Tests and offline
// configurations drive Flush manually instead.
func New(sink Sink, opts ...Option) (*Writer, error) {
	if sink == nil {
		return nil, errors.New("audit sink is required")
	}

	w := &Writer{
		sink:   sink,
		logger: slog.Default(),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.cfg.BatchSize <= 0 {
		return nil, errors.New("audit batch size must be positive")
	}
	if w.cfg.FlushInterval <= 0 {
		return nil, errors.New("audit flush interval must be positive")
	}
	return w, nil
}

// Log enriches the event with ambient request context and appends it to the
// queue. Reaching BatchSize triggers an immediate background flush in
// addition to the timer. Log never fails; a full queue (when MaxQueueDepth
// is set) sheds the oldest event.
func (w *Writer) Log(ctx context.Context, event Event) {
	event = w.enrich(ctx, event)

	w.mu.Lock()
	if w.cfg.MaxQueueDepth > 0 && len(w.queue) >= w.cfg.MaxQueueDepth {
		w.queue = w.queue[1:]
		w.dropped++
		if w.metrics != nil {
			w.metrics.AuditEventsDropped.Inc()
		}
		w.logger.Warn("audit queue full, dropping oldest event",
			"max_depth", w.cfg.MaxQueueDepth,
			"dropped_total", w.dropped,
		)
	}
	w.queue = append(w.queue, event)
	depth := len(w.queue)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.AuditQueueDepth.Set(float64(depth))
	}

	if depth >= w.cfg.BatchSize {
		go w.Flush(context.WithoutCancel(ctx))
	}
}

// LogSync bypasses the queue and writes the enriched event straight to the
// sink. Use it when the caller needs a synchronous durability guarantee.
// After Shutdown completes it returns sentinel.ErrClosed.
func (w *Writer) LogSync(ctx context.Context, event Event) error {
	if w.CurrentState() == StateStopped {
		return fmt.Errorf("%w: audit writer", sentinel.ErrClosed)
	}
	return w.sink.InsertOne(ctx, w.enrich(ctx, event))
}

// Flush drains up to BatchSize events from the head of the queue into the
// sink. It never reports an error to its caller (it is typically invoked
// from a timer); a failed batch is requeued at the head and logged.
func (w *Writer) Flush(ctx context.Context) {
	_ = w.flush(ctx)
}

func (w *Writer) flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return nil
	}
	n := len(w.queue)
	if n > w.cfg.BatchSize {
		n = w.cfg.BatchSize
	}
	batch := make([]Event, n)
	copy(batch, w.queue[:n])
	w.queue = w.queue[n:]
	w.mu.Unlock()

	ctx, span := tracer.Start(ctx, "audit.flush")
	defer span.End()
	span.SetAttributes(attribute.Int("audit.batch_size", n))

	if err := w.sink.InsertBatch(ctx, batch); err != nil {
		// Requeue at the head so the original order is preserved on the
		// next attempt. At-least-once: never drop within this process.
		w.mu.Lock()
		w.queue = append(batch, w.queue...)
		depth := len(w.queue)
		w.mu.Unlock()

		if w.metrics != nil {
			w.metrics.AuditFlushFailures.Inc()
			w.metrics.AuditQueueDepth.Set(float64(depth))
		}
		span.SetStatus(codes.Error, "batch insert failed")
		span.RecordError(err)
		w.logger.Error("audit flush failed, batch requeued",
			"error", err,
			"batch_size", n,
			"queue_depth", depth,
		)
		return err
	}

	if w.metrics != nil {
		w.metrics.AuditEventsWritten.Add(float64(n))
		w.metrics.AuditQueueDepth.Set(float64(w.QueueDepth()))
	}
	return nil
}

// Start launches the background flush timer. Idempotent.
func (w *Writer) Start() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if w.stopTimer != nil {
		return
	}
	stop := make(chan struct{})
	w.stopTimer = stop
	w.setState(StateRunning)
	go w.timerLoop(stop)
}

// Stop halts the background flush timer without draining the queue.
// Idempotent.
func (w *Writer) Stop() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if w.stopTimer == nil {
		return
	}
	close(w.stopTimer)
	w.stopTimer = nil
}

// IsRunning reports whether the flush timer is active.
func (w *Writer) IsRunning() bool {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()
	return w.stopTimer != nil
}

func (w *Writer) timerLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.Flush(context.Background())
		}
	}
}

// Shutdown stops the timer and flushes until the queue is empty. With a
// failing sink this blocks until ctx expires; callers needing a hard
// deadline must pass a bounded context.
func (w *Writer) Shutdown(ctx context.Context) error {
	w.Stop()
	w.mu.Lock()
	w.state = StateDraining
	w.mu.Unlock()

	for {
		if w.QueueDepth() == 0 {
			w.mu.Lock()
			w.state = StateStopped
			w.mu.Unlock()
			return nil
		}
		if err := w.flush(ctx); err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(drainRetryDelay):
			}
		}
	}
}

// QueueDepth reports the number of buffered events. Observability hook for
// tests and monitoring.
func (w *Writer) QueueDepth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Dropped reports the total events shed due to the queue cap.
func (w *Writer) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// CurrentState reports the lifecycle phase.
func (w *Writer) CurrentState() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Writer) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Writer) enrich(ctx context.Context, event Event) Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}
	if event.TenantID == "" {
		event.TenantID = requestcontext.TenantID(ctx)
	}
	if event.UserID == "" {
		event.UserID = requestcontext.UserID(ctx)
	}
	if event.UserName == "" {
		event.UserName = requestcontext.UserName(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return event
}
