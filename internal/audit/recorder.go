package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridian-ai/textpipe/internal/domain"
	"github.com/veridian-ai/textpipe/pkg/patterns/lifecycle"
)

// Config holds the configuration for the asynchronous recorder.
type Config struct {
	ChannelBufferSize int
	WorkerCount       int
}

// AsyncRecorder is a non-blocking implementation of domain.AuditRecorder.
// Events are queued on a channel and persisted by worker goroutines so the
// request path never waits on the audit store.
type AsyncRecorder struct {
	logger       *slog.Logger
	repo         domain.AuditRepository
	eventChannel chan *domain.AuditEvent
	waitGroup    sync.WaitGroup
	cfg          Config
}

// NewAsyncRecorder creates a new asynchronous audit recorder.
func NewAsyncRecorder(logger *slog.Logger, repo domain.AuditRepository, cfg Config) *AsyncRecorder {
	if cfg.ChannelBufferSize <= 0 {
		cfg.ChannelBufferSize = 256
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	return &AsyncRecorder{
		logger:       logger,
		repo:         repo,
		eventChannel: make(chan *domain.AuditEvent, cfg.ChannelBufferSize),
		cfg:          cfg,
	}
}

// Record queues one operation outcome. It drops the event with a warning when
// the buffer is full rather than blocking the caller.
func (r *AsyncRecorder) Record(ctx context.Context, operation string, durationMs float64, success bool, err error) {
	event := &domain.AuditEvent{
		ID:         uuid.New().String(),
		Operation:  operation,
		DurationMs: durationMs,
		Success:    success,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	select {
	case r.eventChannel <- event:
	default:
		r.logger.Warn("audit event channel is full, event dropped", "operation", operation)
	}
}

// Start begins the worker goroutines that persist audit events.
func (r *AsyncRecorder) Start(ctx context.Context) error {
	r.waitGroup.Add(r.cfg.WorkerCount)
	for i := 0; i < r.cfg.WorkerCount; i++ {
		go r.worker()
	}
	return nil
}

// Stop drains the queue and waits for the workers to finish.
func (r *AsyncRecorder) Stop(ctx context.Context) error {
	r.logger.Info("shutting down audit recorder")
	close(r.eventChannel)
	r.waitGroup.Wait()
	return nil
}

// Health reports whether the recorder can still accept events.
func (r *AsyncRecorder) Health(ctx context.Context) lifecycle.HealthStatus {
	if len(r.eventChannel) == cap(r.eventChannel) {
		return lifecycle.HealthStatus{Ready: false, Message: "audit queue is full"}
	}
	return lifecycle.HealthStatus{Ready: true}
}

func (r *AsyncRecorder) worker() {
	defer r.waitGroup.Done()
	for event := range r.eventChannel {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.repo.CreateAuditEvent(ctx, event); err != nil {
			r.logger.Error("failed to persist audit event", "operation", event.Operation, "error", err)
		}
		cancel()
	}
}
