// Package events provides the fire-and-forget workflow event sink: a bounded
// queue drained by a single background worker into an EventRepository.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/apm/internal/ports/secondary"
)

// Event types recorded by the workflow and the agent tools.
const (
	TypeTransitionRecorded = "transition.recorded"
	TypeTransitionRejected = "transition.rejected"
	TypeGateChecked        = "gate.checked"
	TypeToolCalled         = "tool.called"
)

// Defaults for the queue.
const (
	DefaultQueueSize    = 1000
	DefaultDrainTimeout = 2 * time.Second
)

// persistTimeout bounds a single repository write made by the worker.
const persistTimeout = 5 * time.Second

// Sink implements secondary.EventEmitter.
type Sink struct {
	repo   secondary.EventRepository
	logger *zap.Logger
	now    func() time.Time

	queue   chan secondary.EventRecord
	done    chan struct{}
	abandon chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	written atomic.Int64
}

var _ secondary.EventEmitter = (*Sink)(nil)

// Option configures a Sink during construction.
type Option func(*Sink)

// WithClock overrides the timestamp source used for events without one.
func WithClock(clock func() time.Time) Option {
	return func(s *Sink) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewSink starts the worker. Close must be called to stop it.
func NewSink(repo secondary.EventRepository, queueSize int, logger *zap.Logger, opts ...Option) *Sink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sink{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		queue:   make(chan secondary.EventRecord, queueSize),
		done:    make(chan struct{}),
		abandon: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Validate performs the fast in-memory checks Emit applies before queueing.
func Validate(e secondary.EventRecord) error {
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("event type is required")
	}
	if strings.TrimSpace(e.EntityKind) == "" || strings.TrimSpace(e.EntityID) == "" {
		return fmt.Errorf("event %s: entity kind and id are required", e.Type)
	}
	return nil
}

// Emit queues an event without blocking. Invalid events are rejected; events
// arriving while the queue is full or after Close are dropped and counted.
func (s *Sink) Emit(e secondary.EventRecord) bool {
	if err := Validate(e); err != nil {
		s.logger.Warn("event rejected", zap.Error(err))
		return false
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return false
	}

	select {
	case s.queue <- e:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped returns how many events were dropped since start.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Done is closed when the worker has exited.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Written returns how many events the worker persisted.
func (s *Sink) Written() int64 {
	return s.written.Load()
}

// Close stops accepting events and waits for the worker to drain the queue
// until ctx expires. Events still queued after the deadline are lost; the
// worker exits once its in-flight write returns.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.once.Do(func() { close(s.abandon) })
		lost := len(s.queue)
		s.dropped.Add(int64(lost))
		s.logger.Warn("event sink drain timed out", zap.Int("lost", lost))
		return fmt.Errorf("event sink drain timed out with %d events pending: %w", lost, ctx.Err())
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.queue {
		select {
		case <-s.abandon:
			return
		default:
		}
		s.persist(e)
	}
}

func (s *Sink) persist(e secondary.EventRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.repo.AppendEvent(ctx, &e); err != nil {
		s.logger.Warn("failed to persist event",
			zap.String("event_id", e.ID),
			zap.String("type", e.Type),
			zap.Error(err))
		return
	}
	s.written.Add(1)
}
