// Package historian drains the match-event queue into Postgres in batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/quizduel/internal/cache"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields queued events. ok is false when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (ev models.MatchEvent, ok bool, err error)
}

// Sink persists batches of events.
type Sink interface {
	InsertMatchEvents(ctx context.Context, events []models.MatchEvent) (int64, error)
	InsertMatchEventsIdempotent(ctx context.Context, events []models.MatchEvent) (int64, error)
}

// Config controls batching.
type Config struct {
	BatchSize  int
	FlushDelay time.Duration
	// MaxPending bounds how many unflushed events are retained while the
	// sink is failing. Oldest are dropped first.
	MaxPending int
}

// Service accumulates events from a Source and flushes them to a Sink when
// the batch is full or FlushDelay has passed.
type Service struct {
	src    Source
	sink   Sink
	cfg    Config
	logger *logrus.Logger

	batchMu   sync.Mutex
	batch     []models.MatchEvent
	lastFlush time.Time
	now       func() time.Time
}

func New(src Source, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = cfg.BatchSize * 50
	}
	return &Service{
		src:    src,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		batch:  make([]models.MatchEvent, 0, cfg.BatchSize),
		now:    time.Now,
	}
}

// Run pops until ctx is cancelled, then flushes whatever is left.
func (s *Service) Run(ctx context.Context) {
	s.lastFlush = s.now()
	s.logger.WithFields(logrus.Fields{
		"batch_size":  s.cfg.BatchSize,
		"flush_delay": s.cfg.FlushDelay,
	}).Info("historian started")

	for {
		if ctx.Err() != nil {
			break
		}
		ev, ok, err := s.src.Pop(ctx, s.cfg.FlushDelay)
		switch {
		case err != nil && ctx.Err() != nil:
		case errors.Is(err, cache.ErrMalformed):
			s.logger.WithError(err).Warn("dropping malformed queue entry")
		case err != nil:
			s.logger.WithError(err).Error("queue pop failed")
			// avoid spinning on a dead connection
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.FlushDelay):
			}
		case ok:
			s.append(ev)
		}

		if s.due() {
			s.Flush(ctx)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("historian shutting down")
}

func (s *Service) append(ev models.MatchEvent) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, ev)
	if over := len(s.batch) - s.cfg.MaxPending; over > 0 {
		s.logger.WithField("dropped", over).Error("historian backlog full, dropping oldest events")
		s.batch = append(s.batch[:0], s.batch[over:]...)
	}
}

func (s *Service) due() bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if len(s.batch) == 0 {
		return false
	}
	return len(s.batch) >= s.cfg.BatchSize || s.now().Sub(s.lastFlush) >= s.cfg.FlushDelay
}

// Pending returns the number of events waiting to be flushed.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// Flush writes the current batch. A batch the bulk copy rejects is retried
// row by row with duplicates skipped; if that fails too the events stay queued
// for the next flush.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.lastFlush = s.now()
	if len(s.batch) == 0 {
		return
	}
	batchCopy := make([]models.MatchEvent, len(s.batch))
	copy(batchCopy, s.batch)

	n, err := s.sink.InsertMatchEvents(ctx, batchCopy)
	if err != nil {
		s.logger.WithError(err).Warn("bulk insert failed, retrying row by row")
		n, err = s.sink.InsertMatchEventsIdempotent(ctx, batchCopy)
	}
	if err != nil {
		s.logger.WithError(err).WithField("pending", len(batchCopy)).Error("failed to flush match events")
		return
	}
	s.batch = s.batch[:0]
	s.logger.WithFields(logrus.Fields{
		"events":  len(batchCopy),
		"written": n,
	}).Debug("flushed match events")
}
