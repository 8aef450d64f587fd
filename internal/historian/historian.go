// internal/historian/historian.go
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/pongarena/internal/cache"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each blocking pop so cancellation and the flush ticker are noticed.
const popTimeout = 3 * time.Second

// Source yields queued match records. ok is false when nothing arrived before timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (rec models.MatchRecord, ok bool, err error)
}

// Sink persists a batch of match records atomically.
type Sink interface {
	InsertMatchRecords(ctx context.Context, recs []models.MatchRecord) error
}

// RedisSource reads the match queue filled by cache.Publisher.
type RedisSource struct {
	rdb   *redis.Client
	queue string
}

func NewRedisSource(rdb *redis.Client, queue string) *RedisSource {
	return &RedisSource{rdb: rdb, queue: queue}
}

func (s *RedisSource) Pop(ctx context.Context, timeout time.Duration) (models.MatchRecord, bool, error) {
	return cache.Pop(ctx, s.rdb, s.queue, timeout)
}

// Service drains the match queue into the sink in batches. A batch is written when it reaches
// batchSize or when the flush ticker fires, whichever comes first.
type Service struct {
	source     Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	log        logrus.FieldLogger

	batchMu sync.Mutex
	batch   []models.MatchRecord
}

// NewService builds a historian.
func NewService(source Source, sink Sink, batchSize int, flushDelay time.Duration, log logrus.FieldLogger) *Service {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Service{
		source:     source,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		log:        log,
		batch:      make([]models.MatchRecord, 0, batchSize),
	}
}

// Run consumes until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("historian started")
	defer s.log.Info("historian stopped")

	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.Flush(shutdownCtx)
			return nil
		case <-ticker.C:
			s.Flush(ctx)
		default:
			rec, ok, err := s.source.Pop(ctx, popTimeout)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				s.log.WithError(err).Error("failed to pop match record")
				continue
			}
			if ok {
				s.append(ctx, rec)
			}
		}
	}
}

func (s *Service) append(ctx context.Context, rec models.MatchRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch. On failure the records are kept for the next flush.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]models.MatchRecord, 0, s.batchSize)
	s.batchMu.Unlock()

	if err := s.sink.InsertMatchRecords(ctx, pending); err != nil {
		s.log.WithError(err).WithField("records", len(pending)).Error("failed to flush match records")
		s.batchMu.Lock()
		s.batch = append(pending, s.batch...)
		s.batchMu.Unlock()
		return
	}
	s.log.WithField("records", len(pending)).Debug("flushed match records")
}

// Pending reports how many records wait for the next flush.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
