// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource chan models.MatchRecord

func (c chanSource) Pop(ctx context.Context, timeout time.Duration) (models.MatchRecord, bool, error) {
	// Short waits keep the loop responsive in tests.
	if timeout > 10*time.Millisecond {
		timeout = 10 * time.Millisecond
	}
	select {
	case rec := <-c:
		return rec, true, nil
	case <-time.After(timeout):
		return models.MatchRecord{}, false, nil
	case <-ctx.Done():
		return models.MatchRecord{}, false, ctx.Err()
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.MatchRecord
	fail    int
}

func (s *recordingSink) InsertMatchRecords(_ context.Context, recs []models.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("database unavailable")
	}
	s.batches = append(s.batches, append([]models.MatchRecord(nil), recs...))
	return nil
}

func (s *recordingSink) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func record() models.MatchRecord {
	return models.MatchRecord{MatchID: uuid.New(), LobbyID: uuid.New(), Mode: models.ModeClassic, Map: models.MapClassic}
}

func TestFlushesFullBatch(t *testing.T) {
	src := make(chanSource, 8)
	sink := &recordingSink{}
	svc := NewService(src, sink, 3, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- svc.Run(ctx) }()

	for i := 0; i < 3; i++ {
		src <- record()
	}
	require.Eventually(t, func() bool { return sink.stored() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Len(t, sink.batches, 1)
}

func TestFlushesOnTicker(t *testing.T) {
	src := make(chanSource, 8)
	sink := &recordingSink{}
	svc := NewService(src, sink, 100, 20*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	src <- record()
	assert.Eventually(t, func() bool { return sink.stored() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFlushesRemainderOnShutdown(t *testing.T) {
	src := make(chanSource, 8)
	sink := &recordingSink{}
	svc := NewService(src, sink, 100, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- svc.Run(ctx) }()

	src <- record()
	src <- record()
	require.Eventually(t, func() bool { return svc.Pending() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, sink.stored())
	assert.Zero(t, svc.Pending())
}

func TestFailedFlushKeepsRecords(t *testing.T) {
	sink := &recordingSink{fail: 1}
	svc := NewService(make(chanSource), sink, 10, time.Hour, quietLogger())
	ctx := context.Background()

	first, second := record(), record()
	svc.append(ctx, first)
	svc.Flush(ctx)
	assert.Equal(t, 1, svc.Pending())
	assert.Zero(t, sink.stored())

	svc.append(ctx, second)
	svc.Flush(ctx)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, []uuid.UUID{first.MatchID, second.MatchID},
		[]uuid.UUID{sink.batches[0][0].MatchID, sink.batches[0][1].MatchID})
}
