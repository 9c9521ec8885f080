package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

type recorderFunc func(ctx context.Context, productID string) error

func (f recorderFunc) RecordHit(ctx context.Context, productID string) error { return f(ctx, productID) }

func TestDispatcher_RecordsEveryAcceptedHit(t *testing.T) {
	s := seededStore(t, domain.Product{ID: "p1"})
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(newTestTracker(t, s, s), Options{Workers: 4, QueueSize: 256}, logger)
	d.Start()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, d.Dispatch("p1"))
		}()
	}
	wg.Wait()
	require.NoError(t, d.Stop(context.Background()))

	p, err := s.GetProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), p.Hits)
	assert.Equal(t, Stats{Recorded: n}, d.Stats())
}

func TestDispatcher_FailuresAreLoggedNotReturned(t *testing.T) {
	logger, hook := test.NewNullLogger()
	failing := recorderFunc(func(context.Context, string) error { return store.ErrUnavailable })
	d := NewDispatcher(failing, Options{Workers: 1, QueueSize: 4}, logger)
	d.Start()

	assert.True(t, d.Dispatch("p1"))
	require.NoError(t, d.Stop(context.Background()))

	var warned *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Detached hit recording failed" {
			warned = e
		}
	}
	require.NotNil(t, warned, "failure must be logged")
	assert.Equal(t, logrus.WarnLevel, warned.Level)
	assert.Equal(t, "p1", warned.Data["product_id"])
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_DispatchNeverBlocks(t *testing.T) {
	logger, _ := test.NewNullLogger()
	release := make(chan struct{})
	blocked := recorderFunc(func(ctx context.Context, _ string) error {
		<-release
		return nil
	})
	d := NewDispatcher(blocked, Options{Workers: 1, QueueSize: 1}, logger)

	// Not started: the queue holds one hit and the next is dropped.
	assert.True(t, d.Dispatch("a"))
	assert.False(t, d.Dispatch("b"))
	assert.Equal(t, int64(1), d.Stats().Dropped)

	d.Start()
	close(release)
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int64(1), d.Stats().Recorded, "accepted hits are drained on stop")

	assert.False(t, d.Dispatch("c"), "stopped dispatcher refuses hits")
	require.NoError(t, d.Stop(context.Background()), "stop is idempotent")
}

func TestDispatcher_WritesUseDetachedContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	got := make(chan error, 1)
	d := NewDispatcher(recorderFunc(func(ctx context.Context, _ string) error {
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			got <- errors.New("write has no timeout")
			return nil
		}
		got <- ctx.Err()
		return nil
	}), Options{Workers: 1, QueueSize: 1, WriteTimeout: time.Minute}, logger)
	d.Start()
	defer d.Stop(context.Background())

	require.True(t, d.Dispatch("p1"))
	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("hit was never recorded")
	}
}

func TestDispatcher_StopHonorsContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	release := make(chan struct{})
	defer close(release)
	d := NewDispatcher(recorderFunc(func(context.Context, string) error {
		<-release
		return nil
	}), Options{Workers: 1, QueueSize: 1}, logger)
	d.Start()
	require.True(t, d.Dispatch("p1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)
}

func TestDispatcher_StopWithoutStartCountsQueuedAsDropped(t *testing.T) {
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(recorderFunc(func(context.Context, string) error { return nil }), Options{Workers: 1, QueueSize: 4}, logger)

	assert.True(t, d.Dispatch("a"))
	assert.True(t, d.Dispatch("b"))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, Stats{Dropped: 2}, d.Stats())
}

func TestDispatcher_EveryDispatchIsAccountedForAcrossStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(recorderFunc(func(context.Context, string) error { return nil }), Options{Workers: 2, QueueSize: 8}, logger)
	d.Start()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch("p1")
		}()
		if i == n/2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, d.Stop(context.Background()))
			}()
		}
	}
	wg.Wait()
	require.NoError(t, d.Stop(context.Background()))

	stats := d.Stats()
	assert.Equal(t, int64(n), stats.Recorded+stats.Dropped+stats.Failed)
}
