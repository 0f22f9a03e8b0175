package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powderchaser/backend/internal/pkg/logger"
)

type fakeMaintainer struct {
	mu          sync.Mutex
	retentions  []time.Duration
	refreshes   int
	purgeErr    error
	refreshErr  error
	hadDeadline bool
	purged      chan struct{}
	refreshed   chan struct{}
}

func newFakeMaintainer() *fakeMaintainer {
	return &fakeMaintainer{
		purged:    make(chan struct{}, 8),
		refreshed: make(chan struct{}, 8),
	}
}

func (f *fakeMaintainer) PurgeExpired(ctx context.Context, retention time.Duration) (int, error) {
	f.mu.Lock()
	f.retentions = append(f.retentions, retention)
	_, f.hadDeadline = ctx.Deadline()
	f.mu.Unlock()
	f.purged <- struct{}{}
	return 3, f.purgeErr
}

func (f *fakeMaintainer) RefreshFavorites(ctx context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	f.refreshed <- struct{}{}
	return f.refreshErr
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSchedulerRunsJobsOnStart(t *testing.T) {
	m := newFakeMaintainer()
	s := New(Config{
		PurgeInterval:   time.Hour,
		Retention:       72 * time.Hour,
		RefreshInterval: 15 * time.Minute,
	}, m, logger.Discard())

	require.NoError(t, s.Start())
	defer s.Stop()

	waitFor(t, m.purged, "purge job")
	waitFor(t, m.refreshed, "refresh job")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []time.Duration{72 * time.Hour}, m.retentions)
	assert.True(t, m.hadDeadline, "purge should run under a timeout")
	assert.Equal(t, 1, m.refreshes)
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	m := newFakeMaintainer()
	s := New(Config{RefreshInterval: 15 * time.Minute}, m, logger.Discard())

	require.NoError(t, s.Start())
	defer s.Stop()

	waitFor(t, m.refreshed, "refresh job")
	assert.Len(t, s.scheduler.Jobs(), 1)

	select {
	case <-m.purged:
		t.Fatal("purge ran without retention configured")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerWithoutJobs(t *testing.T) {
	s := New(Config{}, newFakeMaintainer(), logger.Discard())

	require.NoError(t, s.Start())
	assert.Empty(t, s.scheduler.Jobs())
	s.Stop()
}

func TestJobFailuresAreLoggedNotFatal(t *testing.T) {
	m := newFakeMaintainer()
	m.purgeErr = errors.New("cache unavailable")
	m.refreshErr = errors.New("network unavailable")
	s := New(Config{Retention: time.Hour}, m, logger.Discard())

	assert.NotPanics(t, func() {
		s.runPurge()
		s.runRefresh()
	})
	assert.Len(t, m.purged, 1)
	assert.Len(t, m.refreshed, 1)
}
