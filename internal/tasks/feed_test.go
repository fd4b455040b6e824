package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaltasks/internal/models"
)

// source is a mutable task list guarded for concurrent queries.
type source struct {
	mu    sync.Mutex
	list  []models.Task
	err   error
	calls atomic.Int32
}

func (s *source) set(list []models.Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list, s.err = list, err
}

func (s *source) query(context.Context) ([]models.Task, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.Task(nil), s.list...), nil
}

func next(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestFeed_InitialSnapshotAndNotify(t *testing.T) {
	feed := NewFeed(nil)
	src := &source{}
	src.set([]models.Task{{ID: 1, Title: "a"}}, nil)

	sub := feed.Watch(context.Background(), "alice", "ACTIVE", src.query)
	defer sub.Close()

	first := next(t, sub)
	require.NoError(t, first.Err)
	assert.Len(t, first.Tasks, 1)

	src.set([]models.Task{{ID: 2, Title: "b"}, {ID: 1, Title: "a"}}, nil)
	feed.Notify("alice")

	second := next(t, sub)
	assert.Len(t, second.Tasks, 2)
}

func TestFeed_OtherScopesAreNotWoken(t *testing.T) {
	feed := NewFeed(nil)
	src := &source{}
	sub := feed.Watch(context.Background(), "alice", "ACTIVE", src.query)
	defer sub.Close()
	next(t, sub)

	src.set([]models.Task{{ID: 1}}, nil)
	feed.Notify("bob")

	select {
	case snap := <-sub.C:
		t.Fatalf("unexpected snapshot %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFeed_FailedRefreshKeepsLastGoodList(t *testing.T) {
	feed := NewFeed(nil)
	src := &source{}
	src.set([]models.Task{{ID: 1, Title: "keep me"}}, nil)

	sub := feed.Watch(context.Background(), "alice", "ACTIVE", src.query)
	defer sub.Close()
	next(t, sub)

	src.set(nil, errors.New("disk unavailable"))
	feed.Notify("alice")

	failed := next(t, sub)
	require.Error(t, failed.Err)
	assert.ErrorIs(t, failed.Err, ErrStorage)
	require.Len(t, failed.Tasks, 1)
	assert.Equal(t, "keep me", failed.Tasks[0].Title)

	src.set([]models.Task{{ID: 1, Title: "keep me"}}, nil)
	feed.Notify("alice")

	recovered := next(t, sub)
	assert.NoError(t, recovered.Err)
	assert.Len(t, recovered.Tasks, 1)
}

func TestFeed_IndependentSubscribers(t *testing.T) {
	feed := NewFeed(nil)
	src := &source{}
	src.set([]models.Task{{ID: 1, Title: "a"}}, nil)

	first := feed.Watch(context.Background(), "alice", "ACTIVE", src.query)
	defer first.Close()
	second := feed.Watch(context.Background(), "alice", "ACTIVE", src.query)
	defer second.Close()

	a := next(t, first)
	b := next(t, second)
	require.Len(t, a.Tasks, 1)
	require.Len(t, b.Tasks, 1)

	a.Tasks[0].Title = "mutated by first screen"
	assert.Equal(t, "a", b.Tasks[0].Title)
}

func TestFeed_CloseClosesChannel(t *testing.T) {
	feed := NewFeed(nil)
	src := &source{}
	sub := feed.Watch(context.Background(), "alice", "ACTIVE", src.query)
	next(t, sub)

	sub.Close()
	_, ok := <-sub.C
	assert.False(t, ok)

	// Notifying a scope without watchers is harmless.
	feed.Notify("alice")
	sub.Close()
}

func TestFeed_ContextCancelEndsSubscription(t *testing.T) {
	feed := NewFeed(nil)
	src := &source{}
	ctx, cancel := context.WithCancel(context.Background())
	sub := feed.Watch(ctx, "alice", "ACTIVE", src.query)
	next(t, sub)

	cancel()
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestFeed_NewWatcherDoesNotJoinQueryStartedBeforeWrite(t *testing.T) {
	feed := NewFeed(nil)
	src := &source{}
	src.set([]models.Task{{ID: 1, Title: "old"}}, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var first atomic.Bool
	slow := func(ctx context.Context) ([]models.Task, error) {
		list, err := src.query(ctx)
		if first.CompareAndSwap(false, true) {
			close(started)
			<-release
		}
		return list, err
	}

	a := feed.Watch(context.Background(), "alice", "ACTIVE", slow)
	<-started

	src.set([]models.Task{{ID: 1, Title: "new"}}, nil)
	feed.Notify("alice")
	a.Close()

	b := feed.Watch(context.Background(), "alice", "ACTIVE", slow)
	defer b.Close()
	close(release)

	snap := next(t, b)
	require.NoError(t, snap.Err)
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "new", snap.Tasks[0].Title)
}
