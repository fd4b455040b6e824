package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"personaltasks/internal/models"
)

// QueryFunc loads the current result of a live query.
type QueryFunc func(ctx context.Context) ([]models.Task, error)

// Feed fans out change notifications to live queries. Backends call Notify
// after each successful write; every subscription in the written scope then
// re-runs its query and delivers the full, re-sorted list.
type Feed struct {
	logger *slog.Logger
	group  singleflight.Group

	// generation only grows, so a query started before a write is never
	// shared with one started after it.
	generation atomic.Uint64

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

// NewFeed returns an empty Feed.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		logger:   logger,
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// Subscription delivers snapshots of one live query on C until Close is
// called or the context given to Watch ends. C is closed afterwards.
type Subscription struct {
	C <-chan Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops delivery and waits for the subscription to wind down.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

type watcher struct {
	scope string
	key   string
	query QueryFunc
	wake  chan struct{}
	out   chan Snapshot
	done  chan struct{}
}

// Watch starts a live query within scope. Queries sharing scope and key are
// equal and may share one backend round trip. The first snapshot is
// delivered as soon as the query completes.
func (f *Feed) Watch(ctx context.Context, scope, key string, query QueryFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		scope: scope,
		key:   key,
		query: query,
		wake:  make(chan struct{}, 1),
		out:   make(chan Snapshot),
		done:  make(chan struct{}),
	}
	w.wake <- struct{}{}

	f.mu.Lock()
	set, ok := f.watchers[scope]
	if !ok {
		set = make(map[*watcher]struct{})
		f.watchers[scope] = set
	}
	set[w] = struct{}{}
	f.mu.Unlock()

	go f.run(ctx, w)
	return &Subscription{C: w.out, cancel: cancel, done: w.done}
}

// Notify wakes every live query in scope.
func (f *Feed) Notify(scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation.Add(1)
	for w := range f.watchers[scope] {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

func (f *Feed) remove(w *watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.watchers[w.scope]
	delete(set, w)
	if len(set) == 0 {
		delete(f.watchers, w.scope)
	}
}

func (f *Feed) run(ctx context.Context, w *watcher) {
	defer close(w.done)
	defer close(w.out)
	defer f.remove(w)

	var (
		last      []models.Task
		delivered bool
		failing   bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		list, err := f.load(ctx, w)
		if ctx.Err() != nil {
			return
		}

		var snap Snapshot
		if err != nil {
			f.logger.Warn("live query refresh failed",
				slog.String("scope", w.scope), slog.String("query", w.key), slog.String("error", err.Error()))
			failing = true
			snap = Snapshot{Tasks: slices.Clone(last), Err: asStorage("watch", err)}
		} else {
			if delivered && !failing && slices.Equal(last, list) {
				continue
			}
			failing = false
			last = list
			snap = Snapshot{Tasks: slices.Clone(list)}
		}

		select {
		case w.out <- snap:
			delivered = true
		case <-ctx.Done():
			return
		}
	}
}

// load runs the query, sharing an in-flight call with equal queries. The
// feed generation is part of the call key so a query woken by a write never
// joins a call that started before that write.
func (f *Feed) load(ctx context.Context, w *watcher) ([]models.Task, error) {
	key := fmt.Sprintf("%s|%s|%d", w.scope, w.key, f.generation.Load())
	ch := f.group.DoChan(key, func() (any, error) {
		return w.query(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		list, _ := res.Val.([]models.Task)
		return slices.Clone(list), nil
	}
}

func asStorage(op string, err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return Storage(op, err)
}
