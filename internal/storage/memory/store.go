// Package memory keeps tasks in process memory. It honours the same contract
// as the SQLite backend and is used for throwaway sessions and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"personaltasks/internal/models"
	"personaltasks/internal/tasks"
)

// Store holds the tasks of every user.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[string]map[int64]models.Task
	feed   *tasks.Feed
	now    func() time.Time
}

// New returns an empty Store.
func New(logger *slog.Logger) *Store {
	return &Store{
		tasks: make(map[string]map[int64]models.Task),
		feed:  tasks.NewFeed(logger),
		now:   time.Now,
	}
}

// ForUser returns the task collection owned by userID.
func (s *Store) ForUser(userID string) *UserStore {
	return &UserStore{store: s, userID: userID}
}

// UserStore is the task collection of one user.
type UserStore struct {
	store  *Store
	userID string
}

var _ tasks.Store = (*UserStore)(nil)

// Create stores a copy of t under a new id.
func (u *UserStore) Create(_ context.Context, t models.Task) (int64, error) {
	if u.userID == "" {
		return 0, tasks.ErrAuthenticationRequired
	}

	s := u.store
	s.mu.Lock()
	s.nextID++
	t = normalize(t.WithDefaults())
	t.ID = s.nextID
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	owned, ok := s.tasks[u.userID]
	if !ok {
		owned = make(map[int64]models.Task)
		s.tasks[u.userID] = owned
	}
	owned[t.ID] = t
	s.mu.Unlock()

	s.feed.Notify(u.userID)
	return t.ID, nil
}

// Get returns the task with id.
func (u *UserStore) Get(_ context.Context, id int64) (models.Task, error) {
	if u.userID == "" {
		return models.Task{}, tasks.ErrAuthenticationRequired
	}

	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	t, ok := u.store.tasks[u.userID][id]
	if !ok {
		return models.Task{}, tasks.ErrNotFound
	}
	return t, nil
}

// Update replaces the editable fields of the task with t.ID.
func (u *UserStore) Update(_ context.Context, t models.Task) error {
	if u.userID == "" {
		return tasks.ErrAuthenticationRequired
	}

	err := u.modify(t.ID, func(current *models.Task) {
		t = normalize(t.WithDefaults())
		current.Title = t.Title
		current.Description = t.Description
		current.DueDate = t.DueDate
		current.Importance = t.Importance
		current.Status = t.Status
	})
	if err != nil {
		return err
	}
	u.store.feed.Notify(u.userID)
	return nil
}

// SetStatus changes only the status of the task with id.
func (u *UserStore) SetStatus(_ context.Context, id int64, status models.Status) error {
	if u.userID == "" {
		return tasks.ErrAuthenticationRequired
	}
	if !status.Valid() {
		return &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", status)}
	}

	if err := u.modify(id, func(current *models.Task) { current.Status = status }); err != nil {
		return err
	}
	u.store.feed.Notify(u.userID)
	return nil
}

// ListByStatus returns the tasks with status in display order.
func (u *UserStore) ListByStatus(_ context.Context, status models.Status, moreImportantFirst bool) ([]models.Task, error) {
	u.store.mu.RLock()
	list := []models.Task{}
	for _, t := range u.store.tasks[u.userID] {
		if t.Status == status {
			list = append(list, t)
		}
	}
	u.store.mu.RUnlock()

	tasks.Sort(list, moreImportantFirst)
	return list, nil
}

// Watch streams ListByStatus again after every write made for this user.
func (u *UserStore) Watch(ctx context.Context, status models.Status, moreImportantFirst bool) *tasks.Subscription {
	key := fmt.Sprintf("%s/%t", status, moreImportantFirst)
	return u.store.feed.Watch(ctx, u.userID, key, func(ctx context.Context) ([]models.Task, error) {
		return u.ListByStatus(ctx, status, moreImportantFirst)
	})
}

func (u *UserStore) modify(id int64, fn func(*models.Task)) error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[u.userID][id]
	if !ok {
		return tasks.ErrNotFound
	}
	fn(&current)
	current.UpdatedAt = s.now()
	s.tasks[u.userID][id] = current
	return nil
}

func normalize(t models.Task) models.Task {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	return t
}
