package tasks

import (
	"context"

	"personaltasks/internal/models"
)

// Store is the durable task collection of a single user. Implementations
// scope every call to the user they were created for.
type Store interface {
	// Create persists t with a freshly assigned id and returns that id.
	Create(ctx context.Context, t models.Task) (int64, error)
	// Update overwrites the record with t.ID. It returns ErrNotFound when
	// no such record exists.
	Update(ctx context.Context, t models.Task) error
	// SetStatus changes only the status of the record. Every transition is
	// accepted.
	SetStatus(ctx context.Context, id int64, status models.Status) error
	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id int64) (models.Task, error)
	// ListByStatus returns the tasks with status, ordered as Compare does.
	ListByStatus(ctx context.Context, status models.Status, moreImportantFirst bool) ([]models.Task, error)
	// Watch is the live form of ListByStatus.
	Watch(ctx context.Context, status models.Status, moreImportantFirst bool) *Subscription
}

// Snapshot is one delivery of a live query. When Err is set the refresh
// failed and Tasks still holds the last good result.
type Snapshot struct {
	Tasks []models.Task
	Err   error
}
