// Package viewmodel mediates between a task Store and a screen. It owns the
// sort order, the search text and the live task lists, and hands screens a
// ready-to-render View whenever any of them changes.
package viewmodel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"personaltasks/internal/models"
	"personaltasks/internal/tasks"
)

// ErrNotRunning is returned by state changes made while Run is not active.
var ErrNotRunning = errors.New("view model is not running")

// SortPreference persists the active list order between sessions.
type SortPreference interface {
	SortMoreImportantFirst() (bool, error)
	SetSortMoreImportantFirst(bool) error
}

// View is everything a task list screen renders.
type View struct {
	SortMoreImportantFirst bool
	Query                  string
	// Active holds the active tasks matching Query, in list order.
	Active    []models.Task
	Completed []models.Task
	Deleted   []models.Task
	// Err is set while the latest refresh of any list is failing. That list
	// keeps its last good content.
	Err error
}

// TaskList is the task list view model. All state changes happen on the
// goroutine executing Run; screens read Views from Updates.
type TaskList struct {
	store  tasks.Store
	prefs  SortPreference
	logger *slog.Logger

	commands chan command
	updates  chan View
	last     atomic.Pointer[View]
	running  atomic.Bool

	sortMoreImportantFirst bool
	query                  string
	active                 []models.Task
	completed              []models.Task
	deleted                []models.Task
	queryErrs              map[models.Status]error

	activeSub    *tasks.Subscription
	completedSub *tasks.Subscription
	deletedSub   *tasks.Subscription
}

type command struct {
	apply func(ctx context.Context)
	done  chan struct{}
}

// New builds a TaskList over store. The sort order is read from prefs; a
// failing preference store falls back to more-important-first.
func New(store tasks.Store, prefs SortPreference, logger *slog.Logger) *TaskList {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sortOrder := true
	if prefs != nil {
		v, err := prefs.SortMoreImportantFirst()
		if err != nil {
			logger.Warn("unable to read sort preference", slog.String("error", err.Error()))
		} else {
			sortOrder = v
		}
	}

	vm := &TaskList{
		store:                  store,
		prefs:                  prefs,
		logger:                 logger,
		commands:               make(chan command),
		updates:                make(chan View, 1),
		sortMoreImportantFirst: sortOrder,
		active:                 []models.Task{},
		completed:              []models.Task{},
		deleted:                []models.Task{},
		queryErrs:              make(map[models.Status]error),
	}
	vm.last.Store(&View{SortMoreImportantFirst: sortOrder, Active: vm.active, Completed: vm.completed, Deleted: vm.deleted})
	return vm
}

// Updates delivers the latest View after every change. Only the newest
// undelivered View is kept.
func (vm *TaskList) Updates() <-chan View {
	return vm.updates
}

// Current returns the most recently published View.
func (vm *TaskList) Current() View {
	return *vm.last.Load()
}

// Run subscribes to the store and serializes every state change until ctx
// ends. It returns ctx.Err().
func (vm *TaskList) Run(ctx context.Context) error {
	if !vm.running.CompareAndSwap(false, true) {
		return errors.New("view model already running")
	}
	defer vm.running.Store(false)

	vm.activeSub = vm.store.Watch(ctx, models.StatusActive, vm.sortMoreImportantFirst)
	vm.completedSub = vm.store.Watch(ctx, models.StatusCompleted, false)
	vm.deletedSub = vm.store.Watch(ctx, models.StatusDeleted, false)
	defer func() {
		vm.activeSub.Close()
		vm.completedSub.Close()
		vm.deletedSub.Close()
	}()

	vm.publish()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-vm.commands:
			cmd.apply(ctx)
			close(cmd.done)
		case snap, ok := <-vm.activeSub.C:
			if !ok {
				return ctx.Err()
			}
			vm.apply(&vm.active, snap, models.StatusActive)
		case snap, ok := <-vm.completedSub.C:
			if !ok {
				return ctx.Err()
			}
			vm.apply(&vm.completed, snap, models.StatusCompleted)
		case snap, ok := <-vm.deletedSub.C:
			if !ok {
				return ctx.Err()
			}
			vm.apply(&vm.deleted, snap, models.StatusDeleted)
		}
	}
}

// SetSortOrder changes the active list order, persists it and re-issues the
// active query. Setting the current value does nothing.
func (vm *TaskList) SetSortOrder(ctx context.Context, moreImportantFirst bool) error {
	return vm.do(ctx, func(runCtx context.Context) {
		if moreImportantFirst == vm.sortMoreImportantFirst {
			return
		}
		vm.sortMoreImportantFirst = moreImportantFirst
		if vm.prefs != nil {
			if err := vm.prefs.SetSortMoreImportantFirst(moreImportantFirst); err != nil {
				vm.logger.Warn("unable to save sort preference", slog.String("error", err.Error()))
			}
		}

		// The current list stays on screen until the re-sorted one arrives.
		vm.activeSub.Close()
		vm.activeSub = vm.store.Watch(runCtx, models.StatusActive, moreImportantFirst)
		vm.logger.Debug("sort order changed", slog.Bool("more_important_first", moreImportantFirst))
		vm.publish()
	})
}

// SetSearchQuery narrows the active list to tasks matching query.
func (vm *TaskList) SetSearchQuery(ctx context.Context, query string) error {
	return vm.do(ctx, func(context.Context) {
		if query == vm.query {
			return
		}
		vm.query = query
		vm.publish()
	})
}

// SetStatus moves the task with id to status. The lists update through the
// live queries once the store accepts the change.
func (vm *TaskList) SetStatus(ctx context.Context, id int64, status models.Status) error {
	if err := vm.store.SetStatus(ctx, id, status); err != nil {
		vm.logger.Error("status change failed",
			slog.Int64("id", id), slog.String("status", string(status)), slog.String("error", err.Error()))
		return err
	}
	return nil
}

// ToggleCompleted flips a task between ACTIVE and COMPLETED.
func (vm *TaskList) ToggleCompleted(ctx context.Context, t models.Task) error {
	next := models.StatusCompleted
	if t.Status == models.StatusCompleted {
		next = models.StatusActive
	}
	return vm.SetStatus(ctx, t.ID, next)
}

// Delete soft-deletes the task with id.
func (vm *TaskList) Delete(ctx context.Context, id int64) error {
	return vm.SetStatus(ctx, id, models.StatusDeleted)
}

// Reactivate brings a deleted or completed task back to the active list.
func (vm *TaskList) Reactivate(ctx context.Context, id int64) error {
	return vm.SetStatus(ctx, id, models.StatusActive)
}

// CreateTask validates t and stores it as a new ACTIVE task. Invalid input
// never reaches the store.
func (vm *TaskList) CreateTask(ctx context.Context, t models.Task) (int64, error) {
	t = t.WithDefaults()
	t.ID = 0
	t.Status = models.StatusActive
	if err := models.Validate(t); err != nil {
		return 0, err
	}

	id, err := vm.store.Create(ctx, t)
	if err != nil {
		vm.logger.Error("create task failed", slog.String("error", err.Error()))
		return 0, err
	}
	return id, nil
}

// UpdateTask validates t and overwrites the stored task with t.ID.
func (vm *TaskList) UpdateTask(ctx context.Context, t models.Task) error {
	t = t.WithDefaults()
	if err := models.Validate(t); err != nil {
		return err
	}
	if err := vm.store.Update(ctx, t); err != nil {
		vm.logger.Error("update task failed", slog.Int64("id", t.ID), slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Task looks up a single task for detail and edit screens.
func (vm *TaskList) Task(ctx context.Context, id int64) (models.Task, error) {
	return vm.store.Get(ctx, id)
}

func (vm *TaskList) do(ctx context.Context, fn func(runCtx context.Context)) error {
	if !vm.running.Load() {
		return ErrNotRunning
	}
	cmd := command{apply: fn, done: make(chan struct{})}
	select {
	case vm.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (vm *TaskList) apply(list *[]models.Task, snap tasks.Snapshot, status models.Status) {
	if snap.Err != nil {
		vm.logger.Warn("live query failed, keeping last list",
			slog.String("status", string(status)), slog.String("error", snap.Err.Error()))
		vm.queryErrs[status] = snap.Err
	} else {
		*list = snap.Tasks
		delete(vm.queryErrs, status)
	}
	vm.publish()
}

// queryErr returns the failure of the first list, in tab order, whose live
// query is failing.
func (vm *TaskList) queryErr() error {
	for _, status := range []models.Status{models.StatusActive, models.StatusCompleted, models.StatusDeleted} {
		if err := vm.queryErrs[status]; err != nil {
			return err
		}
	}
	return nil
}

func (vm *TaskList) publish() {
	v := View{
		SortMoreImportantFirst: vm.sortMoreImportantFirst,
		Query:                  vm.query,
		Active:                 tasks.Filter(vm.active, vm.query),
		Completed:              vm.completed,
		Deleted:                vm.deleted,
		Err:                    vm.queryErr(),
	}
	vm.last.Store(&v)

	select {
	case vm.updates <- v:
	default:
		select {
		case <-vm.updates:
		default:
		}
		vm.updates <- v
	}
}
