package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"personaltasks/internal/models"
	"personaltasks/internal/tasks"
)

// Store wraps access to the SQLite database. Task operations go through the
// per-user view returned by ForUser.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	feed   *tasks.Feed
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger, feed: tasks.NewFeed(logger)}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ForUser returns the task collection owned by userID. An empty userID
// yields an unauthenticated view: lists are empty and every other call
// fails with tasks.ErrAuthenticationRequired.
func (s *Store) ForUser(userID string) *UserStore {
	return &UserStore{store: s, userID: userID}
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            due_date TEXT NOT NULL,
            importance TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (importance IN ('HIGH', 'MEDIUM', 'LIGHT')),
            status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'COMPLETED', 'DELETED')),
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// UserStore is the task collection of one user.
type UserStore struct {
	store  *Store
	userID string
}

var _ tasks.Store = (*UserStore)(nil)

const taskColumns = `id, title, description, due_date, importance, status, created_at, updated_at`

// listQuery mirrors tasks.Compare. due_date holds ISO dates, so comparing the
// text compares the calendar dates.
const listQuery = `SELECT ` + taskColumns + `
        FROM tasks WHERE user_id = ? AND status = ?
        ORDER BY
            CASE WHEN ? = 1 THEN
                (CASE importance WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'LIGHT' THEN 3 ELSE 4 END)
            END ASC,
            CASE WHEN ? = 0 THEN
                (CASE importance WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'LIGHT' THEN 3 ELSE 4 END)
            END DESC,
            due_date ASC,
            id DESC`

// UserID returns the namespace the store is scoped to.
func (u *UserStore) UserID() string {
	return u.userID
}

// Create inserts a new task and returns its id.
func (u *UserStore) Create(ctx context.Context, t models.Task) (int64, error) {
	if u.userID == "" {
		return 0, tasks.ErrAuthenticationRequired
	}
	t = t.WithDefaults()

	res, err := u.store.db.ExecContext(ctx, `INSERT INTO tasks(user_id, title, description, due_date, importance, status) VALUES(?, ?, ?, ?, ?, ?)`,
		u.userID, strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), t.DueDate.String(), string(t.Importance), string(t.Status))
	if err != nil {
		return 0, tasks.Storage("insert task", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, tasks.Storage("task id", err)
	}

	u.store.logger.Debug("task created", slog.String("user", u.userID), slog.Int64("id", id))
	u.store.feed.Notify(u.userID)
	return id, nil
}

// Get retrieves a task by id.
func (u *UserStore) Get(ctx context.Context, id int64) (models.Task, error) {
	if u.userID == "" {
		return models.Task{}, tasks.ErrAuthenticationRequired
	}
	row := u.store.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, u.userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, tasks.ErrNotFound
	}
	if err != nil {
		return models.Task{}, tasks.Storage("get task", err)
	}
	return t, nil
}

// Update overwrites every editable field of the task with t.ID.
func (u *UserStore) Update(ctx context.Context, t models.Task) error {
	if u.userID == "" {
		return tasks.ErrAuthenticationRequired
	}
	t = t.WithDefaults()

	res, err := u.store.db.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, due_date = ?, importance = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), t.DueDate.String(), string(t.Importance), string(t.Status), t.ID, u.userID)
	if err != nil {
		return tasks.Storage("update task", err)
	}
	if err := u.requireAffected(res); err != nil {
		return err
	}

	u.store.feed.Notify(u.userID)
	return nil
}

// SetStatus moves a task to status without touching its other fields.
func (u *UserStore) SetStatus(ctx context.Context, id int64, status models.Status) error {
	if u.userID == "" {
		return tasks.ErrAuthenticationRequired
	}
	if !status.Valid() {
		return &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", status)}
	}

	res, err := u.store.db.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`, string(status), id, u.userID)
	if err != nil {
		return tasks.Storage("update status", err)
	}
	if err := u.requireAffected(res); err != nil {
		return err
	}

	u.store.logger.Debug("task status changed", slog.String("user", u.userID), slog.Int64("id", id), slog.String("status", string(status)))
	u.store.feed.Notify(u.userID)
	return nil
}

// ListByStatus returns the tasks with status in display order.
func (u *UserStore) ListByStatus(ctx context.Context, status models.Status, moreImportantFirst bool) ([]models.Task, error) {
	if u.userID == "" {
		return []models.Task{}, nil
	}

	rows, err := u.store.db.QueryContext(ctx, listQuery, u.userID, string(status), boolInt(moreImportantFirst), boolInt(moreImportantFirst))
	if err != nil {
		return nil, tasks.Storage("list tasks", err)
	}
	defer rows.Close()

	list := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, tasks.Storage("scan task", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, tasks.Storage("list tasks", err)
	}
	return list, nil
}

// Watch streams ListByStatus again after every write made for this user.
func (u *UserStore) Watch(ctx context.Context, status models.Status, moreImportantFirst bool) *tasks.Subscription {
	key := fmt.Sprintf("%s/%t", status, moreImportantFirst)
	return u.store.feed.Watch(ctx, u.userID, key, func(ctx context.Context) ([]models.Task, error) {
		return u.ListByStatus(ctx, status, moreImportantFirst)
	})
}

func (u *UserStore) requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return tasks.Storage("rows affected", err)
	}
	if affected == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var (
		t                       models.Task
		due, importance, status string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &importance, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}

	var err error
	if t.DueDate, err = models.ParseDate(due); err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", t.ID, err)
	}
	if t.Importance, err = models.ParseImportance(importance); err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", t.ID, err)
	}
	if t.Status, err = models.ParseStatus(status); err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", t.ID, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
