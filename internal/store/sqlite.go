package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"inspectd/internal/domain"
)

var ErrNotFound = errors.New("not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS inspection_tasks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  cycle TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS inspection_records (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL,
  status TEXT NOT NULL,
  result TEXT NOT NULL DEFAULT '',
  executed_at DATETIME NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(task_id) REFERENCES inspection_tasks(id)
);
CREATE INDEX IF NOT EXISTS idx_records_task_executed ON inspection_records(task_id, executed_at);
`
	_, err := db.Exec(schema)
	return err
}

// TaskFilter narrows ListTasks. Zero value lists everything.
type TaskFilter struct {
	Enabled  *bool
	ID       string
	NameLike string
}

type Repository interface {
	CreateTask(ctx context.Context, t domain.Task) (string, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error

	CreateRecord(ctx context.Context, r domain.Record) (string, error)
	ListRecordsByTask(ctx context.Context, taskID string) ([]domain.Record, error)
	// RecordDates returns the distinct calendar days ("2006-01-02") on which
	// the task has records within [from, to].
	RecordDates(ctx context.Context, taskID string, from, to time.Time) ([]string, error)
}

type sqliteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

func (r *sqliteRepo) CreateTask(ctx context.Context, t domain.Task) (string, error) {
	id := t.ID
	if id == "" {
		id = "tsk_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO inspection_tasks (id,name,description,cycle,enabled,created_at,updated_at)
VALUES (?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
`, id, t.Name, t.Description, t.Cycle, t.Enabled)
	return id, err
}

func (r *sqliteRepo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,name,description,cycle,enabled,created_at,updated_at
FROM inspection_tasks WHERE id=?`, id)
	var t domain.Task
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Cycle, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, err
	}
	return t, nil
}

func (r *sqliteRepo) ListTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	q := `
SELECT id,name,description,cycle,enabled,created_at,updated_at
FROM inspection_tasks WHERE 1=1`
	var args []any
	if f.Enabled != nil {
		q += " AND enabled=?"
		args = append(args, *f.Enabled)
	}
	if f.ID != "" {
		q += " AND id=?"
		args = append(args, f.ID)
	}
	if f.NameLike != "" {
		q += " AND name LIKE ?"
		args = append(args, "%"+f.NameLike+"%")
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Cycle, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *sqliteRepo) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE inspection_tasks SET name=?,description=?,cycle=?,enabled=?,updated_at=CURRENT_TIMESTAMP
WHERE id=?`, t.Name, t.Description, t.Cycle, t.Enabled, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepo) DeleteTask(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM inspection_tasks WHERE id=?", id)
	return err
}

func (r *sqliteRepo) CreateRecord(ctx context.Context, rec domain.Record) (string, error) {
	id := rec.ID
	if id == "" {
		id = "rec_" + uuid.NewString()
	}
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO inspection_records (id,task_id,status,result,executed_at,created_at)
VALUES (?,?,?,?,?,CURRENT_TIMESTAMP)
`, id, rec.TaskID, rec.Status, rec.Result, rec.ExecutedAt)
	if err != nil {
		return "", fmt.Errorf("insert record for task %s: %w", rec.TaskID, err)
	}
	return id, nil
}

func (r *sqliteRepo) ListRecordsByTask(ctx context.Context, taskID string) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,task_id,status,result,executed_at,created_at
FROM inspection_records WHERE task_id=? ORDER BY executed_at DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Status, &rec.Result, &rec.ExecutedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *sqliteRepo) RecordDates(ctx context.Context, taskID string, from, to time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT executed_at FROM inspection_records
WHERE task_id=? AND executed_at >= ? AND executed_at <= ?`, taskID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var dates []string
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		d := at.In(from.Location()).Format("2006-01-02")
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}
	return dates, rows.Err()
}
