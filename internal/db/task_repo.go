package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"bubbletasks/internal/types"
)

// TaskRepository provides data access for the normalized `tasks` table:
// one row per task, JSONB columns for the notification offsets and
// recurrence rule.
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a TaskRepository backed by the given database
// connection (pool or transaction).
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, title, status, due_date, notifications,
	recurrence, overdue_sticky, overdue_at, created_at, updated_at`

// ListActiveForAllUsers returns every active task, grouped by user in
// user-id order. Tasks without a due date are included; the scanner skips
// them.
func (r *TaskRepository) ListActiveForAllUsers(ctx context.Context) (map[string][]types.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE status = $1
		 ORDER BY user_id, id`,
		string(types.TaskStatusActive),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active tasks", err)
	}
	defer rows.Close()

	byUser := make(map[string][]types.Task)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan task row", scanErr)
		}
		byUser[task.UserID] = append(byUser[task.UserID], *task)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating task rows", err)
	}

	return byUser, nil
}

// ListByUser returns all of a user's tasks regardless of status, for the
// ops inspection endpoint.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]types.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE user_id = $1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list user tasks", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan task row", scanErr)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating task rows", err)
	}

	return tasks, nil
}

// HasTasks reports whether any normalized rows exist for the user. The
// dual store uses this as its scheme probe.
func (r *TaskRepository) HasTasks(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to probe task scheme", err)
	}
	return exists, nil
}

// UpdateDueDate writes a task's rolled-forward due date.
func (r *TaskRepository) UpdateDueDate(ctx context.Context, userID, taskID string, nextDue time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET due_date = $1, updated_at = NOW()
		 WHERE user_id = $2 AND id = $3`,
		nextDue, userID, taskID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update due date", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTask, "task not found", nil)
	}
	return nil
}

// MarkOverdue sets the sticky overdue flag and timestamp.
func (r *TaskRepository) MarkOverdue(ctx context.Context, userID, taskID string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET overdue_sticky = TRUE, overdue_at = $1, updated_at = NOW()
		 WHERE user_id = $2 AND id = $3`,
		at, userID, taskID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark task overdue", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTask, "task not found", nil)
	}
	return nil
}

// scanTask scans a single tasks row. Handles nullable columns and JSONB
// decoding; a malformed notifications or recurrence payload degrades to
// empty rather than failing the row.
func scanTask(rows pgx.Rows) (*types.Task, error) {
	var (
		t                 types.Task
		status            string
		dueDate           *time.Time
		notificationsJSON []byte
		recurrenceJSON    []byte
		overdueAt         *time.Time
	)

	err := rows.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&status,
		&dueDate,
		&notificationsJSON,
		&recurrenceJSON,
		&t.OverdueSticky,
		&overdueAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = types.TaskStatus(status)
	t.DueDate = dueDate
	t.OverdueAt = overdueAt

	if len(notificationsJSON) > 0 {
		// Graceful degradation: an unreadable offset list means no offsets.
		_ = json.Unmarshal(notificationsJSON, &t.Notifications)
	}
	if len(recurrenceJSON) > 0 {
		var rule types.RecurrenceRule
		if err := json.Unmarshal(recurrenceJSON, &rule); err == nil {
			t.Recurrence = &rule
		}
	}

	return &t, nil
}
