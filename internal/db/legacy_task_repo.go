package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"bubbletasks/internal/types"
)

// LegacyTaskRepository provides data access for the legacy `user_task_docs`
// table, where each user's entire task list lives as one JSONB array in a
// single row. Mutations are read-modify-write on the whole document, which
// is how the original client wrote it too.
type LegacyTaskRepository struct {
	db DBTX
}

// NewLegacyTaskRepository creates a LegacyTaskRepository backed by the
// given database connection.
func NewLegacyTaskRepository(db DBTX) *LegacyTaskRepository {
	return &LegacyTaskRepository{db: db}
}

// ListActiveForAllUsers returns every legacy user's active tasks, grouped
// by user. Rows with an unreadable document are skipped rather than
// failing the whole listing; one corrupt doc must not block the scan.
func (r *LegacyTaskRepository) ListActiveForAllUsers(ctx context.Context) (map[string][]types.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, doc FROM user_task_docs ORDER BY user_id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list legacy task docs", err)
	}
	defer rows.Close()

	byUser := make(map[string][]types.Task)
	for rows.Next() {
		var (
			userID string
			doc    []byte
		)
		if err := rows.Scan(&userID, &doc); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan legacy doc row", err)
		}

		var tasks []types.Task
		if err := json.Unmarshal(doc, &tasks); err != nil {
			continue
		}
		for _, task := range tasks {
			if task.Status != types.TaskStatusActive {
				continue
			}
			task.UserID = userID
			byUser[userID] = append(byUser[userID], task)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating legacy doc rows", err)
	}

	return byUser, nil
}

// ListByUser returns all of a legacy user's tasks regardless of status.
func (r *LegacyTaskRepository) ListByUser(ctx context.Context, userID string) ([]types.Task, error) {
	tasks, err := r.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].UserID = userID
	}
	return tasks, nil
}

// UpdateDueDate rewrites the user's document with the task's due date
// rolled forward.
func (r *LegacyTaskRepository) UpdateDueDate(ctx context.Context, userID, taskID string, nextDue time.Time) error {
	return r.mutateTask(ctx, userID, taskID, func(t *types.Task) {
		due := nextDue
		t.DueDate = &due
		t.UpdatedAt = time.Now().UTC()
	})
}

// MarkOverdue rewrites the user's document with the task flagged overdue.
func (r *LegacyTaskRepository) MarkOverdue(ctx context.Context, userID, taskID string, at time.Time) error {
	return r.mutateTask(ctx, userID, taskID, func(t *types.Task) {
		t.OverdueSticky = true
		overdueAt := at
		t.OverdueAt = &overdueAt
		t.UpdatedAt = time.Now().UTC()
	})
}

func (r *LegacyTaskRepository) loadDoc(ctx context.Context, userID string) ([]types.Task, error) {
	var doc []byte
	err := r.db.QueryRow(ctx,
		`SELECT doc FROM user_task_docs WHERE user_id = $1`,
		userID,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "no legacy document for user", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load legacy doc", err)
	}

	var tasks []types.Task
	if err := json.Unmarshal(doc, &tasks); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "legacy doc is not a task array", err)
	}
	return tasks, nil
}

// mutateTask applies fn to one task inside the document and writes the
// whole document back. Last writer wins; the scanner is the only writer on
// this path in practice.
func (r *LegacyTaskRepository) mutateTask(ctx context.Context, userID, taskID string, fn func(*types.Task)) error {
	tasks, err := r.loadDoc(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	for i := range tasks {
		if tasks[i].ID == taskID {
			fn(&tasks[i])
			found = true
			break
		}
	}
	if !found {
		return types.NewAppError(types.ErrCodeNotFoundTask, "task not found in legacy document", nil)
	}

	doc, err := json.Marshal(tasks)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode legacy doc", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE user_task_docs SET doc = $1, updated_at = NOW() WHERE user_id = $2`,
		doc, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write legacy doc", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "legacy document vanished during update", nil)
	}
	return nil
}
