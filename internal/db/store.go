package db

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"bubbletasks/internal/schedule"
	"bubbletasks/internal/types"
)

// DualTaskStore implements schedule.TaskStore across the two coexisting
// storage schemes. Users with normalized rows are served from the tasks
// table; everyone else falls back to their legacy document. A user present
// in both schemes is served from the normalized side only, so a stale
// legacy doc cannot double-fire notifications.
type DualTaskStore struct {
	normalized *TaskRepository
	legacy     *LegacyTaskRepository
	logger     *slog.Logger
}

// NewDualTaskStore creates the scheme-probing store facade.
func NewDualTaskStore(normalized *TaskRepository, legacy *LegacyTaskRepository, logger *slog.Logger) *DualTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DualTaskStore{
		normalized: normalized,
		legacy:     legacy,
		logger:     logger,
	}
}

// ListActiveTasksForAllUsers merges both schemes into one user-ordered
// listing. Normalized users shadow their legacy documents.
func (s *DualTaskStore) ListActiveTasksForAllUsers(ctx context.Context) ([]schedule.UserTasks, error) {
	normByUser, err := s.normalized.ListActiveForAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	legacyByUser, err := s.legacy.ListActiveForAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	merged := make(map[string][]types.Task, len(normByUser)+len(legacyByUser))
	for userID, tasks := range normByUser {
		merged[userID] = tasks
	}
	shadowed := 0
	for userID, tasks := range legacyByUser {
		if _, ok := merged[userID]; ok {
			shadowed++
			continue
		}
		merged[userID] = tasks
	}
	if shadowed > 0 {
		s.logger.DebugContext(ctx, "legacy docs shadowed by normalized rows", "users", shadowed)
	}

	userIDs := make([]string, 0, len(merged))
	for userID := range merged {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	out := make([]schedule.UserTasks, 0, len(userIDs))
	for _, userID := range userIDs {
		out = append(out, schedule.UserTasks{UserID: userID, Tasks: merged[userID]})
	}
	return out, nil
}

// UpdateDueDate routes the write to whichever scheme holds the user.
func (s *DualTaskStore) UpdateDueDate(ctx context.Context, userID, taskID string, nextDue time.Time) error {
	normalized, err := s.normalized.HasTasks(ctx, userID)
	if err != nil {
		return err
	}
	if normalized {
		return s.normalized.UpdateDueDate(ctx, userID, taskID, nextDue)
	}
	return s.legacy.UpdateDueDate(ctx, userID, taskID, nextDue)
}

// MarkOverdue routes the write to whichever scheme holds the user.
func (s *DualTaskStore) MarkOverdue(ctx context.Context, userID, taskID string, at time.Time) error {
	normalized, err := s.normalized.HasTasks(ctx, userID)
	if err != nil {
		return err
	}
	if normalized {
		return s.normalized.MarkOverdue(ctx, userID, taskID, at)
	}
	return s.legacy.MarkOverdue(ctx, userID, taskID, at)
}

// ListTasksForUser serves the ops inspection endpoint from whichever
// scheme holds the user.
func (s *DualTaskStore) ListTasksForUser(ctx context.Context, userID string) ([]types.Task, error) {
	normalized, err := s.normalized.HasTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if normalized {
		return s.normalized.ListByUser(ctx, userID)
	}
	return s.legacy.ListByUser(ctx, userID)
}
