package schedule

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bubbletasks/internal/types"
)

// DefaultScanConcurrency bounds the number of users processed in parallel
// within one tick. Task records are independent, so the only real limit is
// what the store and queue adapters tolerate.
const DefaultScanConcurrency = 8

// UserTasks groups one user's active tasks for a scan tick.
type UserTasks struct {
	UserID string
	Tasks  []types.Task
}

// TaskStore abstracts the task persistence operations the scanner needs.
// Implementations must hide whether a user is backed by the normalized
// per-task scheme or the legacy single-document scheme; the scanner is
// agnostic.
type TaskStore interface {
	// ListActiveTasksForAllUsers returns every user's active tasks. Tasks
	// without a due date may be included; the scanner skips them.
	ListActiveTasksForAllUsers(ctx context.Context) ([]UserTasks, error)

	// UpdateDueDate writes a task's rolled-forward due date.
	UpdateDueDate(ctx context.Context, userID, taskID string, nextDue time.Time) error

	// MarkOverdue sets the task's sticky overdue flag and overdue timestamp.
	MarkOverdue(ctx context.Context, userID, taskID string, at time.Time) error
}

// Ledger is the durable at-most-once record of sent notifications.
type Ledger interface {
	// HasFired reports whether the key has already been recorded.
	HasFired(ctx context.Context, key string) (bool, error)

	// MarkFired records the key. Writing the same key twice must neither
	// error nor duplicate the entry.
	MarkFired(ctx context.Context, key string, at time.Time) error
}

// Dispatcher delivers one logical notification for one user. Device-token
// fan-out and pruning belong to the implementation, not the scanner.
type Dispatcher interface {
	SendNotification(ctx context.Context, msg types.PushMessage) error
}

// ScanMetrics receives scan telemetry. Implementations must be safe for
// concurrent use.
type ScanMetrics interface {
	RecordFired(ctx context.Context, kind types.NotificationKind)
	RecordScanDuration(ctx context.Context, d time.Duration)
}

// ScanStats summarizes one tick for logging and the ops API.
type ScanStats struct {
	Users          int
	TasksScanned   int64
	RemindersFired int64
	OverduesFired  int64
	Deduplicated   int64
	TaskErrors     int64
}

// Scanner is the periodic scan driver. It is invoked on a fixed one-minute
// cadence by an external scheduler; overlapping invocations are safe
// because per-key at-most-once delivery comes from the ledger, not from any
// lock held here.
type Scanner struct {
	store      TaskStore
	ledger     Ledger
	dispatcher Dispatcher
	metrics    ScanMetrics // nil disables telemetry

	deepLinkBase string
	concurrency  int
	logger       *slog.Logger
}

// ScannerConfig holds the dependencies for creating a Scanner.
type ScannerConfig struct {
	Store      TaskStore
	Ledger     Ledger
	Dispatcher Dispatcher
	Metrics    ScanMetrics

	// DeepLinkBase is the app URL prefix for notification deep links,
	// e.g. "https://app.bubbletasks.io/task". No trailing slash.
	DeepLinkBase string

	// Concurrency bounds parallel user processing; 0 means
	// DefaultScanConcurrency.
	Concurrency int

	Logger *slog.Logger
}

// NewScanner creates a Scanner with the given configuration.
func NewScanner(cfg ScannerConfig) *Scanner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultScanConcurrency
	}
	return &Scanner{
		store:        cfg.Store,
		ledger:       cfg.Ledger,
		dispatcher:   cfg.Dispatcher,
		metrics:      cfg.Metrics,
		deepLinkBase: cfg.DeepLinkBase,
		concurrency:  concurrency,
		logger:       logger,
	}
}

// Scan runs one tick at the given reference instant. Listing failures abort
// the tick (nothing to iterate); every per-task failure after that is
// logged and isolated so the rest of the scan proceeds. There is no retry
// within a tick: the next tick re-evaluates everything, and the ledger
// suppresses duplicate sends.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (ScanStats, error) {
	start := time.Now()

	users, err := s.store.ListActiveTasksForAllUsers(ctx)
	if err != nil {
		return ScanStats{}, err
	}

	var stats ScanStats
	stats.Users = len(users)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, ut := range users {
		ut := ut
		g.Go(func() error {
			for _, task := range ut.Tasks {
				s.scanTask(gctx, ut.UserID, task, now, &stats)
			}
			return nil
		})
	}

	// Worker funcs never return errors; per-task failures are isolated.
	_ = g.Wait()

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordScanDuration(ctx, elapsed)
	}

	s.logger.InfoContext(ctx, "scan tick complete",
		"users", stats.Users,
		"tasks_scanned", stats.TasksScanned,
		"reminders_fired", stats.RemindersFired,
		"overdues_fired", stats.OverduesFired,
		"deduplicated", stats.Deduplicated,
		"task_errors", stats.TaskErrors,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return stats, nil
}

// scanTask evaluates one task for the tick. A reminder firing suppresses
// the overdue path until the next tick.
func (s *Scanner) scanTask(ctx context.Context, userID string, task types.Task, now time.Time, stats *ScanStats) {
	if task.Status != types.TaskStatusActive || task.DueDate == nil || task.DueDate.IsZero() {
		return
	}
	atomic.AddInt64(&stats.TasksScanned, 1)

	due := *task.DueDate

	if match := EvaluateReminder(due, task.Notifications, now); match != nil {
		s.fireReminder(ctx, userID, task, due, match, now, stats)
		return
	}

	if IsOverdue(task.DueDate, now) {
		s.fireOverdue(ctx, userID, task, due, now, stats)
	}
}

func (s *Scanner) fireReminder(ctx context.Context, userID string, task types.Task, due time.Time, match *ReminderMatch, now time.Time, stats *ScanStats) {
	key := ReminderKey(userID, task.ID, match.MinutesBefore, due)

	fired, err := s.ledger.HasFired(ctx, key)
	if err != nil {
		s.taskError(ctx, userID, task.ID, "ledger read failed", err, stats)
		return
	}
	if fired {
		atomic.AddInt64(&stats.Deduplicated, 1)
		return
	}

	msg := types.PushMessage{
		Kind:          types.NotifyReminder,
		UserID:        userID,
		TaskID:        task.ID,
		Title:         task.Title,
		MinutesBefore: match.MinutesBefore,
		DueDate:       due,
		DeepLinkURL:   s.deepLink(task.ID),
	}
	if err := s.dispatcher.SendNotification(ctx, msg); err != nil {
		// Ledger stays unmarked so the next tick can retry the send.
		s.taskError(ctx, userID, task.ID, "reminder dispatch failed", err, stats)
		return
	}

	if err := s.ledger.MarkFired(ctx, key, now); err != nil {
		// Accepted at-least-once risk on this path: the notification went
		// out but the ledger write failed, so the next tick may resend.
		s.taskError(ctx, userID, task.ID, "ledger write failed after dispatch", err, stats)
	}

	atomic.AddInt64(&stats.RemindersFired, 1)
	if s.metrics != nil {
		s.metrics.RecordFired(ctx, types.NotifyReminder)
	}
}

func (s *Scanner) fireOverdue(ctx context.Context, userID string, task types.Task, due time.Time, now time.Time, stats *ScanStats) {
	key := OverdueKey(userID, task.ID, due)

	fired, err := s.ledger.HasFired(ctx, key)
	if err != nil {
		s.taskError(ctx, userID, task.ID, "ledger read failed", err, stats)
		return
	}

	if !fired {
		msg := types.PushMessage{
			Kind:        types.NotifyOverdue,
			UserID:      userID,
			TaskID:      task.ID,
			Title:       task.Title,
			DueDate:     due,
			DeepLinkURL: s.deepLink(task.ID),
		}
		if err := s.dispatcher.SendNotification(ctx, msg); err != nil {
			// Stop before the due-date rollover: rolling forward now would
			// retire this key space and the overdue send would never retry.
			s.taskError(ctx, userID, task.ID, "overdue dispatch failed", err, stats)
			return
		}
		if err := s.ledger.MarkFired(ctx, key, now); err != nil {
			s.taskError(ctx, userID, task.ID, "ledger write failed after dispatch", err, stats)
		}
		atomic.AddInt64(&stats.OverduesFired, 1)
		if s.metrics != nil {
			s.metrics.RecordFired(ctx, types.NotifyOverdue)
		}
	} else {
		atomic.AddInt64(&stats.Deduplicated, 1)
	}

	if !task.OverdueSticky {
		if err := s.store.MarkOverdue(ctx, userID, task.ID, now); err != nil {
			s.taskError(ctx, userID, task.ID, "overdue state write failed", err, stats)
		}
	}

	if task.Recurrence != nil {
		next := NextDueDate(due, *task.Recurrence)
		if err := s.store.UpdateDueDate(ctx, userID, task.ID, next); err != nil {
			s.taskError(ctx, userID, task.ID, "due date rollover failed", err, stats)
			return
		}
		s.logger.InfoContext(ctx, "recurring task rolled forward",
			"user_id", userID,
			"task_id", task.ID,
			"next_due", next.Format(time.RFC3339),
		)
		if task.OverdueSticky {
			// Re-assert the sticky flag after the due-date write; the legacy
			// document scheme rewrites the whole task record.
			if err := s.store.MarkOverdue(ctx, userID, task.ID, now); err != nil {
				s.taskError(ctx, userID, task.ID, "overdue state re-assert failed", err, stats)
			}
		}
	}
}

func (s *Scanner) taskError(ctx context.Context, userID, taskID, msg string, err error, stats *ScanStats) {
	atomic.AddInt64(&stats.TaskErrors, 1)
	s.logger.ErrorContext(ctx, msg,
		"user_id", userID,
		"task_id", taskID,
		"error", err,
	)
}

func (s *Scanner) deepLink(taskID string) string {
	if s.deepLinkBase == "" {
		return ""
	}
	return s.deepLinkBase + "/" + taskID
}
