package ops

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bubbletasks/internal/schedule"
	"bubbletasks/internal/types"
)

// ScanRunner runs one scan tick at a reference instant.
type ScanRunner interface {
	Scan(ctx context.Context, now time.Time) (schedule.ScanStats, error)
}

// TaskReader serves the per-user task inspection endpoint.
type TaskReader interface {
	ListTasksForUser(ctx context.Context, userID string) ([]types.Task, error)
}

// Pinger checks backing-store liveness for the health endpoint.
// *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the ops API dependencies.
type Handler struct {
	scanner ScanRunner
	tasks   TaskReader
	pinger  Pinger // nil reduces /healthz to a liveness check
	clock   types.Clock
	logger  *slog.Logger
}

// HandlerConfig holds the dependencies for creating a Handler.
type HandlerConfig struct {
	Scanner ScanRunner
	Tasks   TaskReader
	Pinger  Pinger
	Clock   types.Clock
	Logger  *slog.Logger
}

// NewHandler creates the ops API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Handler{
		scanner: cfg.Scanner,
		tasks:   cfg.Tasks,
		pinger:  cfg.Pinger,
		clock:   clock,
		logger:  logger,
	}
}

// Router builds the chi router for the ops listener.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Route("/ops", func(r chi.Router) {
		r.Post("/scan", h.HandleScan)
		r.Get("/users/{userID}/tasks", h.HandleListUserTasks)
	})

	return r
}

// HandleHealth handles GET /healthz. With a Pinger configured it checks
// database reachability; otherwise it only asserts the process is serving.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scanRequest is the optional POST /ops/scan body. ReferenceTime lets
// operators replay a tick at a past instant; the ledger still suppresses
// anything that already fired.
type scanRequest struct {
	ReferenceTime string `json:"reference_time,omitempty"`
}

// scanResponse mirrors schedule.ScanStats for the API.
type scanResponse struct {
	ReferenceTime  time.Time `json:"reference_time"`
	Users          int       `json:"users"`
	TasksScanned   int64     `json:"tasks_scanned"`
	RemindersFired int64     `json:"reminders_fired"`
	OverduesFired  int64     `json:"overdues_fired"`
	Deduplicated   int64     `json:"deduplicated"`
	TaskErrors     int64     `json:"task_errors"`
}

// HandleScan handles POST /ops/scan: run one tick immediately.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, r, types.NewAppError(types.ErrCodeValidationInvalidBody, "failed to read request body", err))
		return
	}
	if len(body) > 0 {
		var req scanRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, r, types.NewAppError(types.ErrCodeValidationInvalidBody, "request body must be JSON", err))
			return
		}
		if req.ReferenceTime != "" {
			ref, err := time.Parse(time.RFC3339, req.ReferenceTime)
			if err != nil {
				writeError(w, r, types.NewAppError(types.ErrCodeValidationInvalidTime,
					"reference_time must be RFC3339", err))
				return
			}
			now = ref.UTC()
		}
	}

	h.logger.InfoContext(r.Context(), "manual scan triggered",
		"reference_time", now.Format(time.RFC3339),
		"request_id", middleware.GetReqID(r.Context()),
	)

	stats, err := h.scanner.Scan(r.Context(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Data: scanResponse{
		ReferenceTime:  now,
		Users:          stats.Users,
		TasksScanned:   stats.TasksScanned,
		RemindersFired: stats.RemindersFired,
		OverduesFired:  stats.OverduesFired,
		Deduplicated:   stats.Deduplicated,
		TaskErrors:     stats.TaskErrors,
	}})
}

// HandleListUserTasks handles GET /ops/users/{userID}/tasks.
func (h *Handler) HandleListUserTasks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "userID is required", nil))
		return
	}

	tasks, err := h.tasks.ListTasksForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Data: map[string]any{
		"user_id": userID,
		"tasks":   tasks,
		"count":   len(tasks),
	}})
}
