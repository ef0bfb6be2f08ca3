// Package ops exposes the internal operations API: health checks, manual
// scan triggers, and per-user task inspection. It is not a public surface;
// deployments keep it on an internal listener behind the VPC boundary.
package ops

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"bubbletasks/internal/types"
)

// maxRequestBodySize caps ops request bodies at 64 KB; nothing on this
// surface legitimately needs more.
const maxRequestBodySize = 64 << 10

// apiResponse is the envelope for successful responses.
type apiResponse struct {
	Data any `json:"data,omitempty"`
}

// apiErrorResponse is the envelope for error responses.
type apiErrorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a structured error response. AppErrors surface their
// code and message; anything else collapses to a generic 500 so internal
// details never leak.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.HTTPStatus(), apiErrorResponse{
			Error: errorDetail{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				RequestID: requestID,
			},
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, apiErrorResponse{
		Error: errorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		},
	})
}
