package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler error goes through respondError, which:
//  1. Maps the error to a user message via usererr.MapError
//  2. Logs the technical error with the request ID for correlation
//  3. Renders JSON for API calls and an alert fragment for pages

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/editgrid/internal/logging"
	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/usererr"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// errBadBody wraps request decoding failures.
var errBadBody = errors.New("invalid request body")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a handler error.
func statusFor(err error) int {
	var verr schema.ValidationError
	switch {
	case errors.Is(err, ErrTableNotFound), errors.Is(err, table.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrEditingDisabled), errors.Is(err, table.ErrAddDisabled),
		errors.Is(err, errSelectionDisabled):
		return http.StatusForbidden
	case errors.Is(err, table.ErrNotDrafting), errors.Is(err, table.ErrDuplicateKey),
		errors.Is(err, table.ErrPaginationCallback):
		return http.StatusConflict
	case errors.Is(err, table.ErrMissingKey), errors.Is(err, table.ErrInvalidPageSize),
		errors.Is(err, errBadBody), errors.Is(err, errReadOnly), errors.As(err, &verr),
		errors.Is(err, view.ErrUnknownColumn), errors.Is(err, view.ErrUnknownOperator),
		errors.Is(err, view.ErrInvalidValue), errors.Is(err, view.ErrNotBoolean),
		strings.Contains(err.Error(), "not sortable"),
		strings.Contains(err.Error(), "CEL compile error"):
		return http.StatusBadRequest
	case errors.Is(err, table.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes a user-friendly response with the status
// statusFor picks.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondErrorStatus(w, r, err, statusFor(err))
}

// respondErrorStatus is respondError with an explicit status.
func respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := usererr.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if wantsJSON(r) {
		respondErrorJSON(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := ErrorPage(msg).Render(r.Context(), w); err != nil {
		slog.Error("render error page", "error", err)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg usererr.UserMessage, status int) {
	writeJSONStatus(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadBody, err)
	}
	return nil
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
