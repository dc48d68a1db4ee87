package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. statusFor picks the HTTP status from the core sentinel
//  4. core.MapError supplies the user-facing message, action and code
//  5. The technical error is logged with request and session ids
//  6. The user message is rendered as JSON for /api, as a page otherwise

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/JonMunkholm/farmerimport/internal/logging"
	"github.com/JonMunkholm/farmerimport/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{core.ErrSessionNotFound, http.StatusNotFound},
	{core.ErrFarmerNotFound, http.StatusNotFound},
	{core.ErrFarmNotFound, http.StatusNotFound},

	{core.ErrSessionBusy, http.StatusConflict},
	{core.ErrInvalidTransition, http.StatusConflict},
	{core.ErrParseSuperseded, http.StatusConflict},
	{core.ErrNothingStaged, http.StatusConflict},
	{core.ErrNoFile, http.StatusConflict},
	{core.ErrDuplicatePhone, http.StatusConflict},
	{core.ErrNotReady, http.StatusConflict},

	{core.ErrMissingRequiredSheet, http.StatusUnprocessableEntity},
	{core.ErrFileReadFailure, http.StatusUnprocessableEntity},
	{core.ErrEmptyFile, http.StatusUnprocessableEntity},
	{core.ErrUnresolvedDistrict, http.StatusUnprocessableEntity},
	{core.ErrUnresolvedOrganization, http.StatusUnprocessableEntity},
	{core.ErrOrganizationRequired, http.StatusUnprocessableEntity},
	{core.ErrInvalidDateOfBirth, http.StatusUnprocessableEntity},

	{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{core.ErrUnsupportedFileType, http.StatusUnsupportedMediaType},
	{core.ErrTooManyParses, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	var bad badRequest
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// badRequest marks malformed client input.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return badRequest{msg: msg} }

// respondError logs err and writes the user-facing message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	if status == http.StatusBadRequest {
		ue.User = core.UserMessage{Message: err.Error(), Code: "REQ001"}
	}

	logger := logging.WithFields(r.Context(), "path", r.URL.Path, "method", r.Method)
	if id := chi.URLParam(r, "id"); id != "" {
		logger = logger.With("session_id", id)
	}
	args := []any{
		"status", status,
		"error", ue.Technical.Error(),
		"code", ue.User.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	if wantsJSON(r) {
		respondErrorJSON(w, ue.User, status)
		return
	}
	respondErrorHTML(w, r, ue.User, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSONStatus(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML renders the error page.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ErrorPage(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error page", "error", err)
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSON encodes v as JSON with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode", "error", err)
	}
}

var errRateLimited = errors.New("rate limit exceeded")
