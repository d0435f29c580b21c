package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bankcal/internal/core"
	applog "bankcal/internal/log"
	"bankcal/internal/middleware/trace"
	"bankcal/internal/recurrence"
	"bankcal/internal/services"
	"bankcal/internal/worker"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: trace.RequestID(r.Context())})
}

// writeServiceError maps service errors onto status codes. Validation
// failures echo their message; anything unexpected is logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, recurrence.ErrInvalidOptions),
		errors.Is(err, recurrence.ErrInvalidTransaction),
		errors.Is(err, services.ErrInvalidMonth):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrExportDisabled),
		errors.Is(err, worker.ErrPoolStopped):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this.
		writeError(w, r, 499, "request canceled")
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads one JSON value from the body into v. An empty body is
// accepted when allowEmpty is set and leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, tooBig.Limit)
		}
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must hold a single JSON value", errBadRequest)
	}
	return nil
}

// resolveOptions layers raw onto defaults so omitted fields keep their
// default values.
func resolveOptions(defaults recurrence.Options, raw json.RawMessage) (recurrence.Options, error) {
	opts := defaults
	if len(raw) == 0 || string(raw) == "null" {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return recurrence.Options{}, fmt.Errorf("%w: %w", recurrence.ErrInvalidOptions, err)
	}
	return opts, nil
}

// parseMonthParam reads ?month=YYYY-MM, defaulting to the current month.
func (s *Server) parseMonthParam(r *http.Request) (int, int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		now := s.now()
		return now.Year(), int(now.Month()), nil
	}
	year, month, err := core.ParseMonth(v)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", services.ErrInvalidMonth, err)
	}
	return year, month, nil
}
