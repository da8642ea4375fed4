package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

// Error is the body of every error response.
type Error struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

var invalidInput = []error{
	domain.ErrInvalidInput,
	domain.ErrInvalidAction,
	domain.ErrInvalidParent,
	domain.ErrDuplicateNode,
	domain.ErrInvalidTimezone,
	domain.ErrInvalidBusinessHours,
}

var notFound = []error{
	domain.ErrFormNotFound,
	domain.ErrNodeNotFound,
	domain.ErrServiceNotFound,
	domain.ErrEmployeeNotFound,
	domain.ErrOrganizationNotFound,
	domain.ErrTemplateNotFound,
}

// statusOf maps a service error to its HTTP status and error code.
// Invalid input is checked first: rejected actions wrap the not-found
// error of the node they target.
func statusOf(err error) (int, string) {
	switch {
	case isAny(err, invalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case isAny(err, notFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRestoreWindowExpired):
		return http.StatusConflict, "restore_window_expired"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case errors.Is(err, arbor.ErrServiceClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, domain.ErrWatchUnsupported):
		return http.StatusNotImplemented, "not_implemented"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("request canceled", "path", r.URL.Path)
		} else {
			s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		}
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	case status == http.StatusServiceUnavailable:
		s.logger.Warn("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="arbor"`)
	}
	s.writeJSON(w, status, Error{Code: code, Message: msg})
}
