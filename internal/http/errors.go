package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/service"
)

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	if errors.Is(err, service.ErrCatalogFetch) {
		return http.StatusBadGateway
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeScheduling:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeTransientStore:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError renders err as {"error": <code>, "message": ...} with its mapped status.
// Messages of unclassified errors are not echoed to the caller.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	writeAppErrorStatus(w, r, err, StatusFor(err))
}

func writeAppErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	body := ErrorBody{
		Error:   string(apperrors.GetCode(err)),
		Message: err.Error(),
		Field:   apperrors.GetField(err),
	}
	switch {
	case errors.Is(err, service.ErrCatalogFetch):
		body.Error = "catalog_fetch_failed"
	case body.Error == "":
		body.Error = string(apperrors.ErrCodeInternal)
		body.Message = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	WriteJSON(w, status, body)
}
