// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// ErrMalformedBody marks a request body that is not valid JSON for the target type.
var ErrMalformedBody = errors.New("malformed request body")

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unrecognised errors are logged and reported without detail.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validation *shared.ValidationError
		batch      *shared.BatchValidationError
	)
	switch {
	case errors.As(err, &batch):
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:      "Batch Validation Failed",
			Status:     http.StatusUnprocessableEntity,
			Detail:     "one or more line item directives are invalid; nothing was saved",
			Directives: batch.Errors,
		})
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Errors: validation.Fields,
		})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrProtected):
		Problem(w, http.StatusConflict, "Protected", err.Error())
	case errors.Is(err, ErrMalformedBody):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
