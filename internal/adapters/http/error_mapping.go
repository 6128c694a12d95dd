package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

type errorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	if subErr, ok := domain.AsSubmissionError(err); ok {
		if subErr.Kind == domain.SubmissionValidationFailed {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	if _, ok := domain.AsPredictionError(err); ok {
		return http.StatusServiceUnavailable
	}

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDraftNotFound), domain.IsKind(err, domain.ErrSubmissionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrPredictionRequired), domain.IsKind(err, domain.ErrPredictionPending):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) errorBody {
	if subErr, ok := domain.AsSubmissionError(err); ok {
		return errorBody{Error: subErr.UserMessage(), Kind: string(subErr.Kind), Fields: subErr.Fields}
	}
	if predErr, ok := domain.AsPredictionError(err); ok {
		return errorBody{Error: predErr.UserMessage(), Kind: string(predErr.Kind)}
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return errorBody{Error: "validation failed", Kind: "validation_failed", Fields: validationErr.Fields}
	}

	switch {
	case domain.IsKind(err, domain.ErrPredictionRequired):
		return errorBody{Error: "A settlement prediction is required before submitting. One has been requested.", Kind: "prediction_required"}
	case domain.IsKind(err, domain.ErrPredictionPending):
		return errorBody{Error: "A settlement prediction is still in progress. Please wait.", Kind: "prediction_pending"}
	case domain.IsKind(err, domain.ErrDraftNotFound):
		return errorBody{Error: "draft not found", Kind: "not_found"}
	case domain.IsKind(err, domain.ErrSubmissionNotFound):
		return errorBody{Error: "submission not found", Kind: "not_found"}
	case domain.IsKind(err, domain.ErrInvalidInput):
		return errorBody{Error: err.Error(), Kind: "invalid_input"}
	case domain.IsKind(err, domain.ErrTemporary):
		return errorBody{Error: "temporarily unavailable, please retry", Kind: "temporary"}
	default:
		return errorBody{Error: "internal error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_error", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse(err))
}
