package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDraftNotFound      = errors.New("draft not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")

	// ErrPredictionRequired means the gate was closed and a new prediction was started instead of submitting.
	ErrPredictionRequired = errors.New("prediction required before submission")
	ErrPredictionPending  = errors.New("prediction in progress")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError carries per-field messages. It matches ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type PredictionErrorKind string

const (
	PredictionTimeout            PredictionErrorKind = "timeout"
	PredictionNetwork            PredictionErrorKind = "network"
	PredictionServiceUnavailable PredictionErrorKind = "service_unavailable"
	PredictionInvalidResponse    PredictionErrorKind = "invalid_response"
	PredictionUnknown            PredictionErrorKind = "unknown"
)

type PredictionError struct {
	Kind PredictionErrorKind
	Err  error
}

func (e *PredictionError) Error() string {
	if e == nil {
		return "prediction error"
	}
	if e.Err == nil {
		return fmt.Sprintf("prediction %s", e.Kind)
	}
	return fmt.Sprintf("prediction %s: %v", e.Kind, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown once all attempts are exhausted.
func (e *PredictionError) UserMessage() string {
	switch e.Kind {
	case PredictionTimeout:
		return "The prediction service took too long to respond. Please retry."
	case PredictionNetwork:
		return "Could not reach the prediction service. Check your connection and retry."
	case PredictionServiceUnavailable:
		return "The prediction service is unavailable right now. Please retry in a moment."
	case PredictionInvalidResponse:
		return "The prediction service returned an unusable estimate. Please retry."
	default:
		return "Settlement prediction failed. Please retry."
	}
}

type SubmissionErrorKind string

const (
	SubmissionValidationFailed SubmissionErrorKind = "validation_failed"
	SubmissionBackendRejected  SubmissionErrorKind = "backend_rejected"
	SubmissionUnknown          SubmissionErrorKind = "unknown"
)

const genericSubmissionMessage = "Unable to submit the claim right now. Please try again later."

type SubmissionError struct {
	Kind SubmissionErrorKind
	// Message is safe to show to the user.
	Message string
	// Fields is set for field-specific failures.
	Fields map[string]string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e == nil {
		return "submission error"
	}
	msg := e.Message
	if msg == "" {
		msg = genericSubmissionMessage
	}
	if e.Err == nil {
		return fmt.Sprintf("submission %s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("submission %s: %s: %v", e.Kind, msg, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) UserMessage() string {
	if e.Message == "" || e.Kind == SubmissionUnknown {
		return genericSubmissionMessage
	}
	return e.Message
}

func AsPredictionError(err error) (*PredictionError, bool) {
	var predErr *PredictionError
	ok := errors.As(err, &predErr)
	return predErr, ok
}

func AsSubmissionError(err error) (*SubmissionError, bool) {
	var subErr *SubmissionError
	ok := errors.As(err, &subErr)
	return subErr, ok
}
