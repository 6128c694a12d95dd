package claimsapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
)

// ErrInvalidPrediction marks a prediction response without a usable settlement amount.
var ErrInvalidPrediction = errors.New("invalid prediction response")

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "claims api status error"
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512]
	}
	if body == "" {
		return fmt.Sprintf("claims api %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("claims api %s status: %s: %s", e.Operation, e.Status, body)
}

// classifyPredictionError retries every failure except the caller giving up.
func classifyPredictionError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, resilience.ErrAttemptTimeout) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: isServerSideStatus(statusErr.StatusCode),
		}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// classifySubmitError only retries failures where the backend cannot have stored the claim.
func classifySubmitError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: isServerSideStatus(statusErr.StatusCode),
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isServerSideStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// toPredictionError maps the last observed failure to a prediction error kind.
func toPredictionError(err error) *domain.PredictionError {
	if predErr, ok := domain.AsPredictionError(err); ok {
		return predErr
	}
	return &domain.PredictionError{Kind: predictionErrorKind(err), Err: err}
}

func predictionErrorKind(err error) domain.PredictionErrorKind {
	if errors.Is(err, resilience.ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return domain.PredictionTimeout
	}
	if errors.Is(err, ErrInvalidPrediction) {
		return domain.PredictionInvalidResponse
	}
	if resilience.IsCircuitOpen(err) {
		return domain.PredictionServiceUnavailable
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusServiceUnavailable {
			return domain.PredictionServiceUnavailable
		}
		return domain.PredictionUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.PredictionTimeout
		}
		return domain.PredictionNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return domain.PredictionTimeout
	case strings.Contains(msg, "network"):
		return domain.PredictionNetwork
	default:
		return domain.PredictionUnknown
	}
}

// toSubmissionError surfaces the most specific backend message for rejected claims.
func toSubmissionError(err error) *domain.SubmissionError {
	if subErr, ok := domain.AsSubmissionError(err); ok {
		return subErr
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
		message, fields := backendMessage([]byte(statusErr.Body))
		return &domain.SubmissionError{
			Kind:    domain.SubmissionBackendRejected,
			Message: message,
			Fields:  fields,
			Err:     err,
		}
	}
	return &domain.SubmissionError{Kind: domain.SubmissionUnknown, Err: err}
}
