package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
)

var (
	transientNoticeErrors = []error{
		nats.ErrNoServers,
		nats.ErrTimeout,
		nats.ErrDisconnected,
		nats.ErrSlowConsumer,
		nats.ErrReconnectBufExceeded,
	}
	// A notice that can never be delivered must not trip the breaker for the rest.
	finalNoticeErrors = []error{
		nats.ErrConnectionClosed,
		nats.ErrBadSubject,
		nats.ErrMaxPayload,
	}
)

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isAny(err, transientNoticeErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case isAny(err, finalNoticeErrors):
		return resilience.ErrorClassification{}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapTemporaryIfNeeded marks failures a later notice may not hit as ErrTemporary.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish notice", err)
	}
	return err
}
