package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
)

func TestPublishNoticeUsesKindSubject(t *testing.T) {
	var subject string
	var payload []byte
	pub := newPublisher(nil, func(subj string, data []byte) error {
		subject, payload = subj, data
		return nil
	}, "", nil)

	notice := domain.Notice{ID: "n-1", DraftID: "d-1", Kind: domain.NoticePredictionFailed, Level: domain.NoticeError, Message: "down"}
	if err := pub.PublishNotice(context.Background(), notice); err != nil {
		t.Fatalf("PublishNotice() error = %v", err)
	}
	if subject != "claims.notices.prediction_failed" {
		t.Fatalf("unexpected subject %q", subject)
	}
	var got domain.Notice
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.DraftID != "d-1" || got.Message != "down" {
		t.Fatalf("unexpected notice %+v", got)
	}
}

func TestPublishNoticeRetriesTransientErrors(t *testing.T) {
	calls := 0
	pub := newPublisher(nil, func(string, []byte) error {
		calls++
		if calls == 1 {
			return nats.ErrTimeout
		}
		return nil
	}, "notices", resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryMultiplier: 1}))

	if err := pub.PublishNotice(context.Background(), domain.Notice{Kind: domain.NoticeClaimSubmitted}); err != nil {
		t.Fatalf("PublishNotice() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 publish calls, got %d", calls)
	}
}

func TestPublishNoticeWrapsTemporaryFailures(t *testing.T) {
	pub := newPublisher(nil, func(string, []byte) error {
		return nats.ErrNoServers
	}, "notices", resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 2, RetryMultiplier: 1, RetryInitialBackoff: time.Millisecond}))

	err := pub.PublishNotice(context.Background(), domain.Notice{Kind: domain.NoticeClaimFailed})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestPublishNoticeKeepsFinalFailuresPermanent(t *testing.T) {
	calls := 0
	pub := newPublisher(nil, func(string, []byte) error {
		calls++
		return nats.ErrMaxPayload
	}, "notices", resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryMultiplier: 1}))

	err := pub.PublishNotice(context.Background(), domain.Notice{Kind: domain.NoticeClaimSubmitted})
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected a permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("final failures must not be retried, got %d calls", calls)
	}
}

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
		record    bool
	}{
		{err: context.Canceled, retryable: false, record: false},
		{err: fmt.Errorf("publish: %w", nats.ErrTimeout), retryable: true, record: true},
		{err: nats.ErrConnectionClosed, retryable: false, record: false},
		{err: nats.ErrMaxPayload, retryable: false, record: false},
		{err: nats.ErrReconnectBufExceeded, retryable: true, record: true},
		{err: errors.New("boom"), retryable: false, record: true},
	}
	for _, tc := range tests {
		got := classifyNATSError(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("classifyNATSError(%v) = %+v", tc.err, got)
		}
	}
}
