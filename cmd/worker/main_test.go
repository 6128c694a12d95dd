package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/observability/metrics"
)

type purgerStub struct {
	calls atomic.Int32
	err   error
}

func (p *purgerStub) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	if p.err != nil {
		return 0, p.err
	}
	return 2, nil
}

func TestRunPurgeLoopRunsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	purger := &purgerStub{}
	done := make(chan struct{})
	go func() {
		runPurgeLoop(ctx, purger, 5*time.Millisecond, metrics.NewWorkerMetrics(service))
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated purges, got %d", purger.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestRunPurgeLoopKeepsGoingAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	purger := &purgerStub{err: errors.New("db down")}
	done := make(chan struct{})
	go func() {
		runPurgeLoop(ctx, purger, time.Millisecond, metrics.NewWorkerMetrics(service))
		close(done)
	}()

	for purger.calls.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}

func TestNoticeHandlerRecordsLag(t *testing.T) {
	m := metrics.NewWorkerMetrics(service)
	created := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	handler := noticeHandler(m, func() time.Time { return created.Add(time.Second) })

	err := handler(context.Background(), domain.Notice{
		DraftID:   "d-1",
		Kind:      domain.NoticeClaimSubmitted,
		Level:     domain.NoticeSuccess,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	count, err := testutil.GatherAndCount(m.Gatherer(), "claims_worker_notices_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one notice series, got %d", count)
	}
}
