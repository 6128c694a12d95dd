package ports

import (
	"context"
	"time"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// DraftStore persists claim drafts between requests.
type DraftStore interface {
	Save(ctx context.Context, draft *domain.ClaimDraft) error
	Get(ctx context.Context, id string) (*domain.ClaimDraft, error)
	Delete(ctx context.Context, id string) error
}

// RetryObserver is called after a failed attempt that will be retried.
type RetryObserver func(attempt int, err error)

// Predictor requests a settlement estimate, retrying within its own budget.
type Predictor interface {
	Predict(ctx context.Context, input domain.PredictionInput, onRetry RetryObserver) (domain.PredictionResult, error)
}

// ClaimsBackend posts finalized claims.
type ClaimsBackend interface {
	SubmitClaim(ctx context.Context, payload domain.ClaimPayload) (domain.SubmissionAck, error)
}

// SubmissionLedger keeps confirmations of accepted claims.
type SubmissionLedger interface {
	Record(ctx context.Context, record domain.SubmissionRecord) error
	Get(ctx context.Context, reference string) (*domain.SubmissionRecord, error)
}

// NoticePublisher fans user notices out to other consumers.
type NoticePublisher interface {
	PublishNotice(ctx context.Context, notice domain.Notice) error
}

// WorkflowObserver records prediction and submission outcomes.
type WorkflowObserver interface {
	ObservePrediction(outcome string, retries int, duration time.Duration)
	ObserveSubmission(outcome string, duration time.Duration)
}
