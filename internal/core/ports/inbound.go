package ports

import (
	"context"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// ClaimIntake is the inbound contract for the multi-step claim form.
type ClaimIntake interface {
	CreateDraft(ctx context.Context, initial domain.FieldValues) (*domain.DraftView, error)
	GetDraft(ctx context.Context, id string) (*domain.DraftView, error)
	UpdateFields(ctx context.Context, id string, values domain.FieldValues) (*domain.DraftView, error)
	MoveToStep(ctx context.Context, id string, step domain.Step) (*domain.DraftView, error)
	RequestPrediction(ctx context.Context, id string) (*domain.DraftView, error)
	Submit(ctx context.Context, id string, stepValues domain.FieldValues) (*domain.SubmissionRecord, error)
	Discard(ctx context.Context, id string) error
}

// DamageCalculator is the stateless damages read model.
type DamageCalculator interface {
	Aggregate(values domain.FieldValues) domain.DamageTotals
}

// SubmissionReader returns confirmations by reference.
type SubmissionReader interface {
	GetSubmission(ctx context.Context, reference string) (*domain.SubmissionRecord, error)
}
