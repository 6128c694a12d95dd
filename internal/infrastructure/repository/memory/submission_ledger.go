package memory

import (
	"context"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// SubmissionLedger keeps confirmations for the life of the process.
type SubmissionLedger struct {
	cache *gocache.Cache
}

func NewSubmissionLedger() *SubmissionLedger {
	return &SubmissionLedger{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (l *SubmissionLedger) Record(_ context.Context, rec domain.SubmissionRecord) error {
	if rec.Reference == "" {
		return fmt.Errorf("%w: submission reference is required", domain.ErrInvalidInput)
	}
	// Add keeps the first write for a reference.
	_ = l.cache.Add(rec.Reference, rec, gocache.NoExpiration)
	return nil
}

func (l *SubmissionLedger) Get(_ context.Context, reference string) (*domain.SubmissionRecord, error) {
	val, found := l.cache.Get(reference)
	if !found {
		return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("reference=%s", reference))
	}
	rec := val.(domain.SubmissionRecord)
	return &rec, nil
}
