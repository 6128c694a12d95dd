package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// SubmissionRepository is the durable ledger of accepted claims.
type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Record(ctx context.Context, rec domain.SubmissionRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO claim_submissions (
	reference, claim_id, recognized, draft_id, title, settlement_amount, confidence_score, source, submitted_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (reference) DO NOTHING
`,
		rec.Reference, rec.ClaimID, rec.Recognized, rec.DraftID, rec.Title,
		rec.SettlementAmount, rec.ConfidenceScore, rec.Source, rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Get(ctx context.Context, reference string) (*domain.SubmissionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT reference, claim_id, recognized, draft_id, title, settlement_amount, confidence_score, source, submitted_at
FROM claim_submissions
WHERE reference = $1
`, reference)

	var rec domain.SubmissionRecord
	err := row.Scan(
		&rec.Reference, &rec.ClaimID, &rec.Recognized, &rec.DraftID, &rec.Title,
		&rec.SettlementAmount, &rec.ConfidenceScore, &rec.Source, &rec.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("reference=%s", reference))
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return &rec, nil
}
