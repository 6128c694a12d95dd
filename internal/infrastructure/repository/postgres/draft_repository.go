package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// DraftRepository stores drafts as JSONB. Rows past expires_at read as missing.
type DraftRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewDraftRepository(db *sql.DB, ttl time.Duration) *DraftRepository {
	return &DraftRepository{
		db:  db,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *DraftRepository) Save(ctx context.Context, draft *domain.ClaimDraft) error {
	if draft == nil || draft.ID == "" {
		return fmt.Errorf("%w: draft id is required", domain.ErrInvalidInput)
	}
	body, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	now := r.now()
	var expiresAt sql.NullTime
	if r.ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(r.ttl), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO claim_drafts (id, body, updated_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
`, draft.ID, body, now, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

func (r *DraftRepository) Get(ctx context.Context, id string) (*domain.ClaimDraft, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT body
FROM claim_drafts
WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)
`, id, r.now())

	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDraftNotFound, "get draft", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}

	var draft domain.ClaimDraft
	if err := json.Unmarshal(body, &draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	if draft.Fields == nil {
		draft.Fields = domain.FieldValues{}
	}
	return &draft, nil
}

func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM claim_drafts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// PurgeExpired removes drafts idle past their TTL.
func (r *DraftRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM claim_drafts WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("purge drafts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge drafts rows affected: %w", err)
	}
	return n, nil
}
