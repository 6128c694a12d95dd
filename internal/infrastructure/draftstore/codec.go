package draftstore

import (
	"encoding/json"
	"fmt"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// Drafts are stored as JSON so readers never share maps with writers.
func encodeDraft(draft *domain.ClaimDraft) ([]byte, error) {
	if draft == nil || draft.ID == "" {
		return nil, fmt.Errorf("%w: draft id is required", domain.ErrInvalidInput)
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("marshal draft: %w", err)
	}
	return raw, nil
}

func decodeDraft(raw []byte) (*domain.ClaimDraft, error) {
	var draft domain.ClaimDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	if draft.Fields == nil {
		draft.Fields = domain.FieldValues{}
	}
	return &draft, nil
}

func notFound(id string) error {
	return domain.WrapError(domain.ErrDraftNotFound, "get draft", fmt.Errorf("id=%s", id))
}
