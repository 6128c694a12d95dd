package draftstore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// MemoryStore keeps drafts in process memory and expires idle ones.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

func (s *MemoryStore) Save(_ context.Context, draft *domain.ClaimDraft) error {
	raw, err := encodeDraft(draft)
	if err != nil {
		return err
	}
	s.cache.Set(draft.ID, raw, s.ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.ClaimDraft, error) {
	val, found := s.cache.Get(id)
	if !found {
		return nil, notFound(id)
	}
	return decodeDraft(val.([]byte))
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
