package draftstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/core/ports"
)

var (
	_ ports.DraftStore = (*MemoryStore)(nil)
	_ ports.DraftStore = (*RedisStore)(nil)
)

// fakeRedis answers the three commands the store issues.
type fakeRedis struct {
	redis.UniversalClient
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func sampleDraft() *domain.ClaimDraft {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	draft := domain.NewClaimDraft("d-1", now)
	draft.Fields[domain.FieldAccidentType] = "Rear end"
	draft.Fields[domain.FieldDriverAge] = 41.0
	draft.Revision = 3
	draft.PredictionStatus = domain.PredictionReady
	draft.Prediction = &domain.PredictionResult{SettlementAmount: 5200, ConfidenceScore: 0.8, Source: domain.PredictionSourceML, Revision: 3, PredictedAt: now}
	return draft
}

func TestStoresRoundTripDrafts(t *testing.T) {
	stores := map[string]ports.DraftStore{
		"memory": NewMemoryStore(time.Hour, time.Minute),
		"redis":  NewRedisStore(newFakeRedis(), "", time.Hour),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			draft := sampleDraft()
			if err := store.Save(ctx, draft); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := store.Get(ctx, draft.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if diff := cmp.Diff(draft, got); diff != "" {
				t.Fatalf("draft mismatch (-want +got):\n%s", diff)
			}

			got.Fields[domain.FieldAccidentType] = "Head on"
			again, err := store.Get(ctx, draft.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if again.Fields.String(domain.FieldAccidentType) != "Rear end" {
				t.Fatalf("mutating a loaded draft must not change the stored copy")
			}

			if err := store.Delete(ctx, draft.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(ctx, draft.ID); !domain.IsKind(err, domain.ErrDraftNotFound) {
				t.Fatalf("expected ErrDraftNotFound after delete, got %v", err)
			}
			if err := store.Delete(ctx, draft.ID); err != nil {
				t.Fatalf("deleting a missing draft should be a no-op, got %v", err)
			}
		})
	}
}

func TestMemoryStoreExpiresIdleDrafts(t *testing.T) {
	store := NewMemoryStore(20*time.Millisecond, time.Hour)
	if err := store.Save(context.Background(), sampleDraft()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := store.Get(context.Background(), "d-1"); !domain.IsKind(err, domain.ErrDraftNotFound) {
		t.Fatalf("expected expired draft to be gone, got %v", err)
	}
}

func TestRedisStoreUsesPrefixAndTTL(t *testing.T) {
	client := newFakeRedis()
	store := NewRedisStore(client, "test:", 15*time.Minute)
	if err := store.Save(context.Background(), sampleDraft()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok := client.data["test:d-1"]; !ok {
		t.Fatalf("expected prefixed key, got %v", client.data)
	}
	if client.ttls["test:d-1"] != 15*time.Minute {
		t.Fatalf("expected ttl to be applied, got %v", client.ttls["test:d-1"])
	}
}

func TestRedisStoreMarksOutagesTemporary(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	store := NewRedisStore(client, "", time.Hour)

	if _, err := store.Get(context.Background(), "d-1"); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if err := store.Save(context.Background(), sampleDraft()); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestSaveRejectsDraftWithoutID(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Minute)
	err := store.Save(context.Background(), &domain.ClaimDraft{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
