package draftstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

const defaultKeyPrefix = "claims:draft:"

// RedisStore shares drafts between api replicas.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, draft *domain.ClaimDraft) error {
	raw, err := encodeDraft(draft)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(draft.ID), raw, s.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "save draft", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.ClaimDraft, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "get draft", err)
	}
	return decodeDraft(raw)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "delete draft", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
