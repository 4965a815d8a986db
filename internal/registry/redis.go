package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altavia-air/altavia-api/internal/models"
)

const (
	recordKeyPrefix  = "refresh:record:"
	revokedKeyPrefix = "refresh:revoked:"
	subjectKeyPrefix = "refresh:subject:"
)

// RedisStore implements Store on a shared Redis instance for multi-instance
// deployments. Revocation is a separate marker key: Consume claims it with
// SETNX, so Redis's single-threaded command ordering picks one winner across
// all instances; record TTLs bound memory exactly like the in-memory janitor
// does.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore wraps an existing client; the caller owns its lifecycle.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func recordKey(tokenID string) string  { return recordKeyPrefix + tokenID }
func revokedKey(tokenID string) string { return revokedKeyPrefix + tokenID }
func subjectKey(subjectID string) string {
	return subjectKeyPrefix + subjectID
}

// Register stores the record with a TTL reaching its natural expiry and
// indexes it under its subject for revoke-all.
func (s *RedisStore) Register(ctx context.Context, record *models.RefreshTokenRecord) error {
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal refresh record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, recordKey(record.TokenID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis register %s: %w", record.TokenID, err)
	}
	if !ok {
		return ErrDuplicateID
	}

	if err := s.client.SAdd(ctx, subjectKey(record.SubjectID), record.TokenID).Err(); err != nil {
		return fmt.Errorf("redis index subject %s: %w", record.SubjectID, err)
	}
	// Index lives as long as the longest-lived token could.
	_ = s.client.Expire(ctx, subjectKey(record.SubjectID), ttl).Err()
	return nil
}

// Consume validates the record and retires it. The winner is decided by a
// single SETNX on the revocation marker, so N concurrent presentations of
// one token produce exactly one successful rotation regardless of how long
// the caller's surrounding work takes.
func (s *RedisStore) Consume(ctx context.Context, tokenID string) (*models.RefreshTokenRecord, error) {
	raw, err := s.client.Get(ctx, recordKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", tokenID, err)
	}

	var record models.RefreshTokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal refresh record %s: %w", tokenID, err)
	}

	now := s.now().UTC()
	if record.Revoked() {
		return nil, ErrRevoked
	}
	if record.Expired(now) {
		return nil, ErrExpired
	}

	ttl, err := s.client.TTL(ctx, recordKey(tokenID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ttl %s: %w", tokenID, err)
	}
	if ttl <= 0 {
		return nil, ErrNotFound
	}

	won, err := s.client.SetNX(ctx, revokedKey(tokenID), now.Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis consume %s: %w", tokenID, err)
	}
	if !won {
		// Another consumer or an explicit revocation got there first.
		return nil, ErrRevoked
	}

	record.LastUsedAt = &now
	record.RevokedAt = &now
	payload, err := json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("marshal refresh record %s: %w", tokenID, err)
	}
	if err := s.client.Set(ctx, recordKey(tokenID), payload, redis.KeepTTL).Err(); err != nil {
		return nil, fmt.Errorf("redis persist consumption %s: %w", tokenID, err)
	}
	return &record, nil
}

// Revoke plants the revocation marker; idempotent by construction.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string) error {
	ttl, err := s.client.TTL(ctx, recordKey(tokenID)).Result()
	if err != nil {
		return fmt.Errorf("redis ttl %s: %w", tokenID, err)
	}
	if ttl <= 0 {
		// Record already gone; nothing left to revoke.
		return nil
	}

	now := s.now().UTC()
	if err := s.client.Set(ctx, revokedKey(tokenID), now.Format(time.RFC3339Nano), ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke %s: %w", tokenID, err)
	}

	raw, err := s.client.Get(ctx, recordKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis get %s: %w", tokenID, err)
	}
	var record models.RefreshTokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("unmarshal refresh record %s: %w", tokenID, err)
	}
	if record.Revoked() {
		return nil
	}
	record.RevokedAt = &now
	payload, _ := json.Marshal(&record)
	if err := s.client.Set(ctx, recordKey(tokenID), payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis persist revocation %s: %w", tokenID, err)
	}
	return nil
}

// RevokeAllForSubject revokes every indexed record for the subject.
func (s *RedisStore) RevokeAllForSubject(ctx context.Context, subjectID string) (int, error) {
	ids, err := s.client.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis subject members %s: %w", subjectID, err)
	}

	revoked := 0
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, recordKey(id)).Result()
		if err != nil {
			return revoked, fmt.Errorf("redis exists %s: %w", id, err)
		}
		if exists == 0 {
			_ = s.client.SRem(ctx, subjectKey(subjectID), id).Err()
			continue
		}
		alreadyRevoked, err := s.client.Exists(ctx, revokedKey(id)).Result()
		if err != nil {
			return revoked, fmt.Errorf("redis exists revoked %s: %w", id, err)
		}
		if err := s.Revoke(ctx, id); err != nil {
			return revoked, err
		}
		if alreadyRevoked == 0 {
			revoked++
		}
	}
	return revoked, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error { return nil }
