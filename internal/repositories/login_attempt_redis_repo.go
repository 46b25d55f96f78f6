package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bastionhq/bastion/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	loginAttemptKeyPrefix = "login_attempt:"
	loginAttemptIDPrefix  = "login_attempt_id:"
)

// RedisLoginAttemptStore is a redis-backed login attempt store for
// deployments without postgres. Records live under a key derived from the
// criteria tuple, with a secondary id index for lookups by id.
type RedisLoginAttemptStore struct {
	client *redis.Client
}

// NewRedisLoginAttemptStore creates a new RedisLoginAttemptStore
func NewRedisLoginAttemptStore(client *redis.Client) *RedisLoginAttemptStore {
	return &RedisLoginAttemptStore{client: client}
}

func criteriaKey(c models.LoginAttemptCriteria) string {
	return loginAttemptKeyPrefix + strings.Join([]string{c.Domain, c.Client, c.IdentityProvider, c.Username}, ":")
}

func idKey(id string) string {
	return loginAttemptIDPrefix + id
}

func mapRedisError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%w: %v", models.ErrTechnical, err)
}

func (r *RedisLoginAttemptStore) get(ctx context.Context, key string) (*models.LoginAttempt, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapRedisError(err)
	}

	var attempt models.LoginAttempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return nil, fmt.Errorf("failed to decode login attempt: %w", err)
	}
	return &attempt, nil
}

func (r *RedisLoginAttemptStore) put(ctx context.Context, attempt *models.LoginAttempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to encode login attempt: %w", err)
	}

	key := criteriaKey(models.LoginAttemptCriteria{
		Domain:           attempt.Domain,
		Client:           attempt.Client,
		IdentityProvider: attempt.IdentityProvider,
		Username:         attempt.Username,
	})

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, raw, 0)
	pipe.Set(ctx, idKey(attempt.ID), key, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return mapRedisError(err)
	}
	return nil
}

// FindByCriteria returns the record for the key tuple, or models.ErrNotFound.
func (r *RedisLoginAttemptStore) FindByCriteria(ctx context.Context, criteria models.LoginAttemptCriteria) (*models.LoginAttempt, error) {
	return r.get(ctx, criteriaKey(criteria))
}

// GetByID resolves the id index and returns the record, or models.ErrNotFound.
func (r *RedisLoginAttemptStore) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	key, err := r.client.Get(ctx, idKey(id)).Result()
	if err != nil {
		return nil, mapRedisError(err)
	}
	return r.get(ctx, key)
}

// Create stores a new record, assigning its id and timestamps.
func (r *RedisLoginAttemptStore) Create(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	now := time.Now().UTC()
	stored := *attempt
	stored.ID = uuid.New().String()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := r.put(ctx, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Update overwrites the stored record and bumps UpdatedAt.
func (r *RedisLoginAttemptStore) Update(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	stored := *attempt
	stored.UpdatedAt = time.Now().UTC()

	if err := r.put(ctx, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Delete removes the record and its id index entry. An absent id reports
// models.ErrNotFound.
func (r *RedisLoginAttemptStore) Delete(ctx context.Context, id string) error {
	key, err := r.client.Get(ctx, idKey(id)).Result()
	if err != nil {
		return mapRedisError(err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, idKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return mapRedisError(err)
	}
	return nil
}

// DeleteByDomain scans out every record for the domain. No-op when the
// domain has none.
func (r *RedisLoginAttemptStore) DeleteByDomain(ctx context.Context, domain string) error {
	pattern := loginAttemptKeyPrefix + domain + ":*"

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		attempt, err := r.get(ctx, key)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return err
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.Del(ctx, idKey(attempt.ID))
		if _, err := pipe.Exec(ctx); err != nil {
			return mapRedisError(err)
		}
	}
	if err := iter.Err(); err != nil {
		return mapRedisError(err)
	}
	return nil
}

// DeleteExpired removes records whose lockout window has passed.
func (r *RedisLoginAttemptStore) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	var removed int64

	iter := r.client.Scan(ctx, 0, loginAttemptKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		attempt, err := r.get(ctx, key)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return removed, err
		}
		if !attempt.Expired(now) {
			continue
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.Del(ctx, idKey(attempt.ID))
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, mapRedisError(err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, mapRedisError(err)
	}
	return removed, nil
}
