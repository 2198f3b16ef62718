package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/pkg/cache"

	"github.com/redis/go-redis/v9"
)

const secretKeyNamespace = "secret_key"

// SecretKeyRepository stores single-use transfer secret keys. A key survives
// exactly one Consume call; whether the caller's value matched is irrelevant.
type SecretKeyRepository interface {
	Save(ctx context.Context, userID int64, key string, ttl time.Duration) error
	Consume(ctx context.Context, userID int64) (string, error)

	// Revoke drops any outstanding key without returning it.
	Revoke(ctx context.Context, userID int64) error
}

type secretKeyRepo struct {
	cache *cache.Cache
}

func NewSecretKeyRepository(c *cache.Cache) SecretKeyRepository {
	return &secretKeyRepo{cache: c}
}

func (r *secretKeyRepo) Save(ctx context.Context, userID int64, key string, ttl time.Duration) error {
	return r.cache.Set(ctx, secretKeyNamespace, fmt.Sprintf("%d", userID), key, ttl)
}

// Consume atomically fetches and deletes the stored key. Returns "" when no
// key is stored or it has expired.
func (r *secretKeyRepo) Consume(ctx context.Context, userID int64) (string, error) {
	val, err := r.cache.GetDel(ctx, secretKeyNamespace, fmt.Sprintf("%d", userID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

func (r *secretKeyRepo) Revoke(ctx context.Context, userID int64) error {
	return r.cache.Delete(ctx, secretKeyNamespace, fmt.Sprintf("%d", userID))
}
