package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/fruitbot/internal/intake"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "fruitbot:session:"

// Redis keeps steps as plain string keys so sessions survive restarts
// and can be shared between replicas.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client. A zero ttl stores keys without expiry.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *Redis) Step(ctx context.Context, userID int64) (intake.Step, bool, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: redis get: %w", err)
	}
	step, err := intake.ParseStep(raw)
	if err != nil {
		return "", false, fmt.Errorf("session: redis decode: %w", err)
	}
	return step, true, nil
}

func (r *Redis) SetStep(ctx context.Context, userID int64, step intake.Step) error {
	if err := r.client.Set(ctx, r.key(userID), step.String(), r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
