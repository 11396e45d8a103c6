package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/fruitbot/core/logger"
	"github.com/m3rciful/fruitbot/internal/intake"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and tunes the session backend.
type Config struct {
	Backend    string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	MemorySize int           `yaml:"memory_size" envconfig:"SESSION_MEMORY_SIZE"`
	RedisAddr  string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPass  string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB    int           `yaml:"redis_db" envconfig:"REDIS_DB"`
	Prefix     string        `yaml:"prefix" envconfig:"SESSION_PREFIX"`
	TTL        time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
}

// Normalize fills defaults and validates the backend choice.
func (c *Config) Normalize() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	switch c.Backend {
	case BackendMemory:
		if c.MemorySize <= 0 {
			c.MemorySize = DefaultMemorySize
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("session: redis backend requires redis_addr")
		}
		if c.Prefix == "" {
			c.Prefix = DefaultPrefix
		}
	default:
		return fmt.Errorf("session: unknown backend %q", c.Backend)
	}
	if c.TTL < 0 {
		c.TTL = 0
	}
	return nil
}

// Store is the session store plus its release hook.
type Store interface {
	intake.SessionStore
	Close() error
}

type memoryStore struct{ *Memory }

func (memoryStore) Close() error { return nil }

type redisStore struct {
	*Redis
	client *redis.Client
}

func (s redisStore) Close() error { return s.client.Close() }

// Open builds the configured backend. The redis backend pings once before returning.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendMemory {
		mem, err := NewMemory(cfg.MemorySize)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "session", "session.open",
			slog.String("backend", cfg.Backend),
			slog.Int("size", cfg.MemorySize),
		)
		return memoryStore{mem}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: redis ping %s: %w", cfg.RedisAddr, err)
	}
	logger.Info(ctx, "session", "session.open",
		slog.String("backend", cfg.Backend),
		slog.String("host", cfg.RedisAddr),
		slog.Duration("ttl", cfg.TTL),
	)
	return redisStore{Redis: NewRedis(client, cfg.Prefix, cfg.TTL), client: client}, nil
}
