// Package session stores the current questionnaire step per user.
package session

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/m3rciful/fruitbot/core/logger"
	"github.com/m3rciful/fruitbot/internal/intake"
)

// DefaultMemorySize bounds the in-process store when no size is configured.
const DefaultMemorySize = 10000

// Memory keeps steps in a bounded LRU cache. Evicted users lose their session.
type Memory struct {
	cache *lru.Cache[int64, intake.Step]
}

// NewMemory returns a store holding at most size sessions.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	cache, err := lru.NewWithEvict[int64, intake.Step](size, func(userID int64, step intake.Step) {
		logger.Debug(context.Background(), "session", "session.evicted",
			slog.Int64("user_id", userID),
			slog.String("step", step.String()),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("session: memory: %w", err)
	}
	return &Memory{cache: cache}, nil
}

func (m *Memory) Step(_ context.Context, userID int64) (intake.Step, bool, error) {
	step, ok := m.cache.Get(userID)
	return step, ok, nil
}

func (m *Memory) SetStep(_ context.Context, userID int64, step intake.Step) error {
	m.cache.Add(userID, step)
	return nil
}

func (m *Memory) Clear(_ context.Context, userID int64) error {
	m.cache.Remove(userID)
	return nil
}

// Len reports how many sessions are held.
func (m *Memory) Len() int { return m.cache.Len() }
