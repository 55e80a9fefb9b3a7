package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

// RateCardCache keeps teacher rate cards in Redis so slot generation does
// not re-read the teacher row on every request. Slot sequences themselves
// are never cached; lesson state must be fresh.
type RateCardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRateCardCache constructs the cache. A nil client disables caching.
func NewRateCardCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RateCardCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateCardCache{client: client, ttl: ttl, logger: logger}
}

func rateCardKey(teacherID string) string {
	return "ratecard:" + teacherID
}

// Get returns the cached teacher, or ErrCacheMiss.
func (c *RateCardCache) Get(ctx context.Context, teacherID string) (*models.Teacher, error) {
	if c.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := c.client.Get(ctx, rateCardKey(teacherID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get rate card: %w", err)
	}
	var teacher models.Teacher
	if err := json.Unmarshal(raw, &teacher); err != nil {
		return nil, fmt.Errorf("unmarshal cached rate card: %w", err)
	}
	return &teacher, nil
}

// Set stores the teacher with the configured TTL. Failures are logged, not
// propagated; the cache is best-effort.
func (c *RateCardCache) Set(ctx context.Context, teacher *models.Teacher) {
	if c.client == nil || teacher == nil {
		return
	}
	payload, err := json.Marshal(teacher)
	if err != nil {
		c.logger.Sugar().Warnw("marshal rate card for cache", "teacher_id", teacher.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, rateCardKey(teacher.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Sugar().Warnw("cache rate card", "teacher_id", teacher.ID, "error", err)
	}
}

// Invalidate drops the cached entry after a teacher update.
func (c *RateCardCache) Invalidate(ctx context.Context, teacherID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, rateCardKey(teacherID)).Err(); err != nil {
		c.logger.Sugar().Warnw("invalidate rate card cache", "teacher_id", teacherID, "error", err)
	}
}
