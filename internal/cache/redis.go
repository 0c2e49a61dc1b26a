package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bolidosrifas/raffle/config"
	"github.com/bolidosrifas/raffle/internal/domain"
)

type RedisCache struct {
	client          *redis.Client
	availabilityTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, availabilityTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:          redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		availabilityTTL: availabilityTTL,
	}
}

func (c *RedisCache) GetAvailability(ctx context.Context, eventID int64) (*domain.Availability, error) {
	data, err := c.client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var avail domain.Availability
	if err := json.Unmarshal(data, &avail); err != nil {
		return nil, err
	}
	return &avail, nil
}

// SetAvailability stores the snapshot for the configured TTL, capped at
// the time to the earliest hold expiry so the entry never outlives a hold.
func (c *RedisCache) SetAvailability(ctx context.Context, eventID int64, avail *domain.Availability) error {
	ttl := c.availabilityTTL
	if avail.NextLapse != nil {
		if untilLapse := time.Until(*avail.NextLapse); untilLapse < ttl {
			ttl = untilLapse
		}
	}
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(avail)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availabilityKey(eventID), payload, ttl).Err()
}

func (c *RedisCache) InvalidateAvailability(ctx context.Context, eventID int64) error {
	return c.client.Del(ctx, availabilityKey(eventID)).Err()
}

func availabilityKey(eventID int64) string {
	return fmt.Sprintf("cache:availability:event:%d", eventID)
}
