package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	planCachePrefix   = "HousePlan:"
	deletedPlanPrefix = "HousePlan:deleted:"
	// deletedPlanTTL outlives any read that started before the delete.
	deletedPlanTTL = 10 * time.Minute
)

// PlanCache is a read-through copy of stored plans. Plans never change after
// creation, so entries only go away on delete or expiry. Remove leaves a
// deleted marker behind so a read that loaded the plan before the delete
// cannot put it back. A nil cache or nil client is a no-op.
type PlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPlanCache(client *redis.Client, ttl time.Duration) *PlanCache {
	return &PlanCache{client: client, ttl: ttl}
}

func (c *PlanCache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns (nil, false, nil) on a miss.
func (c *PlanCache) Get(ctx context.Context, id string) (*HousePlan, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, planCachePrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var plan HousePlan
	if err := json.Unmarshal(val, &plan); err != nil {
		return nil, false, err
	}
	return &plan, true, nil
}

func (c *PlanCache) Set(ctx context.Context, plan *HousePlan) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, planCachePrefix+plan.ID, data, c.ttl).Err()
}

// Fill caches a plan read from the store unless it was deleted in the
// meantime. It reports false when the deleted marker is present; the caller
// must then treat the plan as gone.
func (c *PlanCache) Fill(ctx context.Context, plan *HousePlan) (bool, error) {
	if !c.enabled() {
		return true, nil
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return true, err
	}
	marker := deletedPlanPrefix + plan.ID
	stored := true
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, marker).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			stored = false
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, planCachePrefix+plan.ID, data, c.ttl)
			return nil
		})
		return err
	}, marker)
	if errors.Is(err, redis.TxFailedErr) {
		// the marker was written while we were filling
		return false, nil
	}
	return stored, err
}

// Deleted reports whether the plan was removed recently.
func (c *PlanCache) Deleted(ctx context.Context, id string) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	n, err := c.client.Exists(ctx, deletedPlanPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remove drops the cached plan and marks it deleted.
func (c *PlanCache) Remove(ctx context.Context, id string) error {
	if !c.enabled() {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, deletedPlanPrefix+id, 1, deletedPlanTTL)
		pipe.Del(ctx, planCachePrefix+id)
		return nil
	})
	return err
}
