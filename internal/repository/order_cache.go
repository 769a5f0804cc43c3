package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachedOrder 每个(学生,作业)一条出题顺序缓存，带生成时间，独立命名空间。
type CachedOrder struct {
	Order     []uint    `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderCacheRepository struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewOrderCacheRepository(rdb *redis.Client, ttl time.Duration) *OrderCacheRepository {
	return &OrderCacheRepository{RDB: rdb, TTL: ttl}
}

func orderKey(userID, assignmentID uint) string {
	return fmt.Sprintf("proctor:order:%d:%d", assignmentID, userID)
}

// Get 返回缓存的顺序，未命中返回 nil。
func (r *OrderCacheRepository) Get(ctx context.Context, userID, assignmentID uint) (*CachedOrder, error) {
	raw, err := r.RDB.Get(ctx, orderKey(userID, assignmentID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedOrder
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		// 脏数据当作未命中，让上层重新生成
		return nil, nil
	}
	return &cached, nil
}

func (r *OrderCacheRepository) Set(ctx context.Context, userID, assignmentID uint, order []uint, now time.Time) error {
	raw, err := json.Marshal(CachedOrder{Order: order, Timestamp: now})
	if err != nil {
		return err
	}
	return r.RDB.Set(ctx, orderKey(userID, assignmentID), raw, r.TTL).Err()
}

// Delete 交卷后清除，下次进入重新洗牌。
func (r *OrderCacheRepository) Delete(ctx context.Context, userID, assignmentID uint) error {
	return r.RDB.Del(ctx, orderKey(userID, assignmentID)).Err()
}
