package service

import (
	"math/rand"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/repository"
)

// ResolveOrder 决定本次呈现的出题顺序。纯函数，不触碰存储与真实时钟。
//
// 缓存命中条件：存在、未过期(now-timestamp<ttl)、长度与当前题集一致。
// 命中时把缓存的题目ID映射回当前题集（已下架的题直接丢弃），映射后长度
// 不再一致则视为题集结构已变化，作废重洗。其余情况生成新的均匀洗牌排列。
// 返回 reused=true 表示沿用了缓存顺序，调用方无需重写缓存。
func ResolveOrder(questionIDs []uint, cached *repository.CachedOrder, now time.Time, ttl time.Duration) (order []uint, reused bool) {
	current := make(map[uint]bool, len(questionIDs))
	for _, id := range questionIDs {
		current[id] = true
	}

	if cached != nil && now.Sub(cached.Timestamp) < ttl && len(cached.Order) == len(questionIDs) {
		mapped := make([]uint, 0, len(cached.Order))
		for _, id := range cached.Order {
			if current[id] {
				mapped = append(mapped, id)
			}
		}
		if len(mapped) == len(questionIDs) {
			return mapped, true
		}
	}

	order = make([]uint, len(questionIDs))
	copy(order, questionIDs)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order, false
}
