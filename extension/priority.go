package extension

import (
	"sort"
)

// Tier 扩展优先级层级
type Tier int

const (
	// TierA 最高优先级（实现 PriorityOrdered）
	TierA Tier = iota
	// TierB 显式排序（实现 Ordered）
	TierB
	// TierC 无排序元数据，仅按发现顺序执行
	TierC
)

// String 层级字符串表示
func (t Tier) String() string {
	switch t {
	case TierA:
		return "tier-a"
	case TierB:
		return "tier-b"
	case TierC:
		return "tier-c"
	default:
		return "unknown"
	}
}

// Classify 对扩展实例分层
// 纯函数，无副作用，可重复并发调用
func Classify(v any) Tier {
	if _, ok := v.(PriorityOrdered); ok {
		return TierA
	}
	if _, ok := v.(Ordered); ok {
		return TierB
	}
	return TierC
}

// OrderOf 提取显式排序值（仅 Tier-A/Tier-B 有意义，其余返回 0）
func OrderOf(v any) int {
	if ordered, ok := v.(Ordered); ok {
		return ordered.Order()
	}
	return 0
}

// SortByPriority 按优先级稳定排序
// 规则：先按层级（A < B < C），同层按 Order 值升序；
// Order 相同或属于 Tier-C 时保留发现顺序（稳定排序）
func SortByPriority[T any](items []T, instance func(T) any) {
	sort.SliceStable(items, func(i, j int) bool {
		vi, vj := instance(items[i]), instance(items[j])
		ti, tj := Classify(vi), Classify(vj)
		if ti != tj {
			return ti < tj
		}
		if ti == TierC {
			return false // 发现顺序兜底
		}
		return OrderOf(vi) < OrderOf(vj)
	})
}
