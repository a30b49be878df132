// Package errcode 提供分层错误码的基础类型和功能
package errcode

import (
	"fmt"
	"sort"
	"sync"
)

// codeEntry 已注册错误码的归属信息
type codeEntry struct {
	module string
	msgKey string
}

// key 冲突判定用的唯一键
func (e codeEntry) key() string {
	return e.module + ":" + e.msgKey
}

// Registry 错误码注册表
// 校验 MMBBBB 编码范围并防止错误码冲突；冲突立即 panic（Fail Fast）
type Registry struct {
	mu      sync.RWMutex
	entries map[int]codeEntry
	locked  bool // 锁定后不允许注册新错误码
}

// NewRegistry 创建错误码注册表
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]codeEntry),
	}
}

// globalRegistry 全局错误码注册表（内核错误码在 init 阶段注册于此）
var globalRegistry = NewRegistry()

// Register 注册错误码到全局注册表
// 编码超出 MMBBBB 范围、或与既有错误码冲突时 panic
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register 注册错误码
// 同一错误码以相同模块与消息键重复注册是幂等的
func (r *Registry) Register(err *LayeredError) *LayeredError {
	code := err.Code()
	if code < 100001 || code > 999999 || code%10000 == 0 {
		panic(fmt.Sprintf("错误码 %d 超出 MMBBBB 范围（模块码 10-99，业务码 0001-9999）", code))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		panic(fmt.Sprintf("注册表已锁定，无法注册错误码: %d", code))
	}

	entry := codeEntry{module: err.Module(), msgKey: err.MsgKey()}
	if existing, exists := r.entries[code]; exists {
		if existing != entry {
			panic(fmt.Sprintf(
				"错误码冲突: %d 已注册为 %s，无法再注册为 %s",
				code, existing.key(), entry.key(),
			))
		}
		return err
	}

	r.entries[code] = entry
	return err
}

// Lock 锁定注册表，阻止新错误码注册
// 通常在容器刷新完成后调用，防止运行时动态注册错误码
func (r *Registry) Lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

// Unlock 解锁注册表，允许注册新错误码
func (r *Registry) Unlock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = false
}

// IsLocked 检查注册表是否已锁定
func (r *Registry) IsLocked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

// GetAll 获取所有已注册的错误码（code -> "module:msgKey"）
func (r *Registry) GetAll() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make(map[int]string, len(r.entries))
	for code, entry := range r.entries {
		codes[code] = entry.key()
	}
	return codes
}

// CodesOfModule 获取指定模块名下的全部错误码（升序）
func (r *Registry) CodesOfModule(module string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var codes []int
	for code, entry := range r.entries {
		if entry.module == module {
			codes = append(codes, code)
		}
	}
	sort.Ints(codes)
	return codes
}

// Count 获取已注册错误码数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear 清空注册表（仅用于测试）
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[int]codeEntry)
	r.locked = false
}

// LockGlobalRegistry 锁定全局注册表
func LockGlobalRegistry() {
	globalRegistry.Lock()
}

// UnlockGlobalRegistry 解锁全局注册表
func UnlockGlobalRegistry() {
	globalRegistry.Unlock()
}

// IsGlobalRegistryLocked 检查全局注册表是否已锁定
func IsGlobalRegistryLocked() bool {
	return globalRegistry.IsLocked()
}

// GetAllRegisteredCodes 获取所有已注册的错误码
func GetAllRegisteredCodes() map[int]string {
	return globalRegistry.GetAll()
}

// GetRegistryCount 获取已注册错误码数量
func GetRegistryCount() int {
	return globalRegistry.Count()
}

// ClearGlobalRegistry 清空全局注册表（仅用于测试）
func ClearGlobalRegistry() {
	globalRegistry.Clear()
}
