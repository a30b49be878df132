package definition

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-container/errcode"
	"github.com/KOMKZ/go-yogan-container/logger"
)

// RegistryOption 注册表选项
type RegistryOption func(*Registry)

// WithOverride 允许同名定义覆盖注册
// 覆盖仅在新旧定义作用域一致时成立（replace-if-compatible），
// 否则仍返回冲突错误；默认策略为拒绝任何同名注册
func WithOverride(allow bool) RegistryOption {
	return func(r *Registry) {
		r.allowOverride = allow
	}
}

// WithLogger 设置日志组件
func WithLogger(l *logger.CtxZapLogger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// Registry 组件定义注册表
//
// 并发约束：刷新期间由容器监视器保证单写；阶段 9 的构造只读不写
// （所有结构性变更在冻结前完成）
type Registry struct {
	mu            sync.RWMutex
	definitions   map[string]*Definition
	order         []string // 注册顺序（驱动实例化顺序）
	frozen        bool
	allowOverride bool
	logger        *logger.CtxZapLogger // 可选
}

// NewRegistry 创建定义注册表
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		definitions: make(map[string]*Definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// logDebug 安全的 Debug 日志（Logger 未注入时静默忽略）
func (r *Registry) logDebug(ctx context.Context, msg string, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.DebugCtx(ctx, msg, fields...)
	}
}

// logWarn 安全的 Warn 日志
func (r *Registry) logWarn(ctx context.Context, msg string, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.WarnCtx(ctx, msg, fields...)
	}
}

// Register 注册组件定义
//
// 冲突策略：
//   - 默认：同名定义返回冲突错误
//   - WithOverride(true)：作用域一致时替换旧定义（保留原注册位次），
//     作用域不一致返回不兼容覆盖错误
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return errcode.ErrDefinitionInvalid.WithMsg("组件定义不能为空")
	}

	def.normalize()
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errcode.ErrRegistryFrozen.
			WithMsgf("注册表已冻结，无法注册 '%s'", def.Name)
	}

	if existing, exists := r.definitions[def.Name]; exists {
		if !r.allowOverride {
			return errcode.ErrDefinitionConflict.
				WithMsgf("组件 '%s' 已存在", def.Name).
				WithData("existing_scope", string(existing.Scope))
		}
		if existing.Scope != def.Scope {
			return errcode.ErrIncompatibleOverride.
				WithMsgf("组件 '%s' 覆盖失败：作用域 %s 与 %s 不兼容",
					def.Name, existing.Scope, def.Scope)
		}
		// 兼容覆盖：替换定义，保留原注册位次
		r.logWarn(context.Background(), "组件定义被覆盖", zap.String("name", def.Name))
		r.definitions[def.Name] = def
		return nil
	}

	r.definitions[def.Name] = def
	r.order = append(r.order, def.Name)
	r.logDebug(context.Background(), "注册组件定义",
		zap.String("name", def.Name),
		zap.String("scope", string(def.Scope)),
		zap.String("role", def.Role.String()))

	return nil
}

// MustRegister 注册组件定义（失败则 panic）
// 适用于基础设施定义注册，失败时采用 Fail Fast 策略
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Remove 移除组件定义
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errcode.ErrRegistryFrozen.
			WithMsgf("注册表已冻结，无法移除 '%s'", name)
	}

	if _, exists := r.definitions[name]; !exists {
		return errcode.ErrDefinitionNotFound.WithMsgf("组件定义 '%s' 不存在", name)
	}

	delete(r.definitions, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get 获取组件定义
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[name]
	return def, ok
}

// Has 检查组件定义是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.definitions[name]
	return exists
}

// Names 返回所有定义名称（注册顺序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// NamesOfCapability 返回声明了指定能力的定义名称（注册顺序）
func (r *Registry) NamesOfCapability(cap Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, name := range r.order {
		if r.definitions[name].Capabilities.Has(cap) {
			names = append(names, name)
		}
	}
	return names
}

// Freeze 冻结注册表
// 之后的 Register/Remove 返回冻结错误；实例化阶段开始前调用
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen 检查注册表是否已冻结
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Len 已注册定义数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}
