// Package definition 提供组件定义（构造配方）与定义注册表
// 这是容器的最底层包，只依赖 errcode 与 logger，避免循环依赖
package definition

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-container/errcode"
)

// Scope 组件作用域
type Scope string

const (
	// ScopeSingleton 单例：容器内至多一个实例，刷新阶段 9 统一实例化
	ScopeSingleton Scope = "singleton"
	// ScopePrototype 原型：每次查找都构造新实例，容器不跟踪销毁
	ScopePrototype Scope = "prototype"
)

// Role 定义角色标签
type Role int

const (
	// RoleApplication 用户定义的业务组件
	RoleApplication Role = iota
	// RoleSupport 支撑组件（配置片段、辅助对象）
	RoleSupport
	// RoleInfrastructure 容器基础设施组件（扩展、广播器等）
	RoleInfrastructure
)

// String 角色字符串表示
func (r Role) String() string {
	switch r {
	case RoleApplication:
		return "application"
	case RoleSupport:
		return "support"
	case RoleInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Capability 定义能力位集
// 容器按能力查找扩展定义，而不是依赖运行时类型探测
type Capability uint8

const (
	// CapRegistryExtension 注册表扩展能力（实例化前可增改定义）
	CapRegistryExtension Capability = 1 << iota
	// CapInstanceExtension 实例扩展能力（构造前后两个切点拦截实例）
	CapInstanceExtension
)

// Has 检查能力位是否包含指定能力
func (c Capability) Has(cap Capability) bool {
	return c&cap == cap
}

// Resolver 名称解析接口
// 构造函数通过它按名称解析依赖组件（由容器实现）
type Resolver interface {
	// Resolve 按名称解析组件实例
	// 单例返回共享实例（必要时触发构造），原型每次构造新实例
	Resolve(ctx context.Context, name string) (any, error)
}

// Constructor 组件构造函数
// 依赖通过 Resolver 按名称解析，解析过程递归且深度优先
type Constructor func(ctx context.Context, r Resolver) (any, error)

// Definition 组件定义（构造配方 + 元数据）
//
// 注册后归 Registry 独占所有权；在对应实例创建前可被注册表扩展改写，
// Freeze 之后的结构性变更属于未定义行为（注册表会直接拒绝）
type Definition struct {
	// Name 组件名称（唯一标识）
	Name string

	// Scope 作用域（默认 singleton）
	Scope Scope

	// Lazy 延迟实例化：跳过刷新阶段的统一实例化，首次查找时构造
	Lazy bool

	// Role 角色标签
	Role Role

	// Primary 能力查找命中多个定义时的优先标记
	Primary bool

	// DependsOn 声明依赖的组件名称，构造前保证已实例化
	DependsOn []string

	// Capabilities 能力位集（扩展定义必须声明对应能力位）
	Capabilities Capability

	// Constructor 构造函数
	Constructor Constructor

	// Properties 自由元数据，注册表扩展可在 OnDefinitionsFinal 阶段读写
	// （如代理目标提示），构造函数可按需消费
	Properties map[string]any
}

// normalize 填充默认值
func (d *Definition) normalize() {
	if d.Scope == "" {
		d.Scope = ScopeSingleton
	}
	if d.Properties == nil {
		d.Properties = make(map[string]any)
	}
}

// Validate 校验定义字段合法性
func (d *Definition) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Scope, validation.In(ScopeSingleton, ScopePrototype)),
	)
	if err != nil {
		if validationErrs, ok := err.(validation.Errors); ok {
			fields := make(map[string]string, len(validationErrs))
			for field, fieldErr := range validationErrs {
				if fieldErr != nil {
					fields[field] = fieldErr.Error()
				}
			}
			return errcode.ErrDefinitionInvalid.
				WithMsgf("组件定义 '%s' 校验失败", d.Name).
				WithData("fields", fields)
		}
		return errcode.ErrDefinitionInvalid.Wrap(err)
	}

	if d.Constructor == nil {
		return errcode.ErrDefinitionInvalid.
			WithMsgf("组件定义 '%s' 缺少构造函数", d.Name)
	}

	return nil
}

// GetProperty 读取元数据
func (d *Definition) GetProperty(key string) (any, bool) {
	if d.Properties == nil {
		return nil, false
	}
	v, ok := d.Properties[key]
	return v, ok
}

// SetProperty 写入元数据
func (d *Definition) SetProperty(key string, value any) {
	if d.Properties == nil {
		d.Properties = make(map[string]any)
	}
	d.Properties[key] = value
}

// IsSingleton 是否单例作用域
func (d *Definition) IsSingleton() bool {
	return d.Scope == ScopeSingleton
}
