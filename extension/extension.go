// Package extension 定义容器扩展接口与优先级分类器
//
// 扩展自身也是具名组件：容器在刷新时按能力位从定义注册表中发现扩展，
// 而不是接收一份固定列表（这也是注册表扩展需要不动点发现的原因）
package extension

import (
	"github.com/KOMKZ/go-yogan-container/definition"
)

// RegistryExtension 注册表扩展（实例化开始前改写定义集合）
type RegistryExtension interface {
	// OnRegistryReady 注册表就绪回调
	// 可以注册全新定义（包括新的扩展定义，会被同一次刷新继续发现）
	OnRegistryReady(reg *definition.Registry) error

	// OnDefinitionsFinal 定义集合定稿回调
	// 只允许读取/改写既有定义的元数据（如代理目标提示），不得注册新名称；
	// 所有 OnRegistryReady 完成后按相同层级顺序恰好调用一次
	OnDefinitionsFinal(reg *definition.Registry) error
}

// InstanceExtension 实例扩展（构造完成前后两个切点拦截实例）
// 两个切点都允许返回替换对象（如包装代理），或原样返回
type InstanceExtension interface {
	// BeforeCompletion 构造完成前切点
	BeforeCompletion(instance any, name string) (any, error)

	// AfterCompletion 构造完成后切点
	AfterCompletion(instance any, name string) (any, error)
}

// Ordered 显式排序元数据（Tier-B）
// Order 数值越小越先执行
type Ordered interface {
	Order() int
}

// PriorityOrdered 最高优先级标记（Tier-A）
// 实现此接口的扩展整体先于所有 Tier-B/Tier-C 扩展执行
type PriorityOrdered interface {
	Ordered
	// PriorityOrdered 标记方法，无行为
	PriorityOrdered()
}
