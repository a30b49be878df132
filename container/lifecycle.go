package container

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/KOMKZ/go-yogan-container/definition"
)

// State 容器生命周期状态
// 状态机：New --Refresh--> Active --Close--> Closed
// 刷新失败时直接进入 Closed（从未激活）
type State int32

const (
	// StateNew 初始状态，只允许注册定义与调用 Refresh
	StateNew State = iota
	// StateActive 刷新成功，允许查找与事件广播
	StateActive
	// StateClosed 终态，任何需要活跃容器的操作都被拒绝
	StateClosed
)

// String 状态字符串表示
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateMachine 原子状态存取
type stateMachine struct {
	v int32
}

func (m *stateMachine) load() State {
	return State(atomic.LoadInt32(&m.v))
}

func (m *stateMachine) store(s State) {
	atomic.StoreInt32(&m.v, int32(s))
}

// Lifecycle 生命周期组件接口
// 单例实例实现此接口时，容器在刷新收尾阶段按构造顺序调用 OnContainerStart，
// 在关闭时按构造逆序调用 OnContainerStop
type Lifecycle interface {
	OnContainerStart(ctx context.Context) error
	OnContainerStop(ctx context.Context) error
}

// Disposable 可销毁组件接口
// 单例实例实现此接口时，容器销毁阶段调用 Destroy 释放资源
type Disposable interface {
	Destroy(ctx context.Context) error
}

// DefinitionSource 定义数据源
// 刷新阶段 2 依次执行，向注册表批量写入组件定义
type DefinitionSource interface {
	Populate(reg *definition.Registry) error
}

// DefinitionSourceFunc 函数式定义数据源适配器
type DefinitionSourceFunc func(reg *definition.Registry) error

// Populate 实现 DefinitionSource 接口
func (f DefinitionSourceFunc) Populate(reg *definition.Registry) error {
	return f(reg)
}

// MessageResolver 消息解析器
// 宿主可注册名为 "messageResolver" 的定义替换默认实现（如接入国际化）
type MessageResolver interface {
	Resolve(key string, args ...any) string
}

// echoResolver 默认消息解析器（原样回显消息键）
type echoResolver struct{}

func (echoResolver) Resolve(key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf(key, args...)
}
