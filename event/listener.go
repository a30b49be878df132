package event

import (
	"context"
	"errors"
)

// Listener 监听器接口
type Listener interface {
	// Handle 处理事件
	// 返回错误时同步广播停止后续监听器执行
	// 返回 ErrStopPropagation 停止传播但不视为错误
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc 函数式监听器适配器
type ListenerFunc func(ctx context.Context, event Event) error

// Handle 实现 Listener 接口
func (f ListenerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// ErrStopPropagation 停止事件传播（不视为错误）
// 监听器返回此错误时，后续监听器不再执行，但 Publish 不返回错误
var ErrStopPropagation = errors.New("stop propagation")

// ErrBroadcasterClosed 广播器已关闭
var ErrBroadcasterClosed = errors.New("broadcaster closed")
