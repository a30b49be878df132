// Package event 提供容器内存事件广播能力
// Broadcaster 在刷新完成（ready）和关闭开始（closing）时向监听器广播，
// 也可承载宿主进程的自定义事件
package event

import "time"

// Event 事件接口
type Event interface {
	// Name 事件名称（唯一标识，如 "container.ready"）
	Name() string
}

// 容器生命周期事件名称
const (
	// EventContainerReady 刷新完成事件
	EventContainerReady = "container.ready"
	// EventContainerClosing 关闭开始事件
	EventContainerClosing = "container.closing"
)

// BaseEvent 事件基类，可嵌入到具体事件结构体
type BaseEvent struct {
	name       string
	occurredAt time.Time
}

// NewEvent 创建基础事件
func NewEvent(name string) BaseEvent {
	return BaseEvent{
		name:       name,
		occurredAt: time.Now(),
	}
}

// Name 返回事件名称
func (e BaseEvent) Name() string {
	return e.name
}

// OccurredAt 返回事件发生时间
func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// ContainerReadyEvent 容器就绪事件
// 所有非延迟单例实例化完成、生命周期组件已启动后广播
type ContainerReadyEvent struct {
	BaseEvent
	ContainerID string
	Elapsed     time.Duration // 刷新耗时
}

// NewContainerReadyEvent 创建容器就绪事件
func NewContainerReadyEvent(containerID string, elapsed time.Duration) *ContainerReadyEvent {
	return &ContainerReadyEvent{
		BaseEvent:   NewEvent(EventContainerReady),
		ContainerID: containerID,
		Elapsed:     elapsed,
	}
}

// ContainerClosingEvent 容器关闭事件
// 单例销毁开始前广播
type ContainerClosingEvent struct {
	BaseEvent
	ContainerID string
}

// NewContainerClosingEvent 创建容器关闭事件
func NewContainerClosingEvent(containerID string) *ContainerClosingEvent {
	return &ContainerClosingEvent{
		BaseEvent:   NewEvent(EventContainerClosing),
		ContainerID: containerID,
	}
}
