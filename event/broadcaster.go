package event

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-container/logger"
)

// UnsubscribeFunc 取消订阅函数
type UnsubscribeFunc func()

// WildcardName 通配订阅名，接收所有事件
const WildcardName = "*"

// Broadcaster 事件广播器接口
// 容器默认安装 MemoryBroadcaster；宿主可注册名为 "eventBroadcaster"
// 的定义提供自定义实现
type Broadcaster interface {
	// Subscribe 订阅事件，返回取消订阅函数
	// eventName 为 WildcardName 时接收所有事件
	Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc

	// Publish 广播事件
	// 默认同步按优先级顺序执行监听器；标记 WithAsync 的监听器提交协程池
	Publish(ctx context.Context, event Event) error

	// Close 关闭广播器，释放协程池（幂等）
	Close() error
}

// listenerEntry 监听器条目
type listenerEntry struct {
	id       uint64
	listener Listener
	priority int  // 数值越小优先级越高
	async    bool // 是否异步执行
}

// SubscribeOption 订阅选项
type SubscribeOption func(*listenerEntry)

// WithPriority 设置优先级
// 数值越小优先级越高，越先执行；默认 0
func WithPriority(priority int) SubscribeOption {
	return func(e *listenerEntry) {
		e.priority = priority
	}
}

// WithAsync 标记为异步监听器
// 异步监听器的错误不影响事件传播
func WithAsync() SubscribeOption {
	return func(e *listenerEntry) {
		e.async = true
	}
}

// BroadcasterOption 广播器配置选项
type BroadcasterOption func(*MemoryBroadcaster)

// WithPoolSize 设置异步协程池大小
func WithPoolSize(size int) BroadcasterOption {
	return func(b *MemoryBroadcaster) {
		b.poolSize = size
	}
}

// WithLogger 设置日志组件
func WithLogger(l *logger.CtxZapLogger) BroadcasterOption {
	return func(b *MemoryBroadcaster) {
		b.logger = l
	}
}

// MemoryBroadcaster 内存事件广播器
type MemoryBroadcaster struct {
	mu        sync.RWMutex
	listeners map[string][]listenerEntry
	nextID    uint64
	pool      *ants.Pool
	poolSize  int
	logger    *logger.CtxZapLogger
	closed    int32
}

// NewBroadcaster 创建内存事件广播器
func NewBroadcaster(opts ...BroadcasterOption) *MemoryBroadcaster {
	b := &MemoryBroadcaster{
		listeners: make(map[string][]listenerEntry),
		poolSize:  64,
		logger:    logger.GetLogger("yogan"),
	}

	for _, opt := range opts {
		opt(b)
	}

	var err error
	b.pool, err = ants.NewPool(b.poolSize)
	if err != nil {
		b.logger.Error("创建协程池失败，使用默认配置", zap.Error(err))
		b.pool, _ = ants.NewPool(64)
	}

	return b
}

// Subscribe 订阅事件
func (b *MemoryBroadcaster) Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc {
	if eventName == "" || listener == nil {
		return func() {}
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&b.nextID, 1),
		listener: listener,
	}

	for _, opt := range opts {
		opt(&entry)
	}

	b.mu.Lock()
	b.listeners[eventName] = append(b.listeners[eventName], entry)
	// 按优先级排序（稳定，相同优先级保留订阅顺序）
	sort.SliceStable(b.listeners[eventName], func(i, j int) bool {
		return b.listeners[eventName][i].priority < b.listeners[eventName][j].priority
	})
	b.mu.Unlock()

	return func() {
		b.unsubscribe(eventName, entry.id)
	}
}

// unsubscribe 取消订阅
func (b *MemoryBroadcaster) unsubscribe(eventName string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.listeners[eventName]
	for i, e := range entries {
		if e.id == id {
			b.listeners[eventName] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Publish 广播事件
// 按优先级依次执行精确匹配与通配订阅的监听器；
// 同步监听器返回错误时停止传播并返回该错误
func (b *MemoryBroadcaster) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return nil
	}
	if atomic.LoadInt32(&b.closed) == 1 {
		return ErrBroadcasterClosed
	}

	b.mu.RLock()
	exact := b.listeners[event.Name()]
	wildcard := b.listeners[WildcardName]
	entries := make([]listenerEntry, 0, len(exact)+len(wildcard))
	entries = append(entries, exact...)
	entries = append(entries, wildcard...)
	b.mu.RUnlock()

	// 合并后整体按优先级重排（稳定）
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})

	for _, entry := range entries {
		if entry.async {
			b.submitAsync(ctx, entry, event)
			continue
		}

		if err := entry.listener.Handle(ctx, event); err != nil {
			if err == ErrStopPropagation {
				return nil
			}
			b.logger.ErrorCtx(ctx, "监听器执行失败",
				zap.String("event", event.Name()),
				zap.Error(err))
			return err
		}
	}

	return nil
}

// submitAsync 提交异步监听器到协程池
func (b *MemoryBroadcaster) submitAsync(ctx context.Context, entry listenerEntry, ev Event) {
	err := b.pool.Submit(func() {
		if err := entry.listener.Handle(ctx, ev); err != nil && err != ErrStopPropagation {
			b.logger.ErrorCtx(ctx, "异步监听器执行失败",
				zap.String("event", ev.Name()),
				zap.Error(err))
		}
	})
	if err != nil {
		// 协程池不可用时降级为同步执行
		if herr := entry.listener.Handle(ctx, ev); herr != nil && herr != ErrStopPropagation {
			b.logger.ErrorCtx(ctx, "异步监听器降级执行失败",
				zap.String("event", ev.Name()),
				zap.Error(herr))
		}
	}
}

// Close 关闭广播器（幂等）
func (b *MemoryBroadcaster) Close() error {
	if !atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		return nil
	}
	b.pool.Release()
	return nil
}
