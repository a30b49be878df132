// Package container 实现声明式组件的引导容器
//
// 宿主先注册组件定义（构造配方），随后一次性 Refresh：
// 容器按十个阶段把定义集合转化为就绪的单例实例图 ——
// 发现并运行注册表扩展（不动点）、注册实例扩展、安装事件广播器、
// 冻结注册表并按注册顺序实例化全部非延迟单例。
// Close 按构造逆序销毁，生命周期为 New → Active → Closed 单向推进
package container

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/KOMKZ/go-yogan-container/config"
	"github.com/KOMKZ/go-yogan-container/definition"
	"github.com/KOMKZ/go-yogan-container/errcode"
	"github.com/KOMKZ/go-yogan-container/event"
	"github.com/KOMKZ/go-yogan-container/extension"
	"github.com/KOMKZ/go-yogan-container/logger"
)

// 容器内置组件的约定名称
const (
	// ComponentConfig 配置加载器
	ComponentConfig = "config"
	// ComponentLogger 容器日志组件
	ComponentLogger = "logger"
	// ComponentEventBroadcaster 事件广播器（宿主可注册同名定义替换默认实现）
	ComponentEventBroadcaster = "eventBroadcaster"
	// ComponentMessageResolver 消息解析器（宿主可注册同名定义替换默认实现）
	ComponentMessageResolver = "messageResolver"
)

// Option 容器选项
type Option func(*Container)

// WithSource 添加定义数据源（刷新阶段 2 执行）
func WithSource(src DefinitionSource) Option {
	return func(c *Container) {
		c.sources = append(c.sources, src)
	}
}

// WithRegistryExtension 添加显式注册表扩展
// 显式扩展不经注册表发现，在刷新阶段 4 最先执行（仍按优先级层级排序）
func WithRegistryExtension(ext extension.RegistryExtension) Option {
	return func(c *Container) {
		c.explicitRegExts = append(c.explicitRegExts, ext)
	}
}

// WithConfigLoader 设置配置加载器
// 刷新准备阶段执行 Load 与必需项校验，并以 "config" 名称注册为单例
func WithConfigLoader(loader *config.Loader) Option {
	return func(c *Container) {
		c.configLoader = loader
	}
}

// WithRequiredKeys 声明必需配置项
// 刷新准备阶段任一缺失即中止刷新
func WithRequiredKeys(keys ...string) Option {
	return func(c *Container) {
		c.requiredKeys = append(c.requiredKeys, keys...)
	}
}

// WithOnRefresh 设置部署钩子
// 在单例实例化之前执行（阶段 7），此时仍可向注册表追加定义
func WithOnRefresh(hook func(ctx context.Context, c *Container) error) Option {
	return func(c *Container) {
		c.onRefresh = hook
	}
}

// WithOverride 允许同名定义覆盖注册（透传到定义注册表）
func WithOverride(allow bool) Option {
	return func(c *Container) {
		c.allowOverride = allow
	}
}

// WithContainerLogger 设置容器日志组件
func WithContainerLogger(l *logger.CtxZapLogger) Option {
	return func(c *Container) {
		c.logger = l
	}
}

// staticListener 刷新前登记的监听器（阶段 8 统一订阅）
type staticListener struct {
	eventName string
	listener  event.Listener
	opts      []event.SubscribeOption
}

// Container 组件容器
//
// 聚合定义注册表、单例注册表、扩展列表、事件广播器与生命周期状态机。
// Refresh 与 Close 由同一把互斥锁全程保护，不会交叠执行
type Container struct {
	id     string
	mu     sync.Mutex // 串行化 Refresh / Close
	state  stateMachine
	logger *logger.CtxZapLogger

	registry      *definition.Registry
	singletons    *singletonRegistry
	flight        *singleflight.Group
	allowOverride bool

	sources         []DefinitionSource
	explicitRegExts []extension.RegistryExtension
	instanceExts    []extension.InstanceExtension

	configLoader *config.Loader
	requiredKeys []string
	onRefresh    func(ctx context.Context, c *Container) error

	eventMu         sync.Mutex
	broadcaster     event.Broadcaster
	ownBroadcaster  bool
	staticListeners []staticListener
	earlyEvents     []event.Event

	msgResolver MessageResolver

	refreshed  bool
	refreshing atomic.Bool
}

// New 创建容器（StateNew）
func New(opts ...Option) *Container {
	c := &Container{
		id:          uuid.New().String(),
		logger:      logger.GetLogger("yogan"),
		singletons:  newSingletonRegistry(),
		flight:      &singleflight.Group{},
		msgResolver: echoResolver{},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.registry = definition.NewRegistry(
		definition.WithOverride(c.allowOverride),
		definition.WithLogger(c.logger),
	)

	return c
}

// ID 容器实例标识
func (c *Container) ID() string {
	return c.id
}

// State 当前生命周期状态
func (c *Container) State() State {
	return c.state.load()
}

// Registry 定义注册表
func (c *Container) Registry() *definition.Registry {
	return c.registry
}

// ConfigLoader 配置加载器（未设置时返回 nil）
func (c *Container) ConfigLoader() *config.Loader {
	return c.configLoader
}

// Broadcaster 事件广播器（刷新阶段 6 之前返回 nil）
func (c *Container) Broadcaster() event.Broadcaster {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	return c.broadcaster
}

// Register 注册组件定义（Refresh 前或阶段 1-8 内）
func (c *Container) Register(def *definition.Definition) error {
	return c.registry.Register(def)
}

// MustRegister 注册组件定义（失败则 panic）
func (c *Container) MustRegister(def *definition.Definition) {
	c.registry.MustRegister(def)
}

// lookupAllowed 查找是否被当前状态允许
// 刷新期间容器内部（扩展、构造函数）的解析放行
func (c *Container) lookupAllowed() bool {
	return c.state.load() == StateActive || c.refreshing.Load()
}

// Get 按名称查找组件实例
//
// 仅 Active 状态（或刷新进行中）允许；延迟单例首次查找时构造，
// 原型作用域每次构造新实例（不跟踪销毁）
func (c *Container) Get(ctx context.Context, name string) (any, error) {
	if !c.lookupAllowed() {
		return nil, errcode.ErrContainerState.
			WithMsgf("容器状态 %s 不允许查找组件 '%s'", c.state.load(), name)
	}
	return c.Resolve(ctx, name)
}

// MustGet 按名称查找组件实例（失败则 panic）
func (c *Container) MustGet(ctx context.Context, name string) any {
	inst, err := c.Get(ctx, name)
	if err != nil {
		panic(err)
	}
	return inst
}

// GetTyped 按名称查找并断言为指定类型
func GetTyped[T any](ctx context.Context, c *Container, name string) (T, error) {
	var zero T

	inst, err := c.Get(ctx, name)
	if err != nil {
		return zero, err
	}

	typed, ok := inst.(T)
	if !ok {
		return zero, errcode.ErrTypeMismatch.
			WithMsgf("组件 '%s' 实际类型 %T 与期望类型不符", name, inst)
	}
	return typed, nil
}

// Resolve 实现 definition.Resolver（构造函数的依赖解析入口）
//
// 不做状态校验：构造函数与扩展在刷新期间通过它递归解析依赖
func (c *Container) Resolve(ctx context.Context, name string) (any, error) {
	def, ok := c.registry.Get(name)
	if !ok {
		return nil, errcode.ErrUnresolvableDependency.
			WithMsgf("组件 '%s' 没有对应的定义", name)
	}

	if !def.IsSingleton() {
		return c.buildPrototype(ctx, name, def)
	}
	return c.resolveSingleton(ctx, name, def)
}

// resolveSingleton 解析单例（必要时触发构造）
//
// 同名构造由 singleflight 保证至多一次；进入单飞前先做循环检测，
// 避免同协程对同一 key 的重入死锁
func (c *Container) resolveSingleton(ctx context.Context, name string, def *definition.Definition) (any, error) {
	if inst, ok := c.singletons.get(name); ok {
		return inst, nil
	}

	ctx, err := pushResolution(ctx, name)
	if err != nil {
		return nil, err
	}

	inst, err, _ := c.flight.Do(name, func() (any, error) {
		// 双重检查：等待期间可能已由他人构造完成
		if inst, ok := c.singletons.get(name); ok {
			return inst, nil
		}
		return c.createSingleton(ctx, name, def)
	})
	return inst, err
}

// createSingleton 构造单例并登记构造顺序
func (c *Container) createSingleton(ctx context.Context, name string, def *definition.Definition) (any, error) {
	if err := c.resolveDependsOn(ctx, name, def); err != nil {
		return nil, err
	}

	inst, err := c.buildInstance(ctx, name, def)
	if err != nil {
		return nil, err
	}

	c.singletons.put(name, inst)
	c.logger.DebugCtx(ctx, "单例构造完成",
		zap.String("container_id", c.id),
		zap.String("name", name))
	return inst, nil
}

// buildPrototype 构造原型实例（每次全新，容器不跟踪）
func (c *Container) buildPrototype(ctx context.Context, name string, def *definition.Definition) (any, error) {
	ctx, err := pushResolution(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := c.resolveDependsOn(ctx, name, def); err != nil {
		return nil, err
	}
	return c.buildInstance(ctx, name, def)
}

// resolveDependsOn 先行解析显式声明的依赖
func (c *Container) resolveDependsOn(ctx context.Context, name string, def *definition.Definition) error {
	for _, dep := range def.DependsOn {
		if _, err := c.Resolve(ctx, dep); err != nil {
			return errcode.ErrUnresolvableDependency.
				Wrapf(err, "组件 '%s' 的依赖 '%s' 解析失败", name, dep)
		}
	}
	return nil
}

// buildInstance 执行构造函数并应用全部实例扩展的两个切点
func (c *Container) buildInstance(ctx context.Context, name string, def *definition.Definition) (any, error) {
	inst, err := def.Constructor(ctx, c)
	if err != nil {
		return nil, errcode.ErrConstructorFailure.
			Wrapf(err, "组件 '%s' 构造失败", name)
	}
	if inst == nil {
		return nil, errcode.ErrConstructorFailure.
			WithMsgf("组件 '%s' 构造函数返回了空实例", name)
	}

	for _, ext := range c.instanceExts {
		next, err := ext.BeforeCompletion(inst, name)
		if err != nil {
			return nil, errcode.ErrExtensionFailure.
				Wrapf(err, "组件 '%s' 的 BeforeCompletion 切点失败", name)
		}
		if next != nil {
			inst = next
		}
	}

	for _, ext := range c.instanceExts {
		next, err := ext.AfterCompletion(inst, name)
		if err != nil {
			return nil, errcode.ErrExtensionFailure.
				Wrapf(err, "组件 '%s' 的 AfterCompletion 切点失败", name)
		}
		if next != nil {
			inst = next
		}
	}

	return inst, nil
}

// ResolveCapability 按能力位做单匹配查找
//
// 零命中返回不可解析错误；多命中时唯一的 Primary 定义胜出，
// 否则返回歧义错误（候选名单附在错误数据里）
func (c *Container) ResolveCapability(cap definition.Capability) (string, error) {
	names := c.registry.NamesOfCapability(cap)

	switch len(names) {
	case 0:
		return "", errcode.ErrUnresolvableDependency.
			WithMsgf("没有定义声明能力位 %d", cap)
	case 1:
		return names[0], nil
	}

	var primary string
	primaryCount := 0
	for _, name := range names {
		if def, ok := c.registry.Get(name); ok && def.Primary {
			primary = name
			primaryCount++
		}
	}
	if primaryCount == 1 {
		return primary, nil
	}

	return "", errcode.ErrAmbiguousMatch.
		WithMsgf("能力位 %d 命中 %d 个定义且无法通过 Primary 消歧", cap, len(names)).
		WithData("candidates", names)
}

// PublishEvent 广播事件
//
// 广播器就绪前（刷新阶段 6 之前）发布的事件进入先行缓冲，
// 在阶段 8 监听器订阅完成后统一重放
func (c *Container) PublishEvent(ctx context.Context, ev event.Event) error {
	if ev == nil {
		return nil
	}
	if c.state.load() == StateClosed {
		return errcode.ErrContainerState.
			WithMsgf("容器已关闭，无法广播事件 '%s'", ev.Name())
	}

	c.eventMu.Lock()
	if c.broadcaster == nil {
		c.earlyEvents = append(c.earlyEvents, ev)
		c.eventMu.Unlock()
		return nil
	}
	b := c.broadcaster
	c.eventMu.Unlock()

	return b.Publish(ctx, ev)
}

// AddListener 登记事件监听器
// 刷新前登记的监听器在阶段 8 统一订阅；刷新后直接订阅广播器
func (c *Container) AddListener(eventName string, l event.Listener, opts ...event.SubscribeOption) {
	if l == nil {
		return
	}

	c.eventMu.Lock()
	if c.broadcaster == nil {
		c.staticListeners = append(c.staticListeners, staticListener{
			eventName: eventName,
			listener:  l,
			opts:      opts,
		})
		c.eventMu.Unlock()
		return
	}
	b := c.broadcaster
	c.eventMu.Unlock()

	b.Subscribe(eventName, l, opts...)
}

// ResolveMessage 通过消息解析器解析消息键
func (c *Container) ResolveMessage(key string, args ...any) string {
	return c.msgResolver.Resolve(key, args...)
}

// Close 关闭容器（幂等）
//
// 顺序：广播 closing 事件 → 按构造逆序调用生命周期组件的
// OnContainerStop → 按构造逆序销毁单例（Disposable.Destroy）→
// 释放广播器。单个组件的错误只收集不中断，最终合并返回
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.state.load()
	if state == StateClosed {
		return nil
	}
	if state != StateActive {
		// 从未刷新的容器直接进入终态
		c.state.store(StateClosed)
		return nil
	}

	c.logger.InfoCtx(ctx, "🛑 容器开始关闭",
		zap.String("container_id", c.id),
		zap.Int("singletons", c.singletons.len()))

	var errs []error

	c.eventMu.Lock()
	b := c.broadcaster
	c.eventMu.Unlock()

	if b != nil {
		if err := b.Publish(ctx, event.NewContainerClosingEvent(c.id)); err != nil {
			c.logger.ErrorCtx(ctx, "closing 事件广播失败", zap.Error(err))
			errs = append(errs, err)
		}
	}

	// 生命周期组件逆序停止
	names := c.singletons.names()
	for i := len(names) - 1; i >= 0; i-- {
		inst, ok := c.singletons.get(names[i])
		if !ok {
			continue
		}
		lc, ok := inst.(Lifecycle)
		if !ok {
			continue
		}
		if err := lc.OnContainerStop(ctx); err != nil {
			c.logger.ErrorCtx(ctx, "生命周期组件停止失败",
				zap.String("name", names[i]),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	errs = append(errs, c.singletons.destroyAll(ctx, c.logger)...)

	if c.ownBroadcaster && b != nil {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	c.state.store(StateClosed)
	c.logger.InfoCtx(ctx, "✅ 容器已关闭", zap.String("container_id", c.id))

	return errors.Join(errs...)
}
