package container

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/KOMKZ/go-yogan-container/definition"
	"github.com/KOMKZ/go-yogan-container/errcode"
	"github.com/KOMKZ/go-yogan-container/event"
	"github.com/KOMKZ/go-yogan-container/extension"
)

// Refresh 刷新容器：把定义集合转化为就绪的单例实例图
//
// 十个阶段按固定顺序执行；阶段 2-10 中任一失败都会按构造逆序销毁
// 本次刷新已创建的全部单例、转入 Closed 并返回原始错误。
// 整个刷新在容器互斥锁内完成，且只能从 StateNew 发起一次
func (c *Container) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// ── 阶段 1：准备 ──
	if c.refreshed {
		return errcode.ErrRefreshAlreadyCalled.
			WithMsgf("容器 %s 已经刷新过", c.id)
	}
	if c.state.load() != StateNew {
		return errcode.ErrContainerState.
			WithMsgf("容器状态 %s 不允许刷新", c.state.load())
	}
	c.refreshed = true
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	start := time.Now()
	c.logger.InfoCtx(ctx, "🚀 容器开始刷新",
		zap.String("container_id", c.id))

	if err := c.prepareConfig(ctx); err != nil {
		return c.rollback(ctx, err)
	}

	// ── 阶段 2：执行定义数据源 ──
	for _, src := range c.sources {
		if err := src.Populate(c.registry); err != nil {
			return c.rollback(ctx, err)
		}
	}

	// ── 阶段 3：登记基础设施单例 ──
	if err := c.prepareRegistry(ctx); err != nil {
		return c.rollback(ctx, err)
	}

	// ── 阶段 4：注册表扩展不动点 ──
	finalizers, err := c.invokeRegistryExtensions(ctx)
	if err != nil {
		return c.rollback(ctx, err)
	}
	for _, ext := range finalizers {
		if err := ext.OnDefinitionsFinal(c.registry); err != nil {
			return c.rollback(ctx, errcode.ErrExtensionFailure.
				Wrapf(err, "注册表扩展 OnDefinitionsFinal 失败"))
		}
	}

	// ── 阶段 5：注册实例扩展 ──
	if err := c.registerInstanceExtensions(ctx); err != nil {
		return c.rollback(ctx, err)
	}

	// ── 阶段 6：后置基础设施（广播器、消息解析器） ──
	if err := c.initBroadcaster(ctx); err != nil {
		return c.rollback(ctx, err)
	}
	if err := c.initMessageResolver(ctx); err != nil {
		return c.rollback(ctx, err)
	}

	// ── 阶段 7：部署钩子 ──
	if c.onRefresh != nil {
		if err := c.onRefresh(ctx, c); err != nil {
			return c.rollback(ctx, err)
		}
	}

	// ── 阶段 8：订阅监听器并重放先行事件 ──
	if err := c.registerListeners(ctx); err != nil {
		return c.rollback(ctx, err)
	}

	// ── 阶段 9：冻结注册表，实例化全部非延迟单例 ──
	c.registry.Freeze()
	for _, name := range c.registry.Names() {
		def, ok := c.registry.Get(name)
		if !ok || !def.IsSingleton() || def.Lazy {
			continue
		}
		if _, err := c.resolveSingleton(ctx, name, def); err != nil {
			return c.rollback(ctx, err)
		}
	}

	// ── 阶段 10：收尾 ──
	// 丢弃刷新期间的解析缓存，延迟单例从干净的单飞组开始
	c.flight = &singleflight.Group{}

	for _, name := range c.singletons.names() {
		inst, ok := c.singletons.get(name)
		if !ok {
			continue
		}
		if lc, ok := inst.(Lifecycle); ok {
			if err := lc.OnContainerStart(ctx); err != nil {
				return c.rollback(ctx, err)
			}
		}
	}

	elapsed := time.Since(start)
	if err := c.PublishEvent(ctx, event.NewContainerReadyEvent(c.id, elapsed)); err != nil {
		return c.rollback(ctx, err)
	}

	c.state.store(StateActive)
	c.logger.InfoCtx(ctx, "✅ 容器刷新完成",
		zap.String("container_id", c.id),
		zap.Int("singletons", c.singletons.len()),
		zap.Duration("elapsed", elapsed))

	return nil
}

// prepareConfig 加载配置并校验必需项（阶段 1）
func (c *Container) prepareConfig(ctx context.Context) error {
	if c.configLoader == nil {
		if len(c.requiredKeys) > 0 {
			return errcode.ErrConfigRequired.
				WithMsgf("声明了必需配置项但未提供配置加载器").
				WithData("missing", c.requiredKeys)
		}
		return nil
	}

	if err := c.configLoader.Load(); err != nil {
		return err
	}
	if err := c.configLoader.RequireKeys(c.requiredKeys...); err != nil {
		return err
	}

	c.logger.DebugCtx(ctx, "配置加载完成",
		zap.Strings("files", c.configLoader.GetLoadedFiles()))
	return nil
}

// prepareRegistry 以约定名称登记基础设施单例（阶段 3）
// 宿主已注册同名定义时不覆盖（宿主定义走正常实例化流程）
func (c *Container) prepareRegistry(ctx context.Context) error {
	if c.configLoader != nil {
		if err := c.installRuntimeSingleton(ComponentConfig, c.configLoader); err != nil {
			return err
		}
	}
	if err := c.installRuntimeSingleton(ComponentLogger, c.logger); err != nil {
		return err
	}
	return nil
}

// installRuntimeSingleton 登记一个已存在对象为基础设施单例
func (c *Container) installRuntimeSingleton(name string, inst any) error {
	if c.registry.Has(name) {
		return nil
	}

	err := c.registry.Register(&definition.Definition{
		Name:  name,
		Scope: definition.ScopeSingleton,
		Role:  definition.RoleInfrastructure,
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			return inst, nil
		},
	})
	if err != nil {
		return err
	}

	c.singletons.put(name, inst)
	return nil
}

// regExtCandidate 发现的注册表扩展候选（保留发现顺序供稳定排序）
type regExtCandidate struct {
	name string
	ext  extension.RegistryExtension
}

// invokeRegistryExtensions 注册表扩展不动点（阶段 4）
//
// 顺序：显式扩展 → Tier-A 波次 → Tier-B 波次（补扫新发现的
// Tier-A/B）→ 剩余候选循环扫描直到一轮发现为零。
// 每个名称进入 processed 集合，同一次刷新至多执行一次。
// 返回已执行扩展（按执行顺序），供 OnDefinitionsFinal 回调
func (c *Container) invokeRegistryExtensions(ctx context.Context) ([]extension.RegistryExtension, error) {
	processed := make(map[string]bool)
	var invoked []extension.RegistryExtension

	run := func(batch []regExtCandidate) error {
		extension.SortByPriority(batch, func(cand regExtCandidate) any { return cand.ext })
		for _, cand := range batch {
			c.logger.DebugCtx(ctx, "执行注册表扩展",
				zap.String("name", cand.name),
				zap.String("tier", extension.Classify(cand.ext).String()))
			if err := cand.ext.OnRegistryReady(c.registry); err != nil {
				return errcode.ErrExtensionFailure.
					Wrapf(err, "注册表扩展 '%s' 执行失败", cand.name)
			}
			invoked = append(invoked, cand.ext)
		}
		return nil
	}

	// 显式扩展最先执行（不经注册表发现）
	explicit := make([]regExtCandidate, 0, len(c.explicitRegExts))
	for _, ext := range c.explicitRegExts {
		explicit = append(explicit, regExtCandidate{name: "<explicit>", ext: ext})
	}
	if err := run(explicit); err != nil {
		return nil, err
	}

	// collect 实例化并收集未处理的候选，按层级过滤
	collect := func(accept func(extension.Tier) bool) ([]regExtCandidate, error) {
		var batch []regExtCandidate
		for _, name := range c.registry.NamesOfCapability(definition.CapRegistryExtension) {
			if processed[name] {
				continue
			}
			inst, err := c.Resolve(ctx, name)
			if err != nil {
				return nil, err
			}
			ext, ok := inst.(extension.RegistryExtension)
			if !ok {
				return nil, errcode.ErrTypeMismatch.
					WithMsgf("组件 '%s' 声明了注册表扩展能力但未实现对应接口", name)
			}
			if !accept(extension.Classify(ext)) {
				continue
			}
			processed[name] = true
			batch = append(batch, regExtCandidate{name: name, ext: ext})
		}
		return batch, nil
	}

	// Tier-A 波次
	batch, err := collect(func(t extension.Tier) bool { return t == extension.TierA })
	if err != nil {
		return nil, err
	}
	if err := run(batch); err != nil {
		return nil, err
	}

	// Tier-B 波次（包含 Tier-A 波次之后新注册的 Tier-A 扩展）
	batch, err = collect(func(t extension.Tier) bool { return t != extension.TierC })
	if err != nil {
		return nil, err
	}
	if err := run(batch); err != nil {
		return nil, err
	}

	// 剩余候选：循环扫描直至不动点（扩展注册的新扩展会被后续轮次发现）
	for {
		batch, err = collect(func(extension.Tier) bool { return true })
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		if err := run(batch); err != nil {
			return nil, err
		}
	}

	return invoked, nil
}

// registerInstanceExtensions 发现并注册实例扩展（阶段 5）
// 内置监听器探测扩展始终追加在末位
func (c *Container) registerInstanceExtensions(ctx context.Context) error {
	var exts []extension.InstanceExtension

	for _, name := range c.registry.NamesOfCapability(definition.CapInstanceExtension) {
		inst, err := c.Resolve(ctx, name)
		if err != nil {
			return err
		}
		ext, ok := inst.(extension.InstanceExtension)
		if !ok {
			return errcode.ErrTypeMismatch.
				WithMsgf("组件 '%s' 声明了实例扩展能力但未实现对应接口", name)
		}
		exts = append(exts, ext)
	}

	extension.SortByPriority(exts, func(ext extension.InstanceExtension) any { return ext })
	exts = append(exts, &listenerDetector{c: c})
	c.instanceExts = exts

	c.logger.DebugCtx(ctx, "实例扩展注册完成",
		zap.Int("count", len(exts)))
	return nil
}

// initBroadcaster 安装事件广播器（阶段 6）
// 注册表里存在 "eventBroadcaster" 定义时解析并使用宿主实现，
// 否则安装默认内存广播器并登记为单例
func (c *Container) initBroadcaster(ctx context.Context) error {
	var b event.Broadcaster

	if c.registry.Has(ComponentEventBroadcaster) {
		inst, err := c.Resolve(ctx, ComponentEventBroadcaster)
		if err != nil {
			return err
		}
		custom, ok := inst.(event.Broadcaster)
		if !ok {
			return errcode.ErrTypeMismatch.
				WithMsgf("组件 '%s' 未实现事件广播器接口", ComponentEventBroadcaster)
		}
		b = custom
	} else {
		b = event.NewBroadcaster(event.WithLogger(c.logger))
		c.ownBroadcaster = true
		if err := c.installRuntimeSingleton(ComponentEventBroadcaster, b); err != nil {
			return err
		}
	}

	c.eventMu.Lock()
	c.broadcaster = b
	c.eventMu.Unlock()
	return nil
}

// initMessageResolver 安装消息解析器（阶段 6）
func (c *Container) initMessageResolver(ctx context.Context) error {
	if c.registry.Has(ComponentMessageResolver) {
		inst, err := c.Resolve(ctx, ComponentMessageResolver)
		if err != nil {
			return err
		}
		resolver, ok := inst.(MessageResolver)
		if !ok {
			return errcode.ErrTypeMismatch.
				WithMsgf("组件 '%s' 未实现消息解析器接口", ComponentMessageResolver)
		}
		c.msgResolver = resolver
		return nil
	}

	return c.installRuntimeSingleton(ComponentMessageResolver, c.msgResolver)
}

// registerListeners 订阅静态监听器并重放先行事件（阶段 8）
func (c *Container) registerListeners(ctx context.Context) error {
	c.eventMu.Lock()
	b := c.broadcaster
	static := c.staticListeners
	early := c.earlyEvents
	c.staticListeners = nil
	c.earlyEvents = nil
	c.eventMu.Unlock()

	for _, sl := range static {
		b.Subscribe(sl.eventName, sl.listener, sl.opts...)
	}

	for _, ev := range early {
		if err := b.Publish(ctx, ev); err != nil {
			return err
		}
	}

	if len(early) > 0 {
		c.logger.DebugCtx(ctx, "先行事件重放完成",
			zap.Int("count", len(early)))
	}
	return nil
}

// rollback 刷新失败回滚
// 本次刷新创建的单例按构造逆序销毁（每个恰好一次），容器转入终态
func (c *Container) rollback(ctx context.Context, cause error) error {
	c.logger.ErrorCtx(ctx, "❌ 容器刷新失败，回滚已创建的单例",
		zap.String("container_id", c.id),
		zap.Int("singletons", c.singletons.len()),
		zap.Error(cause))

	c.singletons.destroyAll(ctx, c.logger)

	c.eventMu.Lock()
	b := c.broadcaster
	c.eventMu.Unlock()
	if c.ownBroadcaster && b != nil {
		_ = b.Close()
	}

	c.state.store(StateClosed)
	return cause
}

// listenerDetector 内置实例扩展：自动订阅实现了监听器接口的单例
// 始终排在实例扩展末位，看到的是所有切点处理后的最终实例
type listenerDetector struct {
	c *Container
}

func (d *listenerDetector) BeforeCompletion(inst any, name string) (any, error) {
	return inst, nil
}

func (d *listenerDetector) AfterCompletion(inst any, name string) (any, error) {
	l, ok := inst.(event.Listener)
	if !ok {
		return inst, nil
	}

	// 原型实例不自动订阅（容器不跟踪其生命周期）
	def, ok := d.c.registry.Get(name)
	if !ok || !def.IsSingleton() {
		return inst, nil
	}

	d.c.eventMu.Lock()
	b := d.c.broadcaster
	d.c.eventMu.Unlock()
	if b != nil {
		b.Subscribe(event.WildcardName, l)
	}
	return inst, nil
}
