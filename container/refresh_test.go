package container

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-container/config"
	"github.com/KOMKZ/go-yogan-container/definition"
	"github.com/KOMKZ/go-yogan-container/errcode"
	"github.com/KOMKZ/go-yogan-container/event"
	"github.com/KOMKZ/go-yogan-container/logger"
)

func newTestContainer(opts ...Option) *Container {
	opts = append(opts, WithContainerLogger(logger.NewNopLogger()))
	return New(opts...)
}

func valueDef(name string, v any) *definition.Definition {
	return &definition.Definition{
		Name: name,
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			return v, nil
		},
	}
}

// ═══════════════════════════════════════════════════════════
// 注册表扩展测试替身
// ═══════════════════════════════════════════════════════════

// priorityRegExt Tier-A registry extension
type priorityRegExt struct {
	id    string
	order int
	log   *[]string
	fn    func(reg *definition.Registry) error
}

func (e *priorityRegExt) Order() int       { return e.order }
func (e *priorityRegExt) PriorityOrdered() {}

func (e *priorityRegExt) OnRegistryReady(reg *definition.Registry) error {
	*e.log = append(*e.log, e.id)
	if e.fn != nil {
		return e.fn(reg)
	}
	return nil
}

func (e *priorityRegExt) OnDefinitionsFinal(reg *definition.Registry) error {
	*e.log = append(*e.log, e.id+":final")
	return nil
}

// orderedRegExt Tier-B registry extension
type orderedRegExt struct {
	id    string
	order int
	log   *[]string
	fn    func(reg *definition.Registry) error
}

func (e *orderedRegExt) Order() int { return e.order }

func (e *orderedRegExt) OnRegistryReady(reg *definition.Registry) error {
	*e.log = append(*e.log, e.id)
	if e.fn != nil {
		return e.fn(reg)
	}
	return nil
}

func (e *orderedRegExt) OnDefinitionsFinal(reg *definition.Registry) error {
	*e.log = append(*e.log, e.id+":final")
	return nil
}

// plainRegExt Tier-C registry extension
type plainRegExt struct {
	id    string
	calls int
	log   *[]string
	fn    func(reg *definition.Registry) error
}

func (e *plainRegExt) OnRegistryReady(reg *definition.Registry) error {
	e.calls++
	*e.log = append(*e.log, e.id)
	if e.fn != nil {
		return e.fn(reg)
	}
	return nil
}

func (e *plainRegExt) OnDefinitionsFinal(reg *definition.Registry) error {
	*e.log = append(*e.log, e.id+":final")
	return nil
}

func regExtDef(name string, ext any) *definition.Definition {
	return &definition.Definition{
		Name:         name,
		Capabilities: definition.CapRegistryExtension,
		Role:         definition.RoleInfrastructure,
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			return ext, nil
		},
	}
}

// ═══════════════════════════════════════════════════════════
// 刷新流水线
// ═══════════════════════════════════════════════════════════

// TestRefresh_DependencyOrder dependencies are constructed before dependents
func TestRefresh_DependencyOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()

	var built []string

	// svc registered first but depends on repo: repo must be built first
	require.NoError(t, c.Register(&definition.Definition{
		Name:      "svc",
		DependsOn: []string{"repo"},
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			repo, err := r.Resolve(ctx, "repo")
			if err != nil {
				return nil, err
			}
			built = append(built, "svc")
			return "svc-on-" + repo.(string), nil
		},
	}))
	require.NoError(t, c.Register(&definition.Definition{
		Name: "repo",
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			built = append(built, "repo")
			return "repo", nil
		},
	}))

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	assert.Equal(t, []string{"repo", "svc"}, built)
	assert.Equal(t, StateActive, c.State())

	svc, err := c.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, "svc-on-repo", svc)
}

// TestRefresh_ExtensionTierOrdering tier-a extensions run before tier-b before tier-c,
// explicit extensions before all of them
func TestRefresh_ExtensionTierOrdering(t *testing.T) {
	ctx := context.Background()
	var log []string

	explicit := &plainRegExt{id: "explicit", log: &log}
	c := newTestContainer(WithRegistryExtension(explicit))

	// 故意按 c、b、a 的顺序注册
	require.NoError(t, c.Register(regExtDef("ext-c", &plainRegExt{id: "c", log: &log})))
	require.NoError(t, c.Register(regExtDef("ext-b", &orderedRegExt{id: "b", order: 5, log: &log})))
	require.NoError(t, c.Register(regExtDef("ext-a", &priorityRegExt{id: "a", order: 1, log: &log})))

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	assert.Equal(t, []string{
		"explicit", "a", "b", "c",
		"explicit:final", "a:final", "b:final", "c:final",
	}, log)
}

// TestRefresh_ExtensionAtMostOnce every discovered extension runs exactly once
// even though the fixpoint loop rescans the registry multiple times
func TestRefresh_ExtensionAtMostOnce(t *testing.T) {
	ctx := context.Background()
	var log []string

	extA := &plainRegExt{id: "first", log: &log}
	extB := &plainRegExt{id: "second", log: &log}

	// first 注册 second，触发至少一轮额外扫描
	extA.fn = func(reg *definition.Registry) error {
		return reg.Register(regExtDef("ext-second", extB))
	}

	c := newTestContainer()
	require.NoError(t, c.Register(regExtDef("ext-first", extA)))

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	assert.Equal(t, 1, extA.calls)
	assert.Equal(t, 1, extB.calls)
}

// TestRefresh_ExtensionFixpoint extensions registered by extensions are discovered
// and run within the same refresh, transitively
func TestRefresh_ExtensionFixpoint(t *testing.T) {
	ctx := context.Background()
	var log []string

	// 链：first 注册 second，second 注册 third，third 注册普通组件
	third := &plainRegExt{id: "third", log: &log}
	third.fn = func(reg *definition.Registry) error {
		return reg.Register(valueDef("late-component", "late"))
	}
	second := &plainRegExt{id: "second", log: &log}
	second.fn = func(reg *definition.Registry) error {
		return reg.Register(regExtDef("ext-third", third))
	}
	first := &plainRegExt{id: "first", log: &log}
	first.fn = func(reg *definition.Registry) error {
		return reg.Register(regExtDef("ext-second", second))
	}

	c := newTestContainer()
	require.NoError(t, c.Register(regExtDef("ext-first", first)))

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)

	late, err := c.Get(ctx, "late-component")
	require.NoError(t, err)
	assert.Equal(t, "late", late)
}

// TestRefresh_TierAMutatorAddsDefinition a tier-a extension can inject definitions
// that later tiers and the instantiation phase both observe
func TestRefresh_TierAMutatorAddsDefinition(t *testing.T) {
	ctx := context.Background()
	var log []string

	mutator := &priorityRegExt{id: "mutator", order: 0, log: &log}
	mutator.fn = func(reg *definition.Registry) error {
		return reg.Register(valueDef("injected", 42))
	}

	var observedInjected bool
	observer := &plainRegExt{id: "observer", log: &log}
	observer.fn = func(reg *definition.Registry) error {
		observedInjected = reg.Has("injected")
		return nil
	}

	c := newTestContainer()
	require.NoError(t, c.Register(regExtDef("ext-observer", observer)))
	require.NoError(t, c.Register(regExtDef("ext-mutator", mutator)))

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	assert.True(t, observedInjected, "tier-c 扩展应看到 tier-a 扩展注入的定义")

	v, err := c.Get(ctx, "injected")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

// TestRefresh_DuplicateDefinitionConflict duplicate names are rejected both at
// direct registration and when a source registers them mid-refresh
func TestRefresh_DuplicateDefinitionConflict(t *testing.T) {
	ctx := context.Background()

	c := newTestContainer()
	require.NoError(t, c.Register(valueDef("dup", 1)))
	err := c.Register(valueDef("dup", 2))
	assert.ErrorIs(t, err, errcode.ErrDefinitionConflict)

	// 数据源在刷新途中注册重名定义：刷新失败且不产生任何实例
	var constructed int32
	c2 := newTestContainer(WithSource(DefinitionSourceFunc(func(reg *definition.Registry) error {
		mk := func() *definition.Definition {
			return &definition.Definition{
				Name: "dup",
				Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
					atomic.AddInt32(&constructed, 1)
					return struct{}{}, nil
				},
			}
		}
		if err := reg.Register(mk()); err != nil {
			return err
		}
		return reg.Register(mk())
	})))

	err = c2.Refresh(ctx)
	assert.ErrorIs(t, err, errcode.ErrDefinitionConflict)
	assert.Equal(t, StateClosed, c2.State())
	assert.Equal(t, int32(0), atomic.LoadInt32(&constructed))
}

// TestRefresh_RollbackOnConstructorFailure a failing constructor destroys all
// singletons created by this refresh, in reverse construction order, exactly once
func TestRefresh_RollbackOnConstructorFailure(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()

	var destroyed []string
	makeTracked := func(name string) *definition.Definition {
		return &definition.Definition{
			Name: name,
			Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
				return &trackedDisposable{id: name, log: &destroyed}, nil
			},
		}
	}

	boom := errors.New("boom")
	require.NoError(t, c.Register(makeTracked("one")))
	require.NoError(t, c.Register(makeTracked("two")))
	require.NoError(t, c.Register(&definition.Definition{
		Name: "three",
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			return nil, boom
		},
	}))
	require.NoError(t, c.Register(makeTracked("four")))
	require.NoError(t, c.Register(makeTracked("five")))

	err := c.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrConstructorFailure)
	assert.ErrorIs(t, err, boom)

	// one、two 已创建，按构造逆序销毁；four、five 从未创建
	assert.Equal(t, []string{"two", "one"}, destroyed)
	assert.Equal(t, StateClosed, c.State())

	// 失败后的容器不可再用
	_, err = c.Get(ctx, "one")
	assert.ErrorIs(t, err, errcode.ErrContainerState)

	// Close 幂等，不会二次销毁
	require.NoError(t, c.Close(ctx))
	assert.Equal(t, []string{"two", "one"}, destroyed)
}

// TestRefresh_SingleShot refresh can only run once per container
func TestRefresh_SingleShot(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, errcode.ErrRefreshAlreadyCalled)
}

// TestRefresh_AfterCloseRejected
func TestRefresh_AfterCloseRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()

	require.NoError(t, c.Close(ctx))

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, errcode.ErrContainerState)
}

// TestRefresh_DependencyCycle mutual constructor lookups abort the refresh
func TestRefresh_DependencyCycle(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()

	require.NoError(t, c.Register(&definition.Definition{
		Name: "a",
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			return r.Resolve(ctx, "b")
		},
	}))
	require.NoError(t, c.Register(&definition.Definition{
		Name: "b",
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			return r.Resolve(ctx, "a")
		},
	}))

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, errcode.ErrDependencyCycle)
	assert.Equal(t, StateClosed, c.State())
}

// TestRefresh_RequiredConfigMissing missing required keys abort phase 1
func TestRefresh_RequiredConfigMissing(t *testing.T) {
	ctx := context.Background()

	loader := config.NewLoader()
	loader.AddSource(config.NewMapSource("defaults", 0, map[string]interface{}{
		"app.name": "demo",
	}))

	c := newTestContainer(
		WithConfigLoader(loader),
		WithRequiredKeys("app.name", "db.dsn"),
	)

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, errcode.ErrConfigRequired)
	assert.Equal(t, StateClosed, c.State())
}

// TestRefresh_ConfigRegisteredAsComponent the loader is resolvable under "config"
func TestRefresh_ConfigRegisteredAsComponent(t *testing.T) {
	ctx := context.Background()

	loader := config.NewLoader()
	loader.AddSource(config.NewMapSource("defaults", 0, map[string]interface{}{
		"app.name": "demo",
	}))

	c := newTestContainer(WithConfigLoader(loader), WithRequiredKeys("app.name"))
	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	got, err := GetTyped[*config.Loader](ctx, c, ComponentConfig)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.GetString("app.name"))
}

// TestRefresh_OnRefreshHookCanRegister the deployment hook runs before freeze
func TestRefresh_OnRefreshHookCanRegister(t *testing.T) {
	ctx := context.Background()

	c := newTestContainer(WithOnRefresh(func(ctx context.Context, c *Container) error {
		return c.Register(valueDef("hooked", "yes"))
	}))

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	v, err := c.Get(ctx, "hooked")
	require.NoError(t, err)
	assert.Equal(t, "yes", v)
}

// TestRefresh_EarlyEventReplay events published before refresh are buffered and
// replayed to statically added listeners after the broadcaster is installed
func TestRefresh_EarlyEventReplay(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()

	var received []string
	c.AddListener(event.WildcardName, event.ListenerFunc(func(ctx context.Context, e event.Event) error {
		received = append(received, e.Name())
		return nil
	}))

	require.NoError(t, c.PublishEvent(ctx, event.NewEvent("warmup.start")))

	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	// 先行事件先于 ready 事件重放
	require.Len(t, received, 2)
	assert.Equal(t, "warmup.start", received[0])
	assert.Equal(t, event.EventContainerReady, received[1])
}

// TestRefresh_SourcesPopulate definition sources run before extension discovery
func TestRefresh_SourcesPopulate(t *testing.T) {
	ctx := context.Background()

	src := DefinitionSourceFunc(func(reg *definition.Registry) error {
		return reg.Register(valueDef("from-source", "sourced"))
	})

	c := newTestContainer(WithSource(src))
	require.NoError(t, c.Refresh(ctx))
	defer c.Close(ctx)

	v, err := c.Get(ctx, "from-source")
	require.NoError(t, err)
	assert.Equal(t, "sourced", v)
}

// TestRefresh_ExtensionFailureAborts a failing extension rolls the refresh back
func TestRefresh_ExtensionFailureAborts(t *testing.T) {
	ctx := context.Background()
	var log []string

	bad := &plainRegExt{id: "bad", log: &log}
	bad.fn = func(reg *definition.Registry) error {
		return errors.New("extension exploded")
	}

	c := newTestContainer()
	require.NoError(t, c.Register(regExtDef("ext-bad", bad)))

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, errcode.ErrExtensionFailure)
	assert.Equal(t, StateClosed, c.State())
}

// TestRefresh_CapabilityWithoutInterface declaring the capability bit without
// implementing the interface is a type mismatch
func TestRefresh_CapabilityWithoutInterface(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()

	require.NoError(t, c.Register(&definition.Definition{
		Name:         "liar",
		Capabilities: definition.CapRegistryExtension,
		Constructor: func(ctx context.Context, r definition.Resolver) (any, error) {
			return "not an extension", nil
		},
	}))

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, errcode.ErrTypeMismatch)
	assert.Equal(t, StateClosed, c.State())
}

// trackedDisposable 销毁顺序记录替身
type trackedDisposable struct {
	id  string
	log *[]string
}

func (d *trackedDisposable) Destroy(ctx context.Context) error {
	*d.log = append(*d.log, d.id)
	return nil
}
