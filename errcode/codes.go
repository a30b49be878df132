package errcode

// 容器内核错误码定义
//
// 模块码分配：
//   20 = container（容器编排）
//   21 = definition（组件定义注册表）
//   22 = config（配置加载）
//
// 所有错误码在 init 阶段注册，冲突立即 panic（Fail Fast）
var (
	// ═══════════════════════════════════════════════════════════
	// container 模块（20xxxx）
	// ═══════════════════════════════════════════════════════════

	// ErrContainerState 容器状态错误（非 Active 状态下执行需要 Active 的操作）
	ErrContainerState = Register(New(20, 1, "container",
		"error.container.state", "容器状态不允许此操作"))

	// ErrRefreshAlreadyCalled 重复刷新（单次刷新策略）
	ErrRefreshAlreadyCalled = Register(New(20, 2, "container",
		"error.container.refresh_already_called", "容器已刷新，不支持重复刷新"))

	// ErrUnresolvableDependency 依赖无法解析（组件名或能力无匹配定义）
	ErrUnresolvableDependency = Register(New(20, 3, "container",
		"error.container.unresolvable_dependency", "依赖无法解析"))

	// ErrAmbiguousMatch 能力查找命中多个定义且无 Primary 标记
	ErrAmbiguousMatch = Register(New(20, 4, "container",
		"error.container.ambiguous_match", "能力匹配存在歧义"))

	// ErrDependencyCycle 构建过程中检测到循环依赖
	ErrDependencyCycle = Register(New(20, 5, "container",
		"error.container.dependency_cycle", "检测到循环依赖"))

	// ErrExtensionFailure 扩展回调执行失败（不重试，立即中止刷新）
	ErrExtensionFailure = Register(New(20, 6, "container",
		"error.container.extension_failure", "扩展执行失败"))

	// ErrConstructorFailure 组件构造函数执行失败
	ErrConstructorFailure = Register(New(20, 7, "container",
		"error.container.constructor_failure", "组件构造失败"))

	// ErrTypeMismatch 解析到的实例类型与期望不符
	ErrTypeMismatch = Register(New(20, 8, "container",
		"error.container.type_mismatch", "组件类型不匹配"))

	// ═══════════════════════════════════════════════════════════
	// definition 模块（21xxxx）
	// ═══════════════════════════════════════════════════════════

	// ErrDefinitionConflict 同名定义重复注册且合并策略禁止覆盖
	ErrDefinitionConflict = Register(New(21, 1, "definition",
		"error.definition.conflict", "组件定义冲突"))

	// ErrDefinitionNotFound 指定名称的定义不存在
	ErrDefinitionNotFound = Register(New(21, 2, "definition",
		"error.definition.not_found", "组件定义不存在"))

	// ErrRegistryFrozen 注册表已冻结，禁止结构性变更
	ErrRegistryFrozen = Register(New(21, 3, "definition",
		"error.definition.frozen", "注册表已冻结"))

	// ErrDefinitionInvalid 定义字段校验失败
	ErrDefinitionInvalid = Register(New(21, 4, "definition",
		"error.definition.invalid", "组件定义校验失败"))

	// ErrIncompatibleOverride 覆盖注册时新旧定义不兼容
	ErrIncompatibleOverride = Register(New(21, 5, "definition",
		"error.definition.incompatible_override", "组件定义覆盖不兼容"))

	// ═══════════════════════════════════════════════════════════
	// config 模块（22xxxx）
	// ═══════════════════════════════════════════════════════════

	// ErrConfigRequired 必需配置项缺失（刷新准备阶段校验）
	ErrConfigRequired = Register(New(22, 1, "config",
		"error.config.required_missing", "必需配置项缺失"))

	// ErrConfigLoad 配置数据源加载失败
	ErrConfigLoad = Register(New(22, 2, "config",
		"error.config.load_failed", "配置加载失败"))
)
