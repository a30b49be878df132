package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager Logger 管理器（管理多个模块的 Logger 实例）
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger        // 模块名 -> CtxZapLogger 实例
	writers    map[string][]*lumberjack.Logger // 模块名 -> 文件写入器（用于关闭）
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager 创建独立的 Manager 实例（支持多实例场景）
// cfg 中的零值字段会自动填充为默认值
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
		writers:    make(map[string][]*lumberjack.Logger),
	}
}

// InitManager 初始化全局 Logger 管理器（只生效一次）
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		globalManager = NewManager(cfg)
	})
}

// GetLogger 从全局管理器获取模块 Logger
// 未显式初始化时自动使用默认配置（仅控制台输出）
func GetLogger(moduleName string) *CtxZapLogger {
	InitManager(DefaultManagerConfig())
	return globalManager.GetLogger(moduleName)
}

// NewNopLogger 创建不输出任何内容的 Logger（测试专用）
func NewNopLogger() *CtxZapLogger {
	return &CtxZapLogger{
		base:   zap.NewNop(),
		module: "nop",
	}
}

// GetLogger 获取指定模块的 CtxZapLogger（线程安全，按需创建）
// 返回的 Logger 已自动包含 module 字段
func (m *Manager) GetLogger(moduleName string) *CtxZapLogger {
	// 先尝试读锁（快速路径）
	m.mu.RLock()
	if logger, exists := m.loggers[moduleName]; exists {
		m.mu.RUnlock()
		return logger
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// 双重检查（避免并发创建）
	if logger, exists := m.loggers[moduleName]; exists {
		return logger
	}

	cfg := m.buildModuleConfig(moduleName)
	zapLogger := m.createLogger(cfg)

	// 自动添加 module 字段，并跳过 CtxZapLogger 的包装层
	base := zapLogger.
		With(zap.String("module", moduleName)).
		WithOptions(zap.AddCallerSkip(1))

	ctxLogger := &CtxZapLogger{
		base:   base,
		module: moduleName,
		config: &m.baseConfig,
	}

	m.loggers[moduleName] = ctxLogger
	return ctxLogger
}

// buildModuleConfig 为指定模块构建配置
func (m *Manager) buildModuleConfig(moduleName string) Config {
	return Config{
		Level:            m.baseConfig.Level,
		Encoding:         m.baseConfig.Encoding,
		moduleName:       moduleName,
		logDir:           m.baseConfig.BaseLogDir,
		EnableFile:       m.baseConfig.EnableFile,
		EnableConsole:    m.baseConfig.EnableConsole,
		MaxSize:          m.baseConfig.MaxSize,
		MaxBackups:       m.baseConfig.MaxBackups,
		MaxAge:           m.baseConfig.MaxAge,
		Compress:         m.baseConfig.Compress,
		EnableCaller:     m.baseConfig.EnableCaller,
		EnableStacktrace: m.baseConfig.EnableStacktrace,
		StacktraceLevel:  m.baseConfig.StacktraceLevel,
		StacktraceDepth:  m.baseConfig.StacktraceDepth,
	}
}

// createLogger 创建底层 zap.Logger 实例
func (m *Manager) createLogger(cfg Config) *zap.Logger {
	encoder := createEncoder(cfg)
	var cores []zapcore.Core
	var writers []*lumberjack.Logger

	// Console 输出
	if cfg.EnableConsole {
		consoleCore := zapcore.NewCore(
			encoder,
			zapcore.AddSync(os.Stdout),
			ParseLevel(cfg.Level),
		)
		cores = append(cores, consoleCore)
	}

	// 文件输出（普通级别与错误级别分文件）
	if cfg.EnableFile {
		configuredLevel := ParseLevel(cfg.Level)

		infoWriter, infoLumber := createFileWriter(cfg.getInfoFilePath(), cfg)
		writers = append(writers, infoLumber)
		infoCore := zapcore.NewCore(
			encoder,
			infoWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= configuredLevel && lvl < zapcore.ErrorLevel
			}),
		)
		cores = append(cores, infoCore)

		errorWriter, errorLumber := createFileWriter(cfg.getErrorFilePath(), cfg)
		writers = append(writers, errorLumber)
		errorCore := zapcore.NewCore(
			encoder,
			errorWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			}),
		)
		cores = append(cores, errorCore)
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}

	core := zapcore.NewTee(cores...)

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	// 堆栈由 CtxZapLogger.ErrorCtx 按配置深度自行捕获，不使用 zap.AddStacktrace

	if len(writers) > 0 {
		m.writers[cfg.moduleName] = writers
	}

	return zap.New(core, opts...)
}

// createEncoder 按编码类型创建 Encoder
func createEncoder(cfg Config) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	if cfg.Encoding == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// createFileWriter 创建带切割能力的文件写入器
func createFileWriter(path string, cfg Config) (zapcore.WriteSyncer, *lumberjack.Logger) {
	lumber := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	return zapcore.AddSync(lumber), lumber
}

// CloseAll 关闭所有 Logger（应用退出时调用）
// 会刷新缓冲区并关闭所有文件句柄
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, logger := range m.loggers {
		_ = logger.base.Sync()
	}

	for _, writers := range m.writers {
		for _, w := range writers {
			_ = w.Close() // 忽略错误，继续关闭其他文件
		}
	}

	m.loggers = make(map[string]*CtxZapLogger)
	m.writers = make(map[string][]*lumberjack.Logger)
}
