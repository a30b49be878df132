// Package logger 提供基于 zap 的模块化日志能力
// Manager 按模块名管理 Logger 实例，CtxZapLogger 自动提取 TraceID
package logger

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// Config 单模块日志配置（内部使用，由 Manager 构建）
type Config struct {
	Level    string
	Encoding string // json 或 console

	// 内部字段（Manager 自动设置）
	moduleName string // 模块名（如 container, definition）
	logDir     string // 日志根目录（默认 logs/）

	EnableFile    bool
	EnableConsole bool

	// 文件切割配置
	MaxSize    int  // 单文件最大体积（MB）
	MaxBackups int  // 保留旧文件数量
	MaxAge     int  // 保留天数
	Compress   bool // 是否压缩

	// 堆栈配置
	EnableCaller     bool
	EnableStacktrace bool
	StacktraceLevel  string // 从哪个级别开始记录堆栈（默认 error）
	StacktraceDepth  int    // 堆栈深度限制（0=不限制，建议 5-10）
}

// ManagerConfig 全局管理器配置（所有模块共享）
type ManagerConfig struct {
	BaseLogDir       string `mapstructure:"base_log_dir"` // 日志根目录（默认 logs/）
	Level            string `mapstructure:"level"`
	AppName          string `mapstructure:"app_name"` // 应用名（自动注入所有日志）
	Encoding         string `mapstructure:"encoding"`
	EnableConsole    bool   `mapstructure:"enable_console"`
	EnableFile       bool   `mapstructure:"enable_file"`
	MaxSize          int    `mapstructure:"max_size"`
	MaxBackups       int    `mapstructure:"max_backups"`
	MaxAge           int    `mapstructure:"max_age"`
	Compress         bool   `mapstructure:"compress"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
	StacktraceLevel  string `mapstructure:"stacktrace_level"`
	StacktraceDepth  int    `mapstructure:"stacktrace_depth"`
	LoggerName       string `mapstructure:"logger_name"`

	// TraceID 配置
	EnableTraceID    bool   `mapstructure:"enable_trace_id"`     // 是否自动提取 traceID
	TraceIDKey       string `mapstructure:"trace_id_key"`        // context 中的 key（默认 "trace_id"）
	TraceIDFieldName string `mapstructure:"trace_id_field_name"` // 日志字段名（默认 "trace_id"）
}

// DefaultManagerConfig 返回默认管理器配置（仅控制台输出）
func DefaultManagerConfig() ManagerConfig {
	cfg := ManagerConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 填充零值字段的默认值
func (c *ManagerConfig) ApplyDefaults() {
	if c.BaseLogDir == "" {
		c.BaseLogDir = "logs"
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Encoding == "" {
		c.Encoding = "console"
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 100
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 30
	}
	if c.StacktraceLevel == "" {
		c.StacktraceLevel = "error"
	}
	if c.LoggerName == "" {
		c.LoggerName = "yogan"
	}
	if !c.EnableFile {
		// 库默认仅控制台，宿主进程按需开启文件输出
		c.EnableConsole = true
	}
}

// Validate 校验配置合法性
func (c *ManagerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("非法日志级别: %s", c.Level)
	}
	switch c.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("非法日志编码: %s", c.Encoding)
	}
	return nil
}

// ParseLevel 解析日志级别字符串
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// getInfoFilePath 普通级别日志文件路径
func (c Config) getInfoFilePath() string {
	return filepath.Join(c.logDir, c.moduleName+".log")
}

// getErrorFilePath 错误级别日志文件路径
func (c Config) getErrorFilePath() string {
	return filepath.Join(c.logDir, c.moduleName+".error.log")
}
