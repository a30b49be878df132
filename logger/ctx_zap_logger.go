package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CtxZapLogger Context-Aware 的 Zap Logger 包装器
// 设计思路：module 在创建时绑定，使用时只需传递 ctx
// 统一通过 GetLogger() 或 Manager.GetLogger() 获取
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config *ManagerConfig // 保存配置，用于堆栈深度控制
}

// InfoCtx 记录 Info 级别日志（自动提取 TraceID）
func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

// Info 记录 Info 级别日志（不需要 context 的便捷方法）
func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

// ErrorCtx 记录 Error 级别日志（自动提取 TraceID + 可选堆栈）
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	enriched := l.enrichFields(ctx, fields)

	// 如果配置启用堆栈且满足级别要求，自动添加受控深度的堆栈
	if l.config != nil && l.config.EnableStacktrace {
		if shouldCaptureStacktrace("error", *l.config) {
			depth := l.config.StacktraceDepth
			if depth <= 0 {
				depth = 10
			}
			// skip=3: CaptureStacktrace(0) -> ErrorCtx(1) -> 实际调用者(2)
			stack := CaptureStacktrace(3, depth)
			if stack != "" {
				enriched = append(enriched, zap.String("stack", stack))
			}
		}
	}

	l.base.Error(msg, enriched...)
}

// Error 记录 Error 级别日志（不需要 context 的便捷方法）
func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// DebugCtx 记录 Debug 级别日志（自动提取 TraceID）
func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

// Debug 记录 Debug 级别日志（不需要 context 的便捷方法）
func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

// WarnCtx 记录 Warn 级别日志（自动提取 TraceID）
func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// Warn 记录 Warn 级别日志（不需要 context 的便捷方法）
func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

// With 返回带有预设字段的新 Logger（支持链式调用）
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:   l.base.With(fields...),
		module: l.module,
		config: l.config,
	}
}

// GetZapLogger 获取底层的 *zap.Logger（用于第三方库集成）
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

// enrichFields 自动添加 TraceID 和 app_name
// 注意：module 字段已经在 Manager.GetLogger() 中添加，无需重复添加
func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	enriched := make([]zap.Field, 0, len(fields)+2)

	if l.config != nil {
		enriched = append(enriched, zap.String("app_name", l.config.AppName))
	}

	if l.config != nil && l.config.EnableTraceID {
		traceID := extractTraceIDFromContext(ctx, l.config)
		if traceID != "" {
			fieldName := "trace_id"
			if l.config.TraceIDFieldName != "" {
				fieldName = l.config.TraceIDFieldName
			}
			enriched = append(enriched, zap.String(fieldName, traceID))
		}
	}

	enriched = append(enriched, fields...)
	return enriched
}

// extractTraceIDFromContext 从 Context 提取 TraceID
// 优先级：OpenTelemetry Span > 自定义 Context Key > 标准 key
func extractTraceIDFromContext(ctx context.Context, cfg *ManagerConfig) string {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}

	if cfg != nil && cfg.TraceIDKey != "" {
		if val := ctx.Value(cfg.TraceIDKey); val != nil {
			if traceID, ok := val.(string); ok {
				return traceID
			}
		}
	}

	if val := ctx.Value("trace_id"); val != nil {
		if traceID, ok := val.(string); ok {
			return traceID
		}
	}

	return ""
}
