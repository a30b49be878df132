package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestNewManager test manager creation with defaults
func TestNewManager(t *testing.T) {
	m := NewManager(ManagerConfig{})

	assert.Equal(t, "info", m.baseConfig.Level)
	assert.Equal(t, "console", m.baseConfig.Encoding)
	assert.True(t, m.baseConfig.EnableConsole)
}

// TestManager_GetLogger same module returns the same instance
func TestManager_GetLogger(t *testing.T) {
	m := NewManager(ManagerConfig{Level: "debug"})

	l1 := m.GetLogger("container")
	l2 := m.GetLogger("container")
	l3 := m.GetLogger("definition")

	require.NotNil(t, l1)
	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
}

// TestManager_GetLogger_FileOutput file cores are created with lumberjack writers
func TestManager_GetLogger_FileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	m := NewManager(ManagerConfig{
		BaseLogDir: filepath.Join(tmpDir, "logs"),
		EnableFile: true,
	})

	l := m.GetLogger("container")
	require.NotNil(t, l)

	l.Info("写入文件测试", zap.String("k", "v"))

	m.mu.RLock()
	writers := m.writers["container"]
	m.mu.RUnlock()
	assert.Len(t, writers, 2) // info 与 error 分文件

	m.CloseAll()
}

// TestManager_CloseAll close resets cached loggers
func TestManager_CloseAll(t *testing.T) {
	m := NewManager(ManagerConfig{})
	l1 := m.GetLogger("container")

	m.CloseAll()

	l2 := m.GetLogger("container")
	assert.NotSame(t, l1, l2)
}

// TestManagerConfig_Validate config validation
func TestManagerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ManagerConfig
		wantErr bool
	}{
		{"empty ok", ManagerConfig{}, false},
		{"valid level", ManagerConfig{Level: "debug"}, false},
		{"invalid level", ManagerConfig{Level: "trace"}, true},
		{"valid encoding", ManagerConfig{Encoding: "json"}, false},
		{"invalid encoding", ManagerConfig{Encoding: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestNewNopLogger nop logger never panics
func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("ignored")
	l.DebugCtx(context.Background(), "ignored", zap.Int("n", 1))
	l.ErrorCtx(context.Background(), "ignored")
}

// TestCtxZapLogger_With with-fields returns new instance
func TestCtxZapLogger_With(t *testing.T) {
	m := NewManager(ManagerConfig{})
	l := m.GetLogger("container")

	l2 := l.With(zap.String("container_id", "abc"))
	assert.NotSame(t, l, l2)
}

// TestExtractTraceIDFromContext trace id extraction from plain context key
func TestExtractTraceIDFromContext(t *testing.T) {
	cfg := &ManagerConfig{EnableTraceID: true, TraceIDKey: "trace_id"}

	ctx := context.WithValue(context.Background(), "trace_id", "abc123")
	assert.Equal(t, "abc123", extractTraceIDFromContext(ctx, cfg))

	assert.Equal(t, "", extractTraceIDFromContext(context.Background(), cfg))
}

// TestCaptureStacktrace depth limit is honored
func TestCaptureStacktrace(t *testing.T) {
	stack := CaptureStacktrace(1, 3)
	require.NotEmpty(t, stack)
	assert.Contains(t, stack, "logger.TestCaptureStacktrace")
}
