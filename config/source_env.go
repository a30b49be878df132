package config

import (
	"os"
	"strings"
)

// EnvSource 环境变量数据源
//
// 两种取值方式：显式绑定（AddBinding 把配置 key 映射到环境变量名）
// 优先；没有任何绑定时退化为前缀扫描，把 PREFIX_CONTAINER_MODE
// 形式的变量翻译成 container.mode。空值一律视为未设置
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string
}

// NewEnvSource 创建环境变量数据源
// prefix 统一归一化为大写且不带结尾下划线（"yc_" 与 "YC" 等价）
func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   strings.ToUpper(strings.TrimSuffix(prefix, "_")),
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding 添加单个 key 映射
// 例如：AddBinding("container.mode", "CONTAINER_MODE")
func (s *EnvSource) AddBinding(key, envKey string) {
	s.bindings[key] = envKey
}

// AddBindings 批量添加 key 映射
func (s *EnvSource) AddBindings(bindings map[string]string) {
	for key, envKey := range bindings {
		s.bindings[key] = envKey
	}
}

// Name 数据源名称
func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

// Priority 优先级
func (s *EnvSource) Priority() int {
	return s.priority
}

// Load 加载环境变量配置
func (s *EnvSource) Load() (map[string]interface{}, error) {
	if len(s.bindings) > 0 {
		return s.loadBound(), nil
	}
	return s.scanEnviron(), nil
}

// loadBound 按显式绑定逐项读取
func (s *EnvSource) loadBound() map[string]interface{} {
	result := make(map[string]interface{}, len(s.bindings))

	for key, envKey := range s.bindings {
		name := s.qualify(envKey)
		if value := os.Getenv(name); value != "" {
			result[key] = value
		}
	}
	return result
}

// scanEnviron 前缀扫描全部环境变量
// PREFIX_CONTAINER_MODE -> container.mode
func (s *EnvSource) scanEnviron() map[string]interface{} {
	result := make(map[string]interface{})
	if s.prefix == "" {
		return result
	}

	marker := s.prefix + "_"
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || value == "" || !strings.HasPrefix(name, marker) {
			continue
		}

		key := strings.TrimPrefix(name, marker)
		key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
		result[key] = value
	}
	return result
}

// qualify 为绑定的环境变量名补上前缀（已带前缀时原样返回）
func (s *EnvSource) qualify(envKey string) string {
	if s.prefix == "" || strings.HasPrefix(envKey, s.prefix+"_") {
		return envKey
	}
	return s.prefix + "_" + envKey
}
