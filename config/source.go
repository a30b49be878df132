// Package config 提供多数据源配置加载能力
// Loader 合并文件/环境变量/编程式数据源，容器刷新准备阶段通过
// RequireKeys 校验必需配置项是否可解析
package config

// ConfigSource 配置数据源接口
// 所有配置来源（文件、环境变量、编程式 map 等）都实现此接口
type ConfigSource interface {
	// Name 数据源名称（用于日志和调试）
	Name() string

	// Priority 优先级（数值越大优先级越高）
	// 建议值：
	//   - 默认值：1
	//   - 配置文件（config.yaml）：10
	//   - 环境配置文件（dev.yaml）：20
	//   - 环境变量：50
	//   - 编程式覆盖：100
	Priority() int

	// Load 加载配置数据
	// 返回的 map 使用点号分隔的 key，如 "container.event.pool_size"
	Load() (map[string]interface{}, error)
}

// MapSource 编程式配置数据源（内存 map）
// 宿主进程直接以代码形式提供配置，优先级最高
type MapSource struct {
	name     string
	priority int
	data     map[string]interface{}
}

// NewMapSource 创建编程式数据源
// data 的 key 使用点号分隔，如 "container.required"
func NewMapSource(name string, priority int, data map[string]interface{}) *MapSource {
	return &MapSource{
		name:     name,
		priority: priority,
		data:     data,
	}
}

// Name 数据源名称
func (s *MapSource) Name() string {
	return "map:" + s.name
}

// Priority 优先级
func (s *MapSource) Priority() int {
	return s.priority
}

// Load 返回数据副本（防止调用方后续修改影响加载结果）
func (s *MapSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(s.data))
	for k, v := range s.data {
		result[k] = v
	}
	return result, nil
}
