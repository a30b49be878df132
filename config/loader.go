package config

import (
	"sort"
	"strings"

	"github.com/KOMKZ/go-yogan-container/errcode"
	"github.com/spf13/viper"
)

// Loader 配置加载器（支持多数据源）
type Loader struct {
	sources      []ConfigSource         // 数据源列表
	mergedConfig map[string]interface{} // 合并后的配置
	v            *viper.Viper           // Viper 实例（统一读取入口）
	loadedFiles  []string               // 已加载的文件列表（用于日志）
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		sources:      make([]ConfigSource, 0),
		mergedConfig: make(map[string]interface{}),
		v:            viper.New(),
		loadedFiles:  make([]string, 0),
	}
}

// AddSource 添加配置数据源
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load 加载并合并所有数据源
func (l *Loader) Load() error {
	// 1. 按优先级排序（从低到高）
	sort.Slice(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	// 2. 依次加载合并
	l.mergedConfig = make(map[string]interface{})
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return errcode.ErrConfigLoad.Wrapf(err, "加载数据源 %s 失败", source.Name())
		}

		if fileSource, ok := source.(*FileSource); ok {
			l.loadedFiles = append(l.loadedFiles, fileSource.path)
		}

		// 合并数据（高优先级覆盖低优先级）
		for key, value := range data {
			l.mergedConfig[key] = value
		}
	}

	// 3. 同步合并结果到 Viper
	l.syncToViper()

	return nil
}

// syncToViper 将合并后的扁平配置同步到 Viper
func (l *Loader) syncToViper() {
	nested := unflattenMap(l.mergedConfig)

	l.v = viper.New()
	for key, value := range nested {
		l.v.Set(key, value)
	}
}

// unflattenMap 将扁平 map 转换为嵌套 map
// 例如：{"container.event.pool_size": 64} -> {"container": {"event": {"pool_size": 64}}}
func unflattenMap(flat map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for key, value := range flat {
		setNestedValue(result, key, value)
	}

	return result
}

// setNestedValue 设置嵌套 map 的值
func setNestedValue(m map[string]interface{}, key string, value interface{}) {
	keys := strings.Split(key, ".")
	if len(keys) == 1 {
		m[key] = value
		return
	}

	current := m
	for i := 0; i < len(keys)-1; i++ {
		k := keys[i]
		if _, ok := current[k]; !ok {
			current[k] = make(map[string]interface{})
		}

		if nested, ok := current[k].(map[string]interface{}); ok {
			current = nested
		} else {
			// 中间节点不是 map，覆盖为 map
			newMap := make(map[string]interface{})
			current[k] = newMap
			current = newMap
		}
	}

	current[keys[len(keys)-1]] = value
}

// RequireKeys 校验必需配置项是否全部可解析
// 容器刷新的准备阶段调用；缺失的 key 以上下文数据形式附在错误里
func (l *Loader) RequireKeys(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if !l.v.IsSet(key) {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return errcode.ErrConfigRequired.
			WithMsgf("必需配置项缺失: %s", strings.Join(missing, ", ")).
			WithData("missing", missing)
	}
	return nil
}

// Unmarshal 将配置解析到结构体
func (l *Loader) Unmarshal(v interface{}) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey 将指定配置段解析到结构体
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	return l.v.UnmarshalKey(key, v)
}

// Get 获取配置值
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString 获取字符串配置
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// GetInt 获取整数配置
func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

// GetBool 获取布尔配置
func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

// IsSet 检查配置项是否存在
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings 获取全部配置
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// GetLoadedFiles 获取已加载的配置文件列表
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

// GetViper 获取底层 Viper 实例
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}
