package config

import (
	"os"

	"github.com/KOMKZ/go-yogan-container/errcode"
	"github.com/spf13/viper"
)

// FileSource 文件配置数据源
type FileSource struct {
	path     string
	priority int
}

// NewFileSource 创建文件数据源
func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{
		path:     path,
		priority: priority,
	}
}

// Name 数据源名称
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Priority 优先级
func (s *FileSource) Priority() int {
	return s.priority
}

// Load 加载文件配置
func (s *FileSource) Load() (map[string]interface{}, error) {
	// 文件不存在返回空配置（非错误），宿主可提供多个候选路径
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return make(map[string]interface{}), nil
		}
		return nil, errcode.ErrConfigLoad.Wrapf(err, "访问配置文件失败 %s", s.path)
	}

	v := viper.New()
	v.SetConfigFile(s.path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errcode.ErrConfigLoad.Wrapf(err, "读取配置文件失败 %s", s.path)
	}

	// 转换为 flat map（带点号的 key）
	return flattenMap("", v.AllSettings()), nil
}

// flattenMap 将嵌套 map 展平为点号分隔的 key
// 例如：{"container": {"event": {"pool_size": 64}}} -> {"container.event.pool_size": 64}
func flattenMap(prefix string, data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for key, value := range data {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]interface{}:
			nested := flattenMap(fullKey, v)
			for nestedKey, nestedValue := range nested {
				result[nestedKey] = nestedValue
			}
		default:
			result[fullKey] = value
		}
	}

	return result
}
