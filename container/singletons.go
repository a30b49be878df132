package container

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-container/logger"
)

// singletonRegistry 单例实例注册表
//
// order 只追加，记录构造完成顺序；销毁顺序是它的精确逆序。
// 刷新期间由刷新协程单写，刷新后只有延迟单例的首次构造会写入
// （由 singleflight 保证单飞）
type singletonRegistry struct {
	mu        sync.RWMutex
	instances map[string]any
	order     []string
}

func newSingletonRegistry() *singletonRegistry {
	return &singletonRegistry{
		instances: make(map[string]any),
	}
}

// get 获取已构造的单例
func (s *singletonRegistry) get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[name]
	return inst, ok
}

// put 登记构造完成的单例（追加构造顺序）
func (s *singletonRegistry) put(name string, inst any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[name]; !exists {
		s.order = append(s.order, name)
	}
	s.instances[name] = inst
}

// names 返回构造顺序的副本
func (s *singletonRegistry) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// len 已构造单例数量
func (s *singletonRegistry) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// destroyAll 按构造逆序销毁全部单例
//
// 每个实例恰好销毁一次；单个 Destroy 失败只记录并收集，
// 不中断剩余实例的销毁（尽力而为）
func (s *singletonRegistry) destroyAll(ctx context.Context, log *logger.CtxZapLogger) []error {
	s.mu.Lock()
	order := s.order
	instances := s.instances
	s.order = nil
	s.instances = make(map[string]any)
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		inst := instances[name]

		disposable, ok := inst.(Disposable)
		if !ok {
			continue
		}

		if err := disposable.Destroy(ctx); err != nil {
			if log != nil {
				log.ErrorCtx(ctx, "组件销毁失败",
					zap.String("name", name),
					zap.Error(err))
			}
			errs = append(errs, err)
		}
	}
	return errs
}
