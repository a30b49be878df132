package container

import (
	"context"
	"strings"

	"github.com/KOMKZ/go-yogan-container/errcode"
)

// 解析链通过 context 随构造函数向下传递：
// 构造函数把收到的 ctx 透传给 Resolver.Resolve 时，深度优先的
// 递归解析天然携带完整路径，重复出现同名组件即为循环依赖。
// 并发查找互不污染（各自的 ctx 各自的链）

type resolutionKey struct{}

// resolutionChain 读取当前解析链
func resolutionChain(ctx context.Context) []string {
	chain, _ := ctx.Value(resolutionKey{}).([]string)
	return chain
}

// pushResolution 将组件名压入解析链，检测循环依赖
func pushResolution(ctx context.Context, name string) (context.Context, error) {
	chain := resolutionChain(ctx)

	for _, n := range chain {
		if n == name {
			cycle := append(append([]string{}, chain...), name)
			return nil, errcode.ErrDependencyCycle.
				WithMsgf("检测到循环依赖: %s", strings.Join(cycle, " -> ")).
				WithData("chain", cycle)
		}
	}

	next := make([]string, len(chain)+1)
	copy(next, chain)
	next[len(chain)] = name
	return context.WithValue(ctx, resolutionKey{}, next), nil
}
