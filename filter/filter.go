package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Filter 判断候选商品是否应被移除：返回 true 表示移除。
//
// 实现：
//   - BlacklistFilter：屏蔽的商品
//   - InteractedFilter：用户已购买的商品
//   - ExprFilter：CEL 表达式
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// FilterFunc 把一个判断函数包装成 Filter。
type FilterFunc struct {
	FilterName string
	Fn         func(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

func (f FilterFunc) Name() string { return f.FilterName }

func (f FilterFunc) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.Fn(ctx, rctx, item)
}
