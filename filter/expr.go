package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式筛选商品：表达式为 true 的保留，false 的过滤。
//
// 示例：
//   - `item.meta.price <= 100.0`
//   - `item.meta.category_id != 3 && item.meta.avg_rating >= 4.0`
type ExprFilter struct {
	Program *dsl.Program
}

// NewExprFilter 编译表达式，表达式为空时返回 nil。
func NewExprFilter(expr string) (*ExprFilter, error) {
	if expr == "" {
		return nil, nil
	}
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Program: prg}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Program == nil || item == nil {
		return false, nil
	}
	keep, err := f.Program.Eval(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
