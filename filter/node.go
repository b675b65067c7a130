package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// FilterNode 是过滤 Node，组合多个过滤器，任一过滤器命中即移除该物品。
// 过滤器出错时保留该物品（不让单个规则拖垮整条链路），并通过 OnError 上报。
type FilterNode struct {
	Filters []Filter

	// OnFiltered 在物品被移除时调用（可选，用于打点）
	OnFiltered func(filter string, item *core.Item)

	// OnError 在过滤器出错时调用（可选）
	OnError func(filter string, err error)
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if reason, hit := n.match(ctx, rctx, item); hit {
			item.PutLabel(utils.LabelFiltered, utils.Label{Value: "true", Source: reason})
			if n.OnFiltered != nil {
				n.OnFiltered(reason, item)
			}
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (n *FilterNode) match(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (string, bool) {
	for _, f := range n.Filters {
		ok, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil {
			if n.OnError != nil {
				n.OnError(f.Name(), err)
			}
			continue
		}
		if ok {
			return f.Name(), true
		}
	}
	return "", false
}
