package pipeline

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Kind 用于标记 Node 所处阶段，方便观测（按阶段打点）。
type Kind string

const (
	KindRecall      Kind = "recall"      // 召回：协同过滤 / 内容相似度生成候选
	KindFilter      Kind = "filter"      // 过滤：剔除已购、黑名单、表达式不满足的候选
	KindReRank      Kind = "rerank"      // 重排：多路融合与截断
	KindPostProcess Kind = "postprocess" // 后处理：补充商品元信息
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入 items -> 输出 items”的形态。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeFunc 把一个函数包装成 Node。
type NodeFunc struct {
	NodeName string
	NodeKind Kind
	Fn       func(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error)
}

func (n NodeFunc) Name() string { return n.NodeName }
func (n NodeFunc) Kind() Kind   { return n.NodeKind }

func (n NodeFunc) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	return n.Fn(ctx, rctx, items)
}
