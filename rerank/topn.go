package rerank

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// TopNNode 截取前 N 个物品，放在单路推荐链路的末尾：
//
//	&pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.CollaborativeRecall{Model: m},
//	        &filter.FilterNode{...},
//	        &rerank.TopNNode{N: 10},
//	    },
//	}
//
// N <= 0 时不截断。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
