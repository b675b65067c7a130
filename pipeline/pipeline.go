package pipeline

import (
	"context"
	"time"

	"github.com/rushteam/shoprec/core"
)

// Hook 在每个 Node 执行后被调用，用于打点。
type Hook func(node Node, took time.Duration, out int, err error)

// Pipeline 把一次推荐拆成可组合的 Node 链：Recall → Filter → ReRank。
type Pipeline struct {
	Nodes []Node
	Hooks []Hook
}

// Run 依次执行 Nodes，任一 Node 出错即中止并返回该错误。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		for _, h := range p.Hooks {
			h(node, time.Since(start), len(next), err)
		}
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
