package recall

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// 召回源名称，写入 Item 的 recall_source 标签，重排阶段据此分组。
const (
	SourceCollaborative = "collaborative"
	SourceContent       = "content"
)

// Source 是一路召回：根据请求上下文给出带分数的候选，按分数降序。
// CollaborativeRecall / ContentRecall 实现此接口，由 Fanout 并发调用。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
