package engine

import (
	"context"
	"strings"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/model"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// RecommendCollaborative 返回相似用户购买过的商品。未知用户返回空列表。
func (e *Engine) RecommendCollaborative(ctx context.Context, userID int64, n int) ([]int64, error) {
	return e.recommend(ctx, MethodCollaborative, userID, n)
}

// RecommendContent 返回与用户历史商品文本最相似的商品，不含历史商品本身。
func (e *Engine) RecommendContent(ctx context.Context, userID int64, n int) ([]int64, error) {
	return e.recommend(ctx, MethodContent, userID, n)
}

// RecommendHybrid 按名次加权融合协同过滤（权重 2）与内容（权重 1）两路结果。
func (e *Engine) RecommendHybrid(ctx context.Context, userID int64, n int) ([]int64, error) {
	return e.recommend(ctx, MethodHybrid, userID, n)
}

// Recommend 按 method 选择推荐方式，未知或空 method 视为 hybrid；n <= 0 时取 10。
func (e *Engine) Recommend(ctx context.Context, userID int64, n int, method string) ([]int64, error) {
	return e.recommend(ctx, NormalizeMethod(method), userID, n)
}

// NormalizeMethod 把 method 规范化为 collaborative / content / hybrid 之一。
func NormalizeMethod(method string) string {
	switch m := strings.ToLower(strings.TrimSpace(method)); m {
	case MethodCollaborative, MethodContent:
		return m
	default:
		return MethodHybrid
	}
}

// SimilarProducts 返回与 productID 文本最相似的商品，不含自身。
// 商品没有训练向量时返回 NOT_FOUND。
func (e *Engine) SimilarProducts(ctx context.Context, productID int64, n int) (ids []int64, err error) {
	defer func() { e.metrics.recordRecommend("similar", err) }()

	snap, err := e.ensureReady(ctx)
	if err != nil {
		return nil, err
	}
	e.warnIfStale(snap)
	if snap.Content == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotFound, "engine: content model not trained")
	}

	p := &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			&recall.SimilarRecall{Model: snap.Content, ProductID: productID},
			catalogNode(snap),
			e.filterNode(snap, false),
			&rerank.TopNNode{N: limit(n)},
		},
		Hooks: []pipeline.Hook{e.metrics.observeNode},
	}
	rctx := core.NewRecommendContext(0, "similar", limit(n))
	rctx.SetParam("product_id", productID)
	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	return core.ItemIDs(items), nil
}

func (e *Engine) recommend(ctx context.Context, method string, userID int64, n int) (ids []int64, err error) {
	defer func() { e.metrics.recordRecommend(method, err) }()

	snap, err := e.ensureReady(ctx)
	if err != nil {
		return nil, err
	}
	e.warnIfStale(snap)

	n = limit(n)
	rctx := core.NewRecommendContext(userID, method, n)
	items, err := e.userPipeline(snap, method, n).Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	return core.ItemIDs(items), nil
}

// userPipeline 组装用户推荐链路。召回返回完整排序，先过滤再截断，保证过滤后仍有 n 个结果可选。
func (e *Engine) userPipeline(snap *model.Snapshot, method string, n int) *pipeline.Pipeline {
	collab := &recall.CollaborativeRecall{Model: snap.Collaborative}
	content := &recall.ContentRecall{Model: snap.Content, History: e.opts.Feed, HistoryLimit: e.opts.HistoryLimit}

	var nodes []pipeline.Node
	switch method {
	case MethodCollaborative:
		nodes = []pipeline.Node{collab, catalogNode(snap), e.filterNode(snap, true), &rerank.TopNNode{N: n}}
	case MethodContent:
		nodes = []pipeline.Node{content, catalogNode(snap), e.filterNode(snap, true), &rerank.TopNNode{N: n}}
	default:
		nodes = []pipeline.Node{
			&recall.Fanout{
				Sources: []recall.Source{collab, content},
				Timeout: e.opts.RecallTimeout,
			},
			catalogNode(snap),
			e.filterNode(snap, true),
			rerank.NewHybrid(n),
		}
	}
	return &pipeline.Pipeline{Nodes: nodes, Hooks: []pipeline.Hook{e.metrics.observeNode}}
}

// filterNode 每次请求新建，黑名单在请求内只读取一次 Store。
func (e *Engine) filterNode(snap *model.Snapshot, forUser bool) *filter.FilterNode {
	filters := []filter.Filter{
		filter.NewBlacklistFilter(e.opts.BlockedProducts, e.opts.Store, e.opts.BlocklistKey),
	}
	if forUser && e.opts.ExcludeInteracted && snap.Collaborative != nil {
		filters = append(filters, &filter.InteractedFilter{Source: snap.Collaborative})
	}
	if e.expr != nil {
		filters = append(filters, e.expr)
	}
	return &filter.FilterNode{
		Filters: filters,
		OnFiltered: func(name string, _ *core.Item) {
			e.metrics.Filtered.WithLabelValues(name).Inc()
		},
		OnError: func(name string, err error) {
			e.log.Warn().Err(err).Str("filter", name).Msg("filter failed, item kept")
		},
	}
}

// catalogNode 用快照中的商品属性填充 Item.Meta。
func catalogNode(snap *model.Snapshot) pipeline.Node {
	return pipeline.NodeFunc{
		NodeName: "postprocess.catalog",
		NodeKind: pipeline.KindPostProcess,
		Fn: func(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
			for _, it := range items {
				attrs, ok := snap.Attributes(it.ID)
				if !ok {
					continue
				}
				for k, v := range attrs {
					it.Meta[k] = v
				}
			}
			return items, nil
		},
	}
}

func limit(n int) int {
	if n <= 0 {
		return (&core.DefaultRecallConfig{}).DefaultTopKItems()
	}
	return n
}
