package rerank

import (
	"cmp"
	"context"
	"slices"
	"strconv"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
	"github.com/rushteam/shoprec/recall"
)

// RankedList 是一路召回的有序结果。
type RankedList struct {
	Source string
	IDs    []int64
}

// Hybrid 按名次加权融合多路召回。
//
// 长度为 L 的列表中第 i 名（从 0 开始）得 (L - i) 分，乘以来源权重后按商品累加，
// 总分降序；同分时按首次出现的顺序（先按列表顺序，再按列表内名次）。
type Hybrid struct {
	// Weights 来源 → 权重，未配置的来源权重为 1
	Weights map[string]float64

	// Depth 每路参与融合的名次数（通常为 2N），<= 0 表示整条列表
	Depth int

	// N 融合后保留的数量，<= 0 表示全部
	N int
}

// NewHybrid 返回协同过滤权重 2、内容权重 1、每路取 2n 的融合器。
func NewHybrid(n int) *Hybrid {
	return &Hybrid{
		Weights: map[string]float64{
			recall.SourceCollaborative: 2,
			recall.SourceContent:       1,
		},
		Depth: 2 * n,
		N:     n,
	}
}

func (h *Hybrid) Name() string        { return "rerank.hybrid" }
func (h *Hybrid) Kind() pipeline.Kind { return pipeline.KindReRank }

// Merge 融合协同过滤与内容两路结果。
func (h *Hybrid) Merge(collaborative, content []int64) []int64 {
	fused := h.fuse([]RankedList{
		{Source: recall.SourceCollaborative, IDs: collaborative},
		{Source: recall.SourceContent, IDs: content},
	})
	out := make([]int64, len(fused))
	for i, f := range fused {
		out[i] = f.id
	}
	return out
}

// Process 按 recall_source 标签把 items 还原为多路有序列表后融合，
// 列表顺序取各来源在 items 中首次出现的顺序。
func (h *Hybrid) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	var lists []RankedList
	pos := make(map[string]int)
	byID := make(map[int64]*core.Item, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		src := it.Labels[utils.LabelRecallSource].First()
		i, ok := pos[src]
		if !ok {
			i = len(lists)
			pos[src] = i
			lists = append(lists, RankedList{Source: src})
		}
		lists[i].IDs = append(lists[i].IDs, it.ID)
		if _, seen := byID[it.ID]; !seen {
			byID[it.ID] = it
		}
	}

	fused := h.fuse(lists)
	out := make([]*core.Item, 0, len(fused))
	for _, f := range fused {
		it := byID[f.id]
		it.Score = f.score
		it.PutLabel(utils.LabelRerank, utils.Label{Value: "hybrid", Source: "rerank"})
		it.PutLabel(utils.LabelHybridScore, utils.Label{Value: strconv.FormatFloat(f.score, 'f', -1, 64), Source: "rerank"})
		out = append(out, it)
	}
	return out, nil
}

type fusedScore struct {
	id    int64
	score float64
}

func (h *Hybrid) fuse(lists []RankedList) []fusedScore {
	var order []fusedScore
	index := make(map[int64]int)
	for _, l := range lists {
		ids := l.IDs
		if h.Depth > 0 && len(ids) > h.Depth {
			ids = ids[:h.Depth]
		}
		w := 1.0
		if v, ok := h.Weights[l.Source]; ok {
			w = v
		}
		size := len(ids)
		for rank, id := range ids {
			pts := w * float64(size-rank)
			if i, ok := index[id]; ok {
				order[i].score += pts
				continue
			}
			index[id] = len(order)
			order = append(order, fusedScore{id: id, score: pts})
		}
	}

	slices.SortStableFunc(order, func(a, b fusedScore) int {
		return cmp.Compare(b.score, a.score)
	})
	if h.N > 0 && len(order) > h.N {
		order = order[:h.N]
	}
	return order
}
