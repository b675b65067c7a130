package filter

import (
	"context"
	"sync"

	"github.com/rushteam/shoprec/core"
)

// InteractionSource 提供用户已购买过的商品，recall.CollaborativeModel 实现此接口。
type InteractionSource interface {
	InteractedProducts(userID int64) []int64
}

// InteractedFilter 过滤掉用户已购买过的商品。
type InteractedFilter struct {
	Source InteractionSource

	mu    sync.Mutex
	cache map[int64]map[int64]struct{}
}

func (f *InteractedFilter) Name() string {
	return "filter.interacted"
}

func (f *InteractedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Source == nil || rctx == nil || item == nil {
		return false, nil
	}
	_, ok := f.interacted(rctx.UserID)[item.ID]
	return ok, nil
}

func (f *InteractedFilter) interacted(userID int64) map[int64]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.cache[userID]; ok {
		return set
	}
	if f.cache == nil {
		f.cache = make(map[int64]map[int64]struct{})
	}
	ids := f.Source.InteractedProducts(userID)
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	f.cache[userID] = set
	return set
}
