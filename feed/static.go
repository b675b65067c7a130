package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/shoprec/core"
)

// StaticFeed 是内存数据源，用于测试与离线导入。
// Err 非 nil 时所有读取都返回该错误，用于模拟上游不可用。
type StaticFeed struct {
	mu sync.RWMutex

	InteractionRows []core.Interaction
	ProductRows     []core.Product
	SearchRows      []core.Search
	History         map[int64][]int64
	Err             error
}

func (f *StaticFeed) Name() string { return "static" }

func (f *StaticFeed) Interactions(context.Context) ([]core.Interaction, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.InteractionRows, f.Err
}

func (f *StaticFeed) Products(context.Context) ([]core.Product, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ProductRows, f.Err
}

func (f *StaticFeed) Searches(context.Context, time.Time) ([]core.Search, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.SearchRows, f.Err
}

func (f *StaticFeed) UserHistory(_ context.Context, userID int64, limit int) ([]int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.Err != nil {
		return nil, f.Err
	}
	ids := f.History[userID]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Update 在持锁状态下修改数据。
func (f *StaticFeed) Update(fn func(f *StaticFeed)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

var _ core.DataFeed = (*StaticFeed)(nil)
