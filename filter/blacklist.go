package filter

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/core"
)

// BlacklistFilter 过滤掉下架/屏蔽的商品。
// 黑名单来自内存 IDs，以及（可选）Store 中 Key 对应的 JSON 数组，例如 [101, 102]。
// Store 只在首次使用时读取一次，因此每个请求应使用新的实例。
type BlacklistFilter struct {
	IDs   []int64
	Store core.Store
	Key   string

	once    sync.Once
	blocked map[int64]struct{}
	loadErr error
}

// NewBlacklistFilter 创建一个黑名单过滤器，store 为 nil 时只使用内存列表。
func NewBlacklistFilter(ids []int64, store core.Store, key string) *BlacklistFilter {
	return &BlacklistFilter{IDs: ids, Store: store, Key: key}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	f.once.Do(func() { f.load(ctx) })
	if _, ok := f.blocked[item.ID]; ok {
		return true, nil
	}
	return false, f.loadErr
}

func (f *BlacklistFilter) load(ctx context.Context) {
	f.blocked = make(map[int64]struct{}, len(f.IDs))
	for _, id := range f.IDs {
		f.blocked[id] = struct{}{}
	}
	if f.Store == nil || f.Key == "" {
		return
	}

	data, err := f.Store.Get(ctx, f.Key)
	if err != nil {
		if !core.IsStoreNotFound(err) {
			f.loadErr = err
		}
		return
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		f.loadErr = err
		return
	}
	for _, id := range ids {
		f.blocked[id] = struct{}{}
	}
}
