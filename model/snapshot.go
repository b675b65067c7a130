// Package model 定义训练产出的模型快照及其持久化编码。
//
// Snapshot 训练完成后不再修改；重新训练会构造新的 Snapshot，由 engine 原子替换。
package model

import (
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/recall"
)

// ProductMeta 是服务期需要的商品属性（表达式过滤、结果展示）。
type ProductMeta struct {
	Name          string
	CategoryID    int64
	CategoryName  string
	Price         float64
	AvgRating     float64
	PurchaseCount int
}

// Metadata 记录一次训练的概况。
type Metadata struct {
	RunID            string
	InteractionCount int
	ProductCount     int
	SearchCount      int
	TrainingDuration time.Duration
}

// Snapshot 是一次训练的全部产出。两个模型至少有一个非 nil。
type Snapshot struct {
	TrainedAt     time.Time
	Collaborative *recall.CollaborativeModel
	Content       *recall.ContentModel
	Catalog       map[int64]ProductMeta
	Metadata      Metadata
}

// NewCatalog 由商品行构建 Catalog。
func NewCatalog(products []core.Product) map[int64]ProductMeta {
	out := make(map[int64]ProductMeta, len(products))
	for _, p := range products {
		out[p.ProductID] = ProductMeta{
			Name:          p.Name,
			CategoryID:    p.CategoryID,
			CategoryName:  p.CategoryName,
			Price:         p.Price,
			AvgRating:     p.AvgRating,
			PurchaseCount: p.PurchaseCount,
		}
	}
	return out
}

// Trained 表示至少有一个模型可用。
func (s *Snapshot) Trained() bool {
	return s != nil && (s.Collaborative != nil || s.Content != nil)
}

// Age 返回距训练完成的时长。
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil || s.TrainedAt.IsZero() {
		return 0
	}
	return now.Sub(s.TrainedAt)
}

// Stale 表示快照已超过 after；仅作提示，不影响服务。
func (s *Snapshot) Stale(now time.Time, after time.Duration) bool {
	return s.Trained() && after > 0 && s.Age(now) > after
}

// Attributes 返回商品属性，用于填充 Item.Meta。
func (s *Snapshot) Attributes(productID int64) (map[string]any, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.Catalog[productID]
	if !ok {
		return nil, false
	}
	return map[string]any{
		"name":           p.Name,
		"category_id":    p.CategoryID,
		"category_name":  p.CategoryName,
		"price":          p.Price,
		"avg_rating":     p.AvgRating,
		"purchase_count": int64(p.PurchaseCount),
	}, true
}
