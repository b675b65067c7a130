package core

import (
	"context"
	"time"
)

// Interaction 是按 (用户, 商品) 聚合后的购买记录。
type Interaction struct {
	UserID        int64
	ProductID     int64
	TotalQuantity float64
	OrderCount    int
}

// Weight 返回交互矩阵中的置信度权重：数量 + 2 * 订单数。
func (in Interaction) Weight() float64 {
	return in.TotalQuantity + 2*float64(in.OrderCount)
}

// Product 是商品目录中的一行。
type Product struct {
	ProductID     int64
	Name          string
	Description   string
	CategoryID    int64
	Price         float64
	CategoryName  string
	AvgRating     float64
	PurchaseCount int

	// Status / ModerationStatus 为空时视为已由数据源过滤
	Status           string
	ModerationStatus string
}

// Eligible 判断商品是否可参与内容模型：在售且审核通过（或未审核）。
func (p Product) Eligible() bool {
	if p.Status != "" && p.Status != "active" {
		return false
	}
	return p.ModerationStatus == "" || p.ModerationStatus == "approved"
}

// Text 返回用于构建词向量的文本：名称 + 描述 + 类目名。
func (p Product) Text() string {
	return p.Name + " " + p.Description + " " + p.CategoryName
}

// Search 是用户搜索词聚合记录。
type Search struct {
	UserID     int64
	Term       string
	CategoryID int64
	Count      int
}

// HistoryFeed 提供用户最近下单或浏览过的商品（去重）。
type HistoryFeed interface {
	UserHistory(ctx context.Context, userID int64, limit int) ([]int64, error)
}

// DataFeed 是训练数据的外部协作者。
//
// 实现：
//   - feed.SQLFeed（sqlite / postgres）
//   - feed.StaticFeed（内存，测试与离线导入）
type DataFeed interface {
	HistoryFeed

	Name() string

	// Interactions 返回已按计数状态与已支付过滤、按 (用户, 商品) 聚合的交互
	Interactions(ctx context.Context) ([]Interaction, error)

	// Products 返回在售且审核通过的商品
	Products(ctx context.Context) ([]Product, error)

	// Searches 返回 since 之后的搜索聚合
	Searches(ctx context.Context, since time.Time) ([]Search, error)
}
