// Package shoprec 是电商混合推荐引擎：用户协同过滤（截断 SVD）+ 商品文本内容相似度（TF-IDF），
// 两路结果按名次加权融合。
//
// 设计要点：
// - Snapshot-first: 一次训练的全部产出封装为不可变快照，重训后原子替换
// - Pipeline-first: 服务期逻辑通过 Node 串联（Recall → PostProcess → Filter → ReRank）
// - Labels-first: recall_source 等标签全链路透传，重排阶段据此还原多路列表
//
// 入口见 engine.Engine 与 cmd/shoprec。
package shoprec

import (
	"github.com/rushteam/shoprec/engine"
	"github.com/rushteam/shoprec/pipeline"
)

// 轻量 facade：便于直接 import "shoprec" 使用核心抽象。
type (
	Engine   = engine.Engine
	Options  = engine.Options
	Status   = engine.Status
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
)

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// New 创建推荐引擎，等同于 engine.New。
func New(opts Options) (*Engine, error) {
	return engine.New(opts)
}
