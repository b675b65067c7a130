package utils

import (
	"slices"
	"strings"
)

// 链路中使用的标签 key。
const (
	LabelRecallSource   = "recall_source"   // 召回来源：collaborative / content
	LabelRecallPriority = "recall_priority" // Fanout 中召回源的下标
	LabelFiltered       = "filtered"        // 命中的过滤器写在 Source
	LabelRerank         = "rerank"          // 重排策略
	LabelHybridScore    = "hybrid_score"    // 融合得分
)

// Label 是推荐链路中的一等公民：可解释、可追踪、可透传。
// Value 与 Source 的语义由写入方决定，这里只提供合并规则。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / rerank / filter / postprocess
}

// MergeLabel 合并同名 Label，保留历史：
// - Value: 以 '|' 累积，已存在的值不重复追加
// - Source: 以 ',' 累积，同样去重
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}
	return Label{
		Value:  appendPart(existing.Value, incoming.Value, "|"),
		Source: appendPart(existing.Source, incoming.Source, ","),
	}
}

// Values 返回累积后的各个值。
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, "|")
}

// First 返回最早写入的值；Hybrid 用它确定物品所属的召回源。
func (l Label) First() string {
	first, _, _ := strings.Cut(l.Value, "|")
	return first
}

func appendPart(acc, part, sep string) string {
	switch {
	case acc == "":
		return part
	case part == "":
		return acc
	case slices.Contains(strings.Split(acc, sep), part):
		return acc
	default:
		return acc + sep + part
	}
}
