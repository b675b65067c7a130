package core

import "time"

// RecallConfig 是召回与训练相关的配置接口，用于提供默认值。
type RecallConfig interface {
	// DefaultTopKSimilarUsers 返回协同过滤中参与打分的相似用户数
	DefaultTopKSimilarUsers() int

	// DefaultTopKItems 返回默认的推荐条数
	DefaultTopKItems() int

	// DefaultHistoryLimit 返回内容推荐读取的用户历史商品上限
	DefaultHistoryLimit() int

	// DefaultMaxLatentFactors 返回 SVD 隐因子数上限
	DefaultMaxLatentFactors() int

	// DefaultMaxFeatures 返回 TF-IDF 词表大小
	DefaultMaxFeatures() int

	// DefaultStaleAfter 返回模型过期提示阈值
	DefaultStaleAfter() time.Duration

	// DefaultSeed 返回随机种子
	DefaultSeed() uint64
}

// DefaultRecallConfig 是默认的召回配置实现。
type DefaultRecallConfig struct{}

func (c *DefaultRecallConfig) DefaultTopKSimilarUsers() int {
	return 10
}

func (c *DefaultRecallConfig) DefaultTopKItems() int {
	return 10
}

func (c *DefaultRecallConfig) DefaultHistoryLimit() int {
	return 20
}

func (c *DefaultRecallConfig) DefaultMaxLatentFactors() int {
	return 50
}

func (c *DefaultRecallConfig) DefaultMaxFeatures() int {
	return 100
}

func (c *DefaultRecallConfig) DefaultStaleAfter() time.Duration {
	return 7 * 24 * time.Hour
}

func (c *DefaultRecallConfig) DefaultSeed() uint64 {
	return 42
}
