// Package config 加载分层配置：默认值 → YAML 文件 → SHOPREC_ 环境变量。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
)

const (
	// EnvPrefix 是环境变量前缀，SHOPREC_ENGINE_STALE_AFTER → engine.stale_after
	EnvPrefix = "SHOPREC_"

	// PathEnvVar 指定配置文件路径
	PathEnvVar = "SHOPREC_CONFIG"
)

// Config 是服务的全部配置。
type Config struct {
	Log    logging.Config `koanf:"log" yaml:"log"`
	Engine EngineConfig   `koanf:"engine" yaml:"engine"`
	Store  StoreConfig    `koanf:"store" yaml:"store"`
	Feed   FeedConfig     `koanf:"feed" yaml:"feed"`
}

// EngineConfig 是训练与服务参数。
type EngineConfig struct {
	Seed              uint64        `koanf:"seed" yaml:"seed"`
	MaxLatentFactors  int           `koanf:"max_latent_factors" yaml:"max_latent_factors"`
	SimilarUsers      int           `koanf:"similar_users" yaml:"similar_users"`
	HistoryLimit      int           `koanf:"history_limit" yaml:"history_limit"`
	MaxFeatures       int           `koanf:"max_features" yaml:"max_features"`
	StaleAfter        time.Duration `koanf:"stale_after" yaml:"stale_after"`
	ExcludeInteracted bool          `koanf:"exclude_interacted" yaml:"exclude_interacted"`
	StateKey          string        `koanf:"state_key" yaml:"state_key"`
	BlockedProducts   []int64       `koanf:"blocked_products" yaml:"blocked_products"`
	BlocklistKey      string        `koanf:"blocklist_key" yaml:"blocklist_key"`
	FilterExpr        string        `koanf:"filter_expr" yaml:"filter_expr"`
	RecallTimeout     time.Duration `koanf:"recall_timeout" yaml:"recall_timeout"`
}

// StoreConfig 是模型状态存储配置。
type StoreConfig struct {
	Driver        string `koanf:"driver" yaml:"driver"`
	RedisAddr     string `koanf:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `koanf:"redis_password" yaml:"-"`
	RedisDB       int    `koanf:"redis_db" yaml:"redis_db"`
	BadgerDir     string `koanf:"badger_dir" yaml:"badger_dir"`
}

// FeedConfig 是训练数据源配置。
type FeedConfig struct {
	Driver           string `koanf:"driver" yaml:"driver"`
	DSN              string `koanf:"dsn" yaml:"-"`
	SearchWindowDays int    `koanf:"search_window_days" yaml:"search_window_days"`
}

// Default 返回默认配置。
func Default() *Config {
	def := &core.DefaultRecallConfig{}
	return &Config{
		Log: logging.Config{Level: "info", Format: "json"},
		Engine: EngineConfig{
			Seed:             def.DefaultSeed(),
			MaxLatentFactors: def.DefaultMaxLatentFactors(),
			SimilarUsers:     def.DefaultTopKSimilarUsers(),
			HistoryLimit:     def.DefaultHistoryLimit(),
			MaxFeatures:      def.DefaultMaxFeatures(),
			StaleAfter:       def.DefaultStaleAfter(),
			StateKey:         "recommendation_models",
			BlocklistKey:     "blocked_products",
			RecallTimeout:    2 * time.Second,
		},
		Store: StoreConfig{Driver: "badger", BadgerDir: "models", RedisAddr: "localhost:6379"},
		Feed:  FeedConfig{Driver: "sqlite", DSN: "file:shoprec.db?mode=ro", SearchWindowDays: 90},
	}
}

// Load 依次加载默认值、配置文件（path 为空时读 SHOPREC_CONFIG，仍为空则跳过）与环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitList(k, "engine.blocked_products"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey 把 SHOPREC_ENGINE_STALE_AFTER 转换为 engine.stale_after。
func envKey(key string) string {
	if key == PathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	return section + "." + field
}

// splitList 把环境变量中逗号分隔的值拆成列表。
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Validate 检查驱动与数值范围。
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return core.NewDomainError("config", core.ErrorCodeInvalidInput, fmt.Sprintf("config: "+format, args...))
	}
	switch c.Store.Driver {
	case "memory", "redis", "badger":
	default:
		return invalid("unknown store driver %q", c.Store.Driver)
	}
	// badger 不指定目录时退化为内存模式，模型无法跨进程保留
	if c.Store.Driver == "badger" && c.Store.BadgerDir == "" {
		return invalid("store.badger_dir is required for badger")
	}
	switch c.Feed.Driver {
	case "sqlite", "postgres":
	default:
		return invalid("unknown feed driver %q", c.Feed.Driver)
	}
	if c.Feed.DSN == "" {
		return invalid("feed.dsn is required")
	}
	e := c.Engine
	for name, v := range map[string]int{
		"engine.max_latent_factors": e.MaxLatentFactors,
		"engine.similar_users":      e.SimilarUsers,
		"engine.history_limit":      e.HistoryLimit,
		"engine.max_features":       e.MaxFeatures,
		"feed.search_window_days":   c.Feed.SearchWindowDays,
	} {
		if v <= 0 {
			return invalid("%s must be positive, got %d", name, v)
		}
	}
	if e.StaleAfter <= 0 {
		return invalid("engine.stale_after must be positive, got %s", e.StaleAfter)
	}
	if e.RecallTimeout < 0 {
		return invalid("engine.recall_timeout must not be negative, got %s", e.RecallTimeout)
	}
	if e.StateKey == "" {
		return invalid("engine.state_key is required")
	}
	return nil
}

// YAML 返回配置的 YAML 表示（不含口令与 DSN）。
func (c *Config) YAML() ([]byte, error) {
	return yamlv3.Marshal(c)
}
