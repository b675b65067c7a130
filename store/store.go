// Package store 提供 core.Store 的实现，用于保存训练产出的模型状态与小型配置数据。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
//	var s core.Store = store.NewMemoryStore()
//	s, err := store.New(store.Options{Driver: "badger", BadgerDir: "/var/lib/shoprec"})
package store

import (
	"fmt"

	"github.com/rushteam/shoprec/core"
)

// 存储驱动
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverBadger = "badger"
)

// Options 是构造 Store 的参数。
type Options struct {
	Driver string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// BadgerDir 为空时 Badger 以内存模式运行
	BadgerDir string
}

// New 按 Driver 构造 Store。
func New(opts Options) (core.Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		return NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case DriverBadger:
		return NewBadgerStore(opts.BadgerDir)
	default:
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			fmt.Sprintf("store: unknown driver %q", opts.Driver))
	}
}
