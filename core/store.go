package core

import "context"

// Store 是模型快照与黑名单所在的 KV 存储。
// 快照以单个 blob 存在 engine.StateKey 下；值按原样存取，由调用方负责编码。
//
// 实现：store.MemoryStore、store.RedisStore、store.BadgerStore。
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key，key 不存在时不报错
	Delete(ctx context.Context, key string) error

	// Close 关闭连接/释放资源
	Close() error
}

var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 store 模块的 key 不存在。
func IsStoreNotFound(err error) bool {
	return isStoreError(err, ErrorCodeNotFound)
}

// IsStoreNotSupported 检查错误是否为 store 模块的操作不支持。
func IsStoreNotSupported(err error) bool {
	return isStoreError(err, ErrorCodeNotSupported)
}

func isStoreError(err error, code string) bool {
	de := GetDomainError(err)
	return de != nil && de.Module == ModuleStore && de.Code == code
}
