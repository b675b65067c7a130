package core

// RecommendContext 是一次推荐请求的上下文，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID int64

	// Scene 是请求的推荐方式：collaborative / content / hybrid / similar
	Scene string

	// Params 请求级参数（limit、product_id），过滤表达式中以 rctx.params 引用
	Params map[string]any
}

// NewRecommendContext 创建带 limit 参数的上下文。
func NewRecommendContext(userID int64, scene string, limit int) *RecommendContext {
	return &RecommendContext{
		UserID: userID,
		Scene:  scene,
		Params: map[string]any{"limit": int64(limit)},
	}
}

// SetParam 写入请求参数。
func (rctx *RecommendContext) SetParam(key string, v any) {
	if rctx.Params == nil {
		rctx.Params = make(map[string]any)
	}
	rctx.Params[key] = v
}

// Param 读取请求参数。
func (rctx *RecommendContext) Param(key string) (any, bool) {
	if rctx == nil || rctx.Params == nil {
		return nil, false
	}
	v, ok := rctx.Params[key]
	return v, ok
}
