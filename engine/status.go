package engine

import "time"

// State 是模型生命周期状态。
type State string

const (
	StateUntrained State = "untrained"
	StateTrained   State = "trained"
	StateStale     State = "stale" // 仅提示，仍继续服务
)

// Status 是引擎当前状态，供 CLI / 健康检查展示。
type Status struct {
	State         State         `json:"state"`
	TrainedAt     time.Time     `json:"trained_at"`
	Age           time.Duration `json:"age"`
	StaleAfter    time.Duration `json:"stale_after"`
	Collaborative bool          `json:"collaborative"`
	Content       bool          `json:"content"`
	Users         int           `json:"users"`
	Products      int           `json:"products"`
	LatentFactors int           `json:"latent_factors"`
	Vocabulary    int           `json:"vocabulary"`
	CatalogSize   int           `json:"catalog_size"`
	RunID         string        `json:"run_id,omitempty"`
}

// Status 返回当前快照的状态，不会触发加载或训练。
func (e *Engine) Status() Status {
	st := Status{State: StateUntrained, StaleAfter: e.opts.StaleAfter}
	snap := e.snap.Load()
	if !snap.Trained() {
		return st
	}

	now := e.opts.Now()
	st.State = StateTrained
	if snap.Stale(now, e.opts.StaleAfter) {
		st.State = StateStale
	}
	st.TrainedAt = snap.TrainedAt
	st.Age = snap.Age(now)
	st.RunID = snap.Metadata.RunID
	st.CatalogSize = len(snap.Catalog)

	if c := snap.Collaborative; c != nil {
		st.Collaborative = true
		st.Users, _ = c.Matrix().Dims()
		st.LatentFactors = c.LatentFactors()
	}
	if c := snap.Content; c != nil {
		st.Content = true
		st.Products = c.Products().Len()
		st.Vocabulary = len(c.Vocabulary())
	}
	return st
}
