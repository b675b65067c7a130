// Package engine 管理推荐模型的生命周期并对外提供推荐操作。
//
// 状态机：UNTRAINED → TRAINED → STALE（STALE 仅提示，仍继续服务）。
// 训练在结束时构造新的 model.Snapshot 并原子替换，读请求总是看到完整的旧快照或新快照。
//
// 使用示例：
//
//	eng, err := engine.New(engine.Options{Feed: f, Store: s, Logger: &log})
//	if err := eng.Restore(ctx); err != nil { ... }
//	ids, err := eng.RecommendHybrid(ctx, userID, 10)
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/model"
	"github.com/rushteam/shoprec/recall"
)

// 推荐方法
const (
	MethodCollaborative = "collaborative"
	MethodContent       = "content"
	MethodHybrid        = "hybrid"
)

// Options 是引擎参数，零值字段取 core.DefaultRecallConfig 的默认值。
type Options struct {
	// Feed 训练数据与用户历史来源，必填
	Feed core.DataFeed

	// Store 模型状态存储，nil 时不持久化
	Store core.Store

	Logger  *zerolog.Logger
	Metrics *Metrics

	Seed             uint64
	MaxLatentFactors int
	SimilarUsers     int
	HistoryLimit     int
	MaxFeatures      int
	StaleAfter       time.Duration

	// ExcludeInteracted 为 true 时从用户推荐中去掉其已购买的商品
	ExcludeInteracted bool

	// StateKey 快照在 Store 中的 key
	StateKey string

	// BlockedProducts 与 Store 中 BlocklistKey 对应的 JSON 数组一起组成黑名单
	BlockedProducts []int64
	BlocklistKey    string

	// FilterExpr 服务期商品过滤表达式（CEL），为 true 的商品保留
	FilterExpr string

	// SearchWindow 训练时加载的搜索记录时间窗，默认 90 天
	SearchWindow time.Duration

	// RecallTimeout 混合推荐中每个召回源的超时，0 表示不限制
	RecallTimeout time.Duration

	// Now 用于测试注入时间
	Now func() time.Time
}

// DefaultStateKey 是快照的默认存储 key。
const DefaultStateKey = "recommendation_models"

func (o Options) withDefaults() Options {
	def := &core.DefaultRecallConfig{}
	if o.Seed == 0 {
		o.Seed = def.DefaultSeed()
	}
	if o.MaxLatentFactors <= 0 {
		o.MaxLatentFactors = def.DefaultMaxLatentFactors()
	}
	if o.SimilarUsers <= 0 {
		o.SimilarUsers = def.DefaultTopKSimilarUsers()
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = def.DefaultHistoryLimit()
	}
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = def.DefaultMaxFeatures()
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = def.DefaultStaleAfter()
	}
	if o.StateKey == "" {
		o.StateKey = DefaultStateKey
	}
	if o.SearchWindow <= 0 {
		o.SearchWindow = 90 * 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine 是模型生命周期管理器，可并发使用。
type Engine struct {
	opts    Options
	log     zerolog.Logger
	metrics *Metrics
	expr    *filter.ExprFilter

	snap        atomic.Pointer[model.Snapshot]
	staleWarned atomic.Pointer[model.Snapshot]

	trainGroup singleflight.Group
	readyMu    sync.Mutex
}

// New 创建引擎，不会加载或训练模型；调用 Restore 或 Train，或直接发起推荐（首次推荐会自动 Restore）。
func New(opts Options) (*Engine, error) {
	if opts.Feed == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: feed is required")
	}
	opts = opts.withDefaults()

	expr, err := filter.NewExprFilter(opts.FilterExpr)
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}

	return &Engine{
		opts:    opts,
		log:     log.With().Str("component", "engine").Logger(),
		metrics: m,
		expr:    expr,
	}, nil
}

// Snapshot 返回当前快照，未训练时为 nil。
func (e *Engine) Snapshot() *model.Snapshot {
	return e.snap.Load()
}

// TrainResult 是一次成功训练的概况。
type TrainResult struct {
	RunID         string        `json:"run_id"`
	TrainedAt     time.Time     `json:"trained_at"`
	Duration      time.Duration `json:"duration"`
	Collaborative bool          `json:"collaborative"`
	Content       bool          `json:"content"`
	Users         int           `json:"users"`
	Products      int           `json:"products"`
	LatentFactors int           `json:"latent_factors"`
	Vocabulary    int           `json:"vocabulary"`
	Interactions  int           `json:"interactions"`
	Searches      int           `json:"searches"`
	Persisted     bool          `json:"persisted"`

	// CollaborativeError / ContentError 记录部分成功时失败一侧的原因
	CollaborativeError string `json:"collaborative_error,omitempty"`
	ContentError       string `json:"content_error,omitempty"`
}

// Train 从数据源全量重训两个模型并替换当前快照。
//
// 任一模型训练成功即算成功；两个都失败时返回 INSUFFICIENT_DATA 并保留原快照。
// 数据源不可达时返回 UNAVAILABLE。持久化失败只记录告警（Persisted=false）。
// 并发调用会合并为一次训练。
func (e *Engine) Train(ctx context.Context) (*TrainResult, error) {
	v, err, _ := e.trainGroup.Do("train", func() (any, error) {
		return e.train(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TrainResult), nil
}

type trainingData struct {
	interactions []core.Interaction
	products     []core.Product
	searches     []core.Search
}

func (e *Engine) train(ctx context.Context) (*TrainResult, error) {
	runID := uuid.NewString()
	log := e.log.With().Str("run_id", runID).Logger()
	start := e.opts.Now()
	log.Info().Str("feed", e.opts.Feed.Name()).Msg("training started")

	data, err := e.loadTrainingData(ctx, start, log)
	if err != nil {
		e.metrics.recordTrain(resultLabel(err), 0)
		log.Error().Err(err).Msg("training data unavailable")
		return nil, err
	}

	res := &TrainResult{
		RunID:        runID,
		Interactions: len(data.interactions),
		Searches:     len(data.searches),
	}

	collab, cfErr := recall.FitCollaborative(recall.BuildInteractionMatrix(data.interactions), recall.CollaborativeOptions{
		MaxLatentFactors: e.opts.MaxLatentFactors,
		SimilarUsers:     e.opts.SimilarUsers,
		Seed:             e.opts.Seed,
	})
	if cfErr != nil {
		res.CollaborativeError = cfErr.Error()
		log.Warn().Err(cfErr).Msg("collaborative model not trained")
	} else {
		res.Collaborative = true
		res.Users, _ = collab.Matrix().Dims()
		res.LatentFactors = collab.LatentFactors()
		log.Info().Int("users", res.Users).Int("latent_factors", res.LatentFactors).Msg("collaborative model trained")
	}

	content, cbErr := recall.FitContent(data.products, recall.ContentOptions{MaxFeatures: e.opts.MaxFeatures})
	if cbErr != nil {
		res.ContentError = cbErr.Error()
		log.Warn().Err(cbErr).Msg("content model not trained")
	} else {
		res.Content = true
		res.Vocabulary = len(content.Vocabulary())
		log.Info().Int("products", content.Products().Len()).Int("vocabulary", res.Vocabulary).Msg("content model trained")
	}

	if cfErr != nil && cbErr != nil {
		e.metrics.recordTrain("insufficient_data", e.opts.Now().Sub(start))
		return nil, core.WrapDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData,
			"engine: no model could be trained", errors.Join(cfErr, cbErr))
	}

	trainedAt := e.opts.Now()
	res.TrainedAt = trainedAt
	res.Duration = trainedAt.Sub(start)
	res.Products = len(data.products)

	snap := &model.Snapshot{
		TrainedAt:     trainedAt,
		Collaborative: collab,
		Content:       content,
		Catalog:       model.NewCatalog(data.products),
		Metadata: model.Metadata{
			RunID:            runID,
			InteractionCount: len(data.interactions),
			ProductCount:     len(data.products),
			SearchCount:      len(data.searches),
			TrainingDuration: res.Duration,
		},
	}
	e.install(snap)
	e.metrics.recordTrain("ok", res.Duration)

	if e.opts.Store != nil {
		if err := e.save(ctx, snap); err != nil {
			log.Warn().Err(err).Msg("failed to persist models")
		} else {
			res.Persisted = true
		}
	}

	log.Info().
		Dur("duration", res.Duration).
		Bool("collaborative", res.Collaborative).
		Bool("content", res.Content).
		Int("interactions", res.Interactions).
		Int("products", res.Products).
		Int("searches", res.Searches).
		Bool("persisted", res.Persisted).
		Msg("training completed")
	return res, nil
}

// loadTrainingData 并发拉取交互、商品与搜索记录；搜索记录只用于统计，失败时仅告警。
func (e *Engine) loadTrainingData(ctx context.Context, now time.Time, log zerolog.Logger) (*trainingData, error) {
	var data trainingData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.opts.Feed.Interactions(gctx)
		if err != nil {
			return err
		}
		data.interactions = rows
		return nil
	})
	g.Go(func() error {
		rows, err := e.opts.Feed.Products(gctx)
		if err != nil {
			return err
		}
		data.products = rows
		return nil
	})
	g.Go(func() error {
		rows, err := e.opts.Feed.Searches(gctx, now.Add(-e.opts.SearchWindow))
		if err != nil {
			log.Warn().Err(err).Msg("failed to load searches")
			return nil
		}
		data.searches = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, "engine: load training data", err)
	}
	return &data, nil
}

func (e *Engine) install(snap *model.Snapshot) {
	e.snap.Store(snap)
	e.metrics.LastTrained.Set(float64(snap.TrainedAt.Unix()))
}

// Save 把当前快照写入 Store。
func (e *Engine) Save(ctx context.Context) error {
	if e.opts.Store == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "engine: no store configured")
	}
	snap := e.snap.Load()
	if !snap.Trained() {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "engine: no trained models to save")
	}
	return e.save(ctx, snap)
}

func (e *Engine) save(ctx context.Context, snap *model.Snapshot) error {
	blob, err := model.Encode(snap)
	if err != nil {
		return err
	}
	if err := e.opts.Store.Set(ctx, e.opts.StateKey, blob); err != nil {
		return core.WrapDomainError(core.ModuleStore, core.ErrorCodePersistence, "engine: write snapshot", err)
	}
	return nil
}

// LoadSaved 只从 Store 读回快照，不会训练。
// 没有快照时返回 store 的 NOT_FOUND，快照损坏时返回 PERSISTENCE。
func (e *Engine) LoadSaved(ctx context.Context) error {
	snap, err := e.load(ctx)
	if err != nil {
		return err
	}
	e.install(snap)
	e.log.Info().
		Time("trained_at", snap.TrainedAt).
		Str("run_id", snap.Metadata.RunID).
		Msg("models restored")
	e.warnIfStale(snap)
	return nil
}

// Restore 从 Store 读回快照；没有快照或快照无法读回时改为训练一次。
// 训练也失败时返回 UNAVAILABLE。
func (e *Engine) Restore(ctx context.Context) error {
	err := e.LoadSaved(ctx)
	if err == nil {
		return nil
	}

	if core.IsStoreNotFound(err) {
		e.log.Info().Msg("no saved models, training")
	} else {
		e.log.Warn().Err(err).Msg("saved models unreadable, training")
	}
	if _, err := e.Train(ctx); err != nil {
		return core.WrapDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "engine: models not available", err)
	}
	return nil
}

// Reset 删除 Store 中的快照并卸载内存中的模型，之后的推荐会重新训练。
func (e *Engine) Reset(ctx context.Context) error {
	if e.opts.Store != nil {
		if err := e.opts.Store.Delete(ctx, e.opts.StateKey); err != nil {
			return core.WrapDomainError(core.ModuleStore, core.ErrorCodePersistence, "engine: delete snapshot", err)
		}
	}
	e.snap.Store(nil)
	e.metrics.LastTrained.Set(0)
	e.log.Info().Str("key", e.opts.StateKey).Msg("models reset")
	return nil
}

func (e *Engine) load(ctx context.Context) (*model.Snapshot, error) {
	if e.opts.Store == nil {
		return nil, core.ErrStoreNotFound
	}
	blob, err := e.opts.Store.Get(ctx, e.opts.StateKey)
	if err != nil {
		return nil, err
	}
	return model.Decode(blob)
}

// ensureReady 返回当前快照；从未加载过时先 Restore。
func (e *Engine) ensureReady(ctx context.Context) (*model.Snapshot, error) {
	if snap := e.snap.Load(); snap != nil {
		return snap, nil
	}
	e.readyMu.Lock()
	defer e.readyMu.Unlock()
	if snap := e.snap.Load(); snap != nil {
		return snap, nil
	}
	if err := e.Restore(ctx); err != nil {
		return nil, err
	}
	return e.snap.Load(), nil
}

// warnIfStale 每个快照只告警一次。
func (e *Engine) warnIfStale(snap *model.Snapshot) {
	if !snap.Stale(e.opts.Now(), e.opts.StaleAfter) {
		return
	}
	if e.staleWarned.Swap(snap) == snap {
		return
	}
	e.log.Warn().
		Time("trained_at", snap.TrainedAt).
		Float64("age_days", snap.Age(e.opts.Now()).Hours()/24).
		Msg("models are stale, consider retraining")
}

// resultLabel 把错误映射为指标中的 result 标签。
func resultLabel(err error) string {
	if de := core.GetDomainError(err); de != nil {
		return strings.ToLower(de.Code)
	}
	return "error"
}
