package recall

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// CollaborativeOptions 是协同过滤模型的训练参数，零值字段取默认值。
type CollaborativeOptions struct {
	// MaxLatentFactors 隐因子数上限，k = min(MaxLatentFactors, min(用户数, 商品数) - 1)
	MaxLatentFactors int

	// SimilarUsers 打分时使用的相似用户数
	SimilarUsers int

	Seed            uint64
	Oversamples     int
	PowerIterations int
}

func (o CollaborativeOptions) withDefaults() CollaborativeOptions {
	def := &core.DefaultRecallConfig{}
	if o.MaxLatentFactors <= 0 {
		o.MaxLatentFactors = def.DefaultMaxLatentFactors()
	}
	if o.SimilarUsers <= 0 {
		o.SimilarUsers = def.DefaultTopKSimilarUsers()
	}
	if o.Seed == 0 {
		o.Seed = def.DefaultSeed()
	}
	if o.Oversamples <= 0 {
		o.Oversamples = 10
	}
	if o.PowerIterations <= 0 {
		o.PowerIterations = 5
	}
	return o
}

// CollaborativeModel 是基于截断 SVD 的用户协同过滤模型（u2u → u2i）。
//
// 算法流程：
//  1. 用户行向量 → k 维隐空间（x · Vk）
//  2. 计算目标用户与其他用户的余弦相似度
//  3. 取 TopK 相似用户（不含自身）
//  4. 相似用户交互过的商品按 相似度 × 交互权重 累加打分
//
// 训练后只读，可并发查询。
type CollaborativeModel struct {
	matrix       *InteractionMatrix
	components   *mat.Dense // 商品数 × k
	latent       *mat.Dense // 用户数 × k
	similarUsers int
}

// FitCollaborative 在交互矩阵上训练协同过滤模型。
// 矩阵为空或 k < 1 时返回 INSUFFICIENT_DATA。
func FitCollaborative(matrix *InteractionMatrix, opts CollaborativeOptions) (*CollaborativeModel, error) {
	opts = opts.withDefaults()
	if matrix == nil {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData,
			"collaborative: no interactions")
	}
	users, products := matrix.Dims()
	k := min(opts.MaxLatentFactors, min(users, products)-1)
	if k < 1 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData,
			fmt.Sprintf("collaborative: %d users x %d products is too small to factorize", users, products))
	}

	svd := TruncatedSVD{
		Components:      k,
		Oversamples:     opts.Oversamples,
		PowerIterations: opts.PowerIterations,
		Seed:            opts.Seed,
	}
	components, _, err := svd.Fit(matrix.Weights)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleTrain, core.ErrorCodeInternalError,
			"collaborative: factorization failed", err)
	}

	m := &CollaborativeModel{
		matrix:       matrix,
		components:   components,
		similarUsers: opts.SimilarUsers,
	}
	m.project()
	return m, nil
}

func (m *CollaborativeModel) project() {
	var latent mat.Dense
	latent.Mul(m.matrix.Weights, m.components)
	m.latent = &latent
}

// LatentFactors 返回隐因子数 k。
func (m *CollaborativeModel) LatentFactors() int {
	if m == nil || m.components == nil {
		return 0
	}
	_, k := m.components.Dims()
	return k
}

// Matrix 返回训练所用的交互矩阵。
func (m *CollaborativeModel) Matrix() *InteractionMatrix {
	if m == nil {
		return nil
	}
	return m.matrix
}

// Components 返回商品空间到隐空间的投影矩阵（商品数 × k）。
func (m *CollaborativeModel) Components() mat.Matrix {
	return m.components
}

// SimilarUsers 返回与 userID 最相似的 topK 个其他用户及相似度，按相似度降序。
// 未知用户返回 nil。
func (m *CollaborativeModel) SimilarUsers(userID int64, topK int) []Scored {
	if m == nil || m.latent == nil {
		return nil
	}
	row, ok := m.matrix.Users.Index(userID)
	if !ok {
		return nil
	}
	target := m.latent.RawRowView(row)

	users, _ := m.matrix.Dims()
	sims := make([]Scored, 0, users-1)
	for i := 0; i < users; i++ {
		if i == row {
			continue
		}
		sims = append(sims, Scored{
			ID:    m.matrix.Users.ID(i),
			Score: cosine(target, m.latent.RawRowView(i)),
		})
	}
	return topScored(sims, topK)
}

// Score 返回 userID 的全部候选商品及累加分数，按分数降序。
// 目标用户自己交互过的商品不在此处排除。
func (m *CollaborativeModel) Score(userID int64) []Scored {
	if m == nil {
		return nil
	}
	neighbors := m.SimilarUsers(userID, m.similarUsers)
	if len(neighbors) == 0 {
		return nil
	}

	_, products := m.matrix.Dims()
	scores := make([]float64, products)
	seen := make([]bool, products)
	for _, nb := range neighbors {
		row, _ := m.matrix.Users.Index(nb.ID)
		weights := m.matrix.Weights.RawRowView(row)
		for c, w := range weights {
			if w <= 0 {
				continue
			}
			scores[c] += nb.Score * w
			seen[c] = true
		}
	}

	cands := make([]Scored, 0, products)
	for c := 0; c < products; c++ {
		if seen[c] {
			cands = append(cands, Scored{ID: m.matrix.Products.ID(c), Score: scores[c]})
		}
	}
	return topScored(cands, 0)
}

// RecommendForUser 返回 userID 的 TopN 推荐商品；n <= 0 返回全部候选。
// 未知用户或模型未训练时返回空列表。
func (m *CollaborativeModel) RecommendForUser(userID int64, n int) []int64 {
	return scoredIDs(topScored(m.Score(userID), n))
}

// InteractedProducts 返回 userID 权重为正的商品（按 ID 升序）。
func (m *CollaborativeModel) InteractedProducts(userID int64) []int64 {
	if m == nil {
		return nil
	}
	row, ok := m.matrix.Users.Index(userID)
	if !ok {
		return nil
	}
	var out []int64
	for c, w := range m.matrix.Weights.RawRowView(row) {
		if w > 0 {
			out = append(out, m.matrix.Products.ID(c))
		}
	}
	return out
}

// collaborativeState 是 CollaborativeModel 的编码形态；隐空间投影在解码时重算。
type collaborativeState struct {
	Matrix       *InteractionMatrix
	Components   []float64
	Factors      int
	SimilarUsers int
}

func (m *CollaborativeModel) GobEncode() ([]byte, error) {
	st := collaborativeState{
		Matrix:       m.matrix,
		Components:   denseData(m.components),
		Factors:      m.LatentFactors(),
		SimilarUsers: m.similarUsers,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *CollaborativeModel) GobDecode(data []byte) error {
	var st collaborativeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	if st.Matrix == nil {
		return fmt.Errorf("recall: collaborative state without matrix")
	}
	_, products := st.Matrix.Dims()
	components, err := newDense(products, st.Factors, st.Components)
	if err != nil {
		return err
	}
	if components == nil {
		return fmt.Errorf("recall: collaborative state without components")
	}
	*m = CollaborativeModel{
		matrix:       st.Matrix,
		components:   components,
		similarUsers: st.SimilarUsers,
	}
	m.project()
	return nil
}

// CollaborativeRecall 是协同过滤召回源，同时实现 Source 与 Node。
type CollaborativeRecall struct {
	Model *CollaborativeModel

	// TopK 返回的候选数，<= 0 返回全部候选（交给后续 Filter / TopN 截断）
	TopK int
}

func (r *CollaborativeRecall) Name() string        { return "recall.collaborative" }
func (r *CollaborativeRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *CollaborativeRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *CollaborativeRecall) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Model == nil || rctx == nil {
		return nil, nil
	}
	return scoredItems(topScored(r.Model.Score(rctx.UserID), r.TopK), SourceCollaborative), nil
}
