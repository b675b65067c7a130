package recall

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// ContentOptions 是内容模型的训练参数。
type ContentOptions struct {
	// MaxFeatures 词表大小，默认 100
	MaxFeatures int
}

// ContentModel 是基于商品文本 TF-IDF 向量的内容模型。
// 每个可推荐商品一行向量，行已 L2 归一化；训练后只读。
type ContentModel struct {
	vocabulary []string
	products   *IndexMap
	vectors    *mat.Dense // 商品数 × 词表大小
}

// FitContent 对可推荐商品（在售且审核通过）的 名称+描述+类目 文本建模。
// 没有可推荐商品或词表为空时返回 INSUFFICIENT_DATA。
func FitContent(products []core.Product, opts ContentOptions) (*ContentModel, error) {
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = (&core.DefaultRecallConfig{}).DefaultMaxFeatures()
	}

	text := make(map[int64]string, len(products))
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		if !p.Eligible() {
			continue
		}
		if _, dup := text[p.ProductID]; dup {
			continue
		}
		text[p.ProductID] = p.Text()
		ids = append(ids, p.ProductID)
	}
	if len(ids) == 0 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData,
			"content: no eligible products")
	}

	index := NewIndexMap(ids)
	docs := make([]string, index.Len())
	for i := range docs {
		docs[i] = text[index.ID(i)]
	}

	vocab, rows := NewTFIDF(opts.MaxFeatures).FitTransform(docs)
	if len(vocab) == 0 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData,
			"content: empty vocabulary")
	}
	vectors := mat.NewDense(len(rows), len(vocab), nil)
	for i, row := range rows {
		vectors.SetRow(i, row)
	}

	return &ContentModel{
		vocabulary: vocab,
		products:   index,
		vectors:    vectors,
	}, nil
}

// Vocabulary 返回词表（按字母序）。
func (m *ContentModel) Vocabulary() []string {
	if m == nil {
		return nil
	}
	return m.vocabulary
}

// Products 返回有向量的商品映射。
func (m *ContentModel) Products() *IndexMap {
	if m == nil {
		return nil
	}
	return m.products
}

// Vector 返回商品的词向量。
func (m *ContentModel) Vector(productID int64) ([]float64, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.products.Index(productID)
	if !ok {
		return nil, false
	}
	return m.vectors.RawRowView(i), true
}

// ScoreForHistory 以历史商品向量的均值为中心，对其他商品按余弦相似度降序打分。
// 历史商品本身不参与排序；历史中没有任何商品有向量时返回 nil。
func (m *ContentModel) ScoreForHistory(history []int64) []Scored {
	if m == nil {
		return nil
	}
	_, width := m.vectors.Dims()
	centroid := make([]float64, width)
	inHistory := make(map[int]struct{}, len(history))
	for _, id := range history {
		i, ok := m.products.Index(id)
		if !ok {
			continue
		}
		if _, dup := inHistory[i]; dup {
			continue
		}
		inHistory[i] = struct{}{}
		for j, x := range m.vectors.RawRowView(i) {
			centroid[j] += x
		}
	}
	if len(inHistory) == 0 {
		return nil
	}
	for j := range centroid {
		centroid[j] /= float64(len(inHistory))
	}

	cands := make([]Scored, 0, m.products.Len())
	for i := 0; i < m.products.Len(); i++ {
		if _, skip := inHistory[i]; skip {
			continue
		}
		cands = append(cands, Scored{ID: m.products.ID(i), Score: cosine(centroid, m.vectors.RawRowView(i))})
	}
	return topScored(cands, 0)
}

// RecommendForHistory 返回与历史最相似的 TopN 商品；n <= 0 返回全部。
func (m *ContentModel) RecommendForHistory(history []int64, n int) []int64 {
	return scoredIDs(topScored(m.ScoreForHistory(history), n))
}

// ScoreSimilar 对 productID 以外的全部商品按余弦相似度降序打分。
// 商品没有向量时返回 NOT_FOUND。
func (m *ContentModel) ScoreSimilar(productID int64) ([]Scored, error) {
	target, ok := m.Vector(productID)
	if !ok {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotFound,
			fmt.Sprintf("content: product %d has no fitted vector", productID))
	}
	cands := make([]Scored, 0, m.products.Len())
	for i := 0; i < m.products.Len(); i++ {
		id := m.products.ID(i)
		if id == productID {
			continue
		}
		cands = append(cands, Scored{ID: id, Score: cosine(target, m.vectors.RawRowView(i))})
	}
	return topScored(cands, 0), nil
}

// SimilarTo 返回与 productID 最相似的 TopN 商品（不含自身）。
func (m *ContentModel) SimilarTo(productID int64, n int) ([]int64, error) {
	scored, err := m.ScoreSimilar(productID)
	if err != nil {
		return nil, err
	}
	return scoredIDs(topScored(scored, n)), nil
}

type contentState struct {
	Vocabulary []string
	Products   *IndexMap
	Vectors    []float64
}

func (m *ContentModel) GobEncode() ([]byte, error) {
	st := contentState{
		Vocabulary: m.vocabulary,
		Products:   m.products,
		Vectors:    denseData(m.vectors),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ContentModel) GobDecode(data []byte) error {
	var st contentState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	vectors, err := newDense(st.Products.Len(), len(st.Vocabulary), st.Vectors)
	if err != nil {
		return err
	}
	if vectors == nil {
		return fmt.Errorf("recall: content state without vectors")
	}
	*m = ContentModel{
		vocabulary: st.Vocabulary,
		products:   st.Products,
		vectors:    vectors,
	}
	return nil
}

// ContentRecall 是基于用户历史的内容召回源。
// 历史由 HistoryFeed 按需提供，最多取 HistoryLimit 个去重商品。
type ContentRecall struct {
	Model        *ContentModel
	History      core.HistoryFeed
	HistoryLimit int

	// TopK 返回的候选数，<= 0 返回全部
	TopK int
}

func (r *ContentRecall) Name() string        { return "recall.content" }
func (r *ContentRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *ContentRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ContentRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Model == nil || r.History == nil || rctx == nil {
		return nil, nil
	}
	limit := r.HistoryLimit
	if limit <= 0 {
		limit = (&core.DefaultRecallConfig{}).DefaultHistoryLimit()
	}
	history, err := r.History.UserHistory(ctx, rctx.UserID, limit)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable,
			"content: load user history", err)
	}
	if len(history) > limit {
		history = history[:limit]
	}
	return scoredItems(topScored(r.Model.ScoreForHistory(history), r.TopK), SourceContent), nil
}

// SimilarRecall 是 i2i 内容召回源：召回与 ProductID 文本最相似的商品。
type SimilarRecall struct {
	Model     *ContentModel
	ProductID int64
	TopK      int
}

func (r *SimilarRecall) Name() string        { return "recall.similar" }
func (r *SimilarRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *SimilarRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *SimilarRecall) Recall(
	_ context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	scored, err := r.Model.ScoreSimilar(r.ProductID)
	if err != nil {
		return nil, err
	}
	return scoredItems(topScored(scored, r.TopK), SourceContent), nil
}

func scoredItems(scored []Scored, source string) []*core.Item {
	out := make([]*core.Item, 0, len(scored))
	for _, s := range scored {
		it := core.NewItem(s.ID)
		it.Score = s.Score
		it.PutLabel(utils.LabelRecallSource, utils.Label{Value: source, Source: "recall"})
		out = append(out, it)
	}
	return out
}
