package recall

import (
	"bytes"
	"encoding/gob"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/shoprec/core"
)

// IndexMap 是 ID 与矩阵下标之间的双向映射。
// 下标按 ID 升序分配，训练产出后随模型一起持久化，服务期不重建。
type IndexMap struct {
	ids []int64
	pos map[int64]int
}

// NewIndexMap 对 ids 去重并升序排序后建立映射，不修改入参。
func NewIndexMap(ids []int64) *IndexMap {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return newIndexMapSorted(sorted)
}

func newIndexMapSorted(ids []int64) *IndexMap {
	pos := make(map[int64]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	return &IndexMap{ids: ids, pos: pos}
}

func (m *IndexMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// Index 返回 id 对应的下标。
func (m *IndexMap) Index(id int64) (int, bool) {
	if m == nil {
		return 0, false
	}
	i, ok := m.pos[id]
	return i, ok
}

// ID 返回下标 i 对应的 id。
func (m *IndexMap) ID(i int) int64 {
	return m.ids[i]
}

// IDs 按下标顺序返回全部 id 的拷贝。
func (m *IndexMap) IDs() []int64 {
	if m == nil {
		return nil
	}
	return slices.Clone(m.ids)
}

func (m *IndexMap) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m.ids); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *IndexMap) GobDecode(data []byte) error {
	var ids []int64
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ids); err != nil {
		return err
	}
	*m = *newIndexMapSorted(ids)
	return nil
}

// InteractionMatrix 是用户 × 商品的稠密交互矩阵。
// 单元格值为 total_quantity + 2 * order_count，行列顺序由 Users / Products 决定。
type InteractionMatrix struct {
	Users    *IndexMap
	Products *IndexMap
	Weights  *mat.Dense
}

// BuildInteractionMatrix 由聚合后的交互记录构建矩阵。
// 输入为空时返回 nil（不是错误），下游协同过滤随之退化为空结果。
// 输入应已按 (用户, 商品) 聚合；同一对出现多次时以最后一条为准。
func BuildInteractionMatrix(interactions []core.Interaction) *InteractionMatrix {
	if len(interactions) == 0 {
		return nil
	}

	userIDs := make([]int64, 0, len(interactions))
	productIDs := make([]int64, 0, len(interactions))
	for _, in := range interactions {
		userIDs = append(userIDs, in.UserID)
		productIDs = append(productIDs, in.ProductID)
	}
	users := NewIndexMap(userIDs)
	products := NewIndexMap(productIDs)

	weights := mat.NewDense(users.Len(), products.Len(), nil)
	for _, in := range interactions {
		r, _ := users.Index(in.UserID)
		c, _ := products.Index(in.ProductID)
		weights.Set(r, c, in.Weight())
	}

	return &InteractionMatrix{
		Users:    users,
		Products: products,
		Weights:  weights,
	}
}

// Dims 返回 (用户数, 商品数)。
func (m *InteractionMatrix) Dims() (int, int) {
	if m == nil {
		return 0, 0
	}
	return m.Users.Len(), m.Products.Len()
}

// Weight 返回 (userID, productID) 的权重，未知 ID 返回 0。
func (m *InteractionMatrix) Weight(userID, productID int64) float64 {
	if m == nil {
		return 0
	}
	r, ok := m.Users.Index(userID)
	if !ok {
		return 0
	}
	c, ok := m.Products.Index(productID)
	if !ok {
		return 0
	}
	return m.Weights.At(r, c)
}

// matrixState 是 InteractionMatrix 的编码形态。
type matrixState struct {
	Users    []int64
	Products []int64
	Data     []float64
}

func (m *InteractionMatrix) GobEncode() ([]byte, error) {
	st := matrixState{
		Users:    m.Users.IDs(),
		Products: m.Products.IDs(),
		Data:     denseData(m.Weights),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *InteractionMatrix) GobDecode(data []byte) error {
	var st matrixState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	users := newIndexMapSorted(st.Users)
	products := newIndexMapSorted(st.Products)
	weights, err := newDense(users.Len(), products.Len(), st.Data)
	if err != nil {
		return err
	}
	*m = InteractionMatrix{Users: users, Products: products, Weights: weights}
	return nil
}
