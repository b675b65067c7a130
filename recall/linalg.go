package recall

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// denseData 以行优先顺序拷贝矩阵数据。
func denseData(d *mat.Dense) []float64 {
	if d == nil {
		return nil
	}
	r, c := d.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, d.RawRowView(i)...)
	}
	return out
}

func newDense(r, c int, data []float64) (*mat.Dense, error) {
	if r == 0 || c == 0 {
		if len(data) != 0 {
			return nil, fmt.Errorf("recall: matrix %dx%d with %d values", r, c, len(data))
		}
		return nil, nil
	}
	if len(data) != r*c {
		return nil, fmt.Errorf("recall: matrix %dx%d with %d values", r, c, len(data))
	}
	return mat.NewDense(r, c, data), nil
}

// cosine 返回两个向量的余弦相似度，任一向量为零向量时返回 0。
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Scored 是带分数的商品。
type Scored struct {
	ID    int64
	Score float64
}

// topScored 按分数降序稳定排序后截取前 n 个（n <= 0 表示全部）。
// 入参需已按下标升序排列，以保证同分时下标小者在前。
func topScored(cands []Scored, n int) []Scored {
	slices.SortStableFunc(cands, func(a, b Scored) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

func scoredIDs(cands []Scored) []int64 {
	out := make([]int64, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}
