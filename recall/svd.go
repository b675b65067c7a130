package recall

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// TruncatedSVD 是随机化截断 SVD（随机投影 + 幂迭代 + 小矩阵精确分解）。
// 相同 Seed 与相同输入得到相同结果。
type TruncatedSVD struct {
	// Components 保留的奇异分量数 k
	Components int

	// Oversamples 随机投影的额外维度，默认 10
	Oversamples int

	// PowerIterations 幂迭代次数，默认 5
	PowerIterations int

	Seed uint64
}

// Fit 分解 x（m×n），返回 n×k 的分量矩阵 Vk 与前 k 个奇异值（降序）。
// 投影到隐空间为 x · Vk。
func (s TruncatedSVD) Fit(x mat.Matrix) (*mat.Dense, []float64, error) {
	m, n := x.Dims()
	k := s.Components
	if k < 1 || k > min(m, n) {
		return nil, nil, fmt.Errorf("recall: svd components %d out of range for %dx%d", k, m, n)
	}
	oversamples := s.Oversamples
	if oversamples <= 0 {
		oversamples = 10
	}
	iters := s.PowerIterations
	if iters < 0 {
		iters = 0
	}
	l := min(k+oversamples, m, n)

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed))
	omega := mat.NewDense(n, l, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < l; j++ {
			omega.Set(i, j, rng.NormFloat64())
		}
	}

	var y mat.Dense
	y.Mul(x, omega)
	q := orthonormalize(&y)
	for i := 0; i < iters; i++ {
		var z mat.Dense
		z.Mul(x.T(), q)
		qz := orthonormalize(&z)

		var yy mat.Dense
		yy.Mul(x, qz)
		q = orthonormalize(&yy)
	}

	var b mat.Dense
	b.Mul(q.T(), x)

	var svd mat.SVD
	if !svd.Factorize(&b, mat.SVDThin) {
		return nil, nil, errors.New("recall: svd factorization failed")
	}
	var v mat.Dense
	svd.VTo(&v)

	components := mat.DenseCopyOf(v.Slice(0, n, 0, k))
	flipSigns(components)
	values := svd.Values(nil)[:k]
	return components, values, nil
}

// orthonormalize 返回与 a 列空间相同的列正交基（a 需满足 行数 >= 列数）。
func orthonormalize(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	return mat.DenseCopyOf(q.Slice(0, r, 0, c))
}

// flipSigns 使每个分量中绝对值最大的元素为正，消除奇异向量的符号不确定性。
func flipSigns(v *mat.Dense) {
	r, c := v.Dims()
	for j := 0; j < c; j++ {
		maxAbs, sign := -1.0, 1.0
		for i := 0; i < r; i++ {
			if a := math.Abs(v.At(i, j)); a > maxAbs {
				maxAbs = a
				sign = math.Copysign(1, v.At(i, j))
			}
		}
		if sign < 0 {
			for i := 0; i < r; i++ {
				v.Set(i, j, -v.At(i, j))
			}
		}
	}
}
