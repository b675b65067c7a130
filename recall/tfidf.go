package recall

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TFIDF 是词频-逆文档频率向量化器。
//
// 文本处理：
//   - 转小写，按非 [字母/数字/下划线] 切分，保留长度 >= 2 的词
//   - 过滤英文停用词
//   - 词表取语料总词频最高的 MaxFeatures 个词（同频按字母序），词表按字母序编号
//   - idf = ln((1+n)/(1+df)) + 1，行向量做 L2 归一化
type TFIDF struct {
	MaxFeatures int
	StopWords   map[string]struct{}
}

// NewTFIDF 返回使用内置英文停用词表的向量化器。
func NewTFIDF(maxFeatures int) *TFIDF {
	return &TFIDF{MaxFeatures: maxFeatures, StopWords: englishStopWords}
}

// Tokenize 返回 text 中保留的词（按出现顺序，可重复）。
func (v *TFIDF) Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := v.StopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FitTransform 在 docs 上建立词表，返回词表与每篇文档的 L2 归一化向量（行优先）。
func (v *TFIDF) FitTransform(docs []string) ([]string, [][]float64) {
	tokens := make([][]string, len(docs))
	total := make(map[string]int)
	for i, d := range docs {
		tokens[i] = v.Tokenize(d)
		for _, t := range tokens[i] {
			total[t]++
		}
	}

	vocab := make([]string, 0, len(total))
	for t := range total {
		vocab = append(vocab, t)
	}
	slices.SortFunc(vocab, func(a, b string) int {
		if c := cmp.Compare(total[b], total[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if v.MaxFeatures > 0 && len(vocab) > v.MaxFeatures {
		vocab = vocab[:v.MaxFeatures]
	}
	slices.Sort(vocab)

	index := make(map[string]int, len(vocab))
	for i, t := range vocab {
		index[t] = i
	}

	counts := make([][]float64, len(docs))
	df := make([]int, len(vocab))
	for i, toks := range tokens {
		row := make([]float64, len(vocab))
		for _, t := range toks {
			if j, ok := index[t]; ok {
				if row[j] == 0 {
					df[j]++
				}
				row[j]++
			}
		}
		counts[i] = row
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for j := range vocab {
		idf[j] = math.Log((1+n)/(1+float64(df[j]))) + 1
	}
	for _, row := range counts {
		var norm float64
		for j := range row {
			row[j] *= idf[j]
			norm += row[j] * row[j]
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for j := range row {
			row[j] /= norm
		}
	}
	return vocab, counts
}
