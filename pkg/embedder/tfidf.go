// Package embedder implements the deterministic local embedders: TF-IDF and
// averaged word vectors, plus a facade that routes between them.
package embedder

import (
	"math"
	"sync"

	"github.com/chatmind-dev/chatmind/pkg/tokenize"
	"github.com/chatmind-dev/chatmind/pkg/vecmath"
)

// MinDimension is the floor applied to the TF-IDF output length regardless
// of how small the fitted vocabulary is.
const MinDimension = 100

// TFIDF is a term-frequency / inverse-document-frequency transformer. The
// vocabulary is restricted to tokens that appear in at least two documents
// and in at most 80% of the corpus, which drops both one-off tokens and
// near-universal ones before they can dominate the vector.
type TFIDF struct {
	mu         sync.RWMutex
	vocab      []string
	vocabIndex map[string]int
	idf        map[string]float64
	dimension  int
	fitted     bool
}

// NewTFIDF returns an untrained TF-IDF transformer.
func NewTFIDF() *TFIDF {
	return &TFIDF{dimension: MinDimension}
}

// Fit trains the vocabulary and IDF weights on corpus.
func (t *TFIDF) Fit(corpus []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(corpus)
	docFreq := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, tok := range tokenize.Tokenize(doc) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			docFreq[tok]++
		}
	}

	var vocab []string
	idf := make(map[string]float64)
	maxDF := 0.8 * float64(n)
	for tok, df := range docFreq {
		if df < 2 || float64(df) > maxDF {
			continue
		}
		vocab = append(vocab, tok)
		idf[tok] = math.Log(float64(n) / float64(df))
	}
	sortStrings(vocab)

	index := make(map[string]int, len(vocab))
	for i, tok := range vocab {
		index[tok] = i
	}

	dim := len(vocab)
	if dim < MinDimension {
		dim = MinDimension
	}

	t.vocab = vocab
	t.vocabIndex = index
	t.idf = idf
	t.dimension = dim
	t.fitted = n > 0
}

// Trained reports whether Fit has run on a non-empty corpus.
func (t *TFIDF) Trained() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fitted
}

// Dimension returns the output vector length.
func (t *TFIDF) Dimension() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dimension
}

// Transform produces text's TF-IDF vector. An untrained transformer, a
// zero-vocabulary fit, or text with no recognised tokens all yield the zero
// vector at the current dimension.
func (t *TFIDF) Transform(text string) []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]float64, t.dimension)
	if !t.fitted || len(t.vocab) == 0 {
		return out
	}

	tf := make(map[string]int)
	for _, tok := range tokenize.Tokenize(text) {
		tf[tok]++
	}
	for tok, count := range tf {
		i, ok := t.vocabIndex[tok]
		if !ok {
			continue
		}
		out[i] = float64(count) * t.idf[tok]
	}

	return vecmath.Normalise(out)
}

// IsZero reports whether v is the all-zero vector.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
