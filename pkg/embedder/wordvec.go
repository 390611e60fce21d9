package embedder

import (
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/chatmind-dev/chatmind/pkg/tokenize"
	"github.com/chatmind-dev/chatmind/pkg/vecmath"
)

// DefaultWordVectorDimension is the dense dimension used when none is
// configured.
const DefaultWordVectorDimension = 128

// wordVectorRange bounds each component of a token's fixed random vector.
const wordVectorRange = 0.05

// WordVector is an averaged-word-vector embedder: every vocabulary token is
// assigned a fixed pseudo-random vector, derived deterministically from the
// token's own bytes so the assignment is independent of fit order or corpus
// size, and a document embeds as the L2-normalised mean of its in-vocabulary
// token vectors.
type WordVector struct {
	mu        sync.RWMutex
	dimension int
	vocab     map[string]bool
	vectors   map[string][]float64
	fitted    bool
}

// NewWordVector returns an untrained averaged-word-vector embedder of the
// given dimension.
func NewWordVector(dimension int) *WordVector {
	if dimension <= 0 {
		dimension = DefaultWordVectorDimension
	}
	return &WordVector{
		dimension: dimension,
		vocab:     make(map[string]bool),
		vectors:   make(map[string][]float64),
	}
}

// Fit restricts the vocabulary to tokens occurring at least three times
// across corpus, generating each token's fixed vector on first sight.
func (w *WordVector) Fit(corpus []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	freq := make(map[string]int)
	for _, doc := range corpus {
		for _, tok := range tokenize.Tokenize(doc) {
			freq[tok]++
		}
	}

	w.vocab = make(map[string]bool)
	for tok, count := range freq {
		if count < 3 {
			continue
		}
		w.vocab[tok] = true
		if _, ok := w.vectors[tok]; !ok {
			w.vectors[tok] = tokenVector(tok, w.dimension)
		}
	}
	w.fitted = len(corpus) > 0
}

// Trained reports whether Fit has run on a non-empty corpus.
func (w *WordVector) Trained() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fitted
}

// Dimension returns the output vector length.
func (w *WordVector) Dimension() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dimension
}

// Transform averages the fixed vectors of text's in-vocabulary tokens and
// L2-normalises the result. Text with no in-vocabulary tokens yields the
// zero vector.
func (w *WordVector) Transform(text string) []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	sum := make([]float64, w.dimension)
	count := 0
	for _, tok := range tokenize.Tokenize(text) {
		if !w.vocab[tok] {
			continue
		}
		vec := w.vectors[tok]
		for i, x := range vec {
			sum[i] += x
		}
		count++
	}
	if count == 0 {
		return sum
	}
	for i := range sum {
		sum[i] /= float64(count)
	}
	return vecmath.Normalise(sum)
}

// tokenVector deterministically derives a fixed vector for tok, seeded from
// its FNV-1a hash so the same token always maps to the same vector
// regardless of when or in what order it is first seen.
func tokenVector(tok string, dimension int) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	seed := int64(h.Sum64())
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, dimension)
	for i := range vec {
		vec[i] = (rng.Float64()*2 - 1) * wordVectorRange
	}
	return vec
}
