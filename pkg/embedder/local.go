package embedder

import "strings"

// Method names recorded in a stored record's metadata.
const (
	MethodTFIDF      = "tfidf_local"
	MethodSimple     = "simple_local"
	MethodZeroVector = "zero_vector"
)

// Local wraps both deterministic embedders and applies the fallback rule:
// TF-IDF first, dropping to the averaged-word embedder whenever TF-IDF
// produces the zero vector (an untrained transformer, or text with no
// vocabulary overlap).
type Local struct {
	TFIDF   *TFIDF
	WordVec *WordVector
}

// NewLocal returns a Local embedder with fresh, untrained TF-IDF and
// averaged-word sub-embedders of the given word-vector dimension.
func NewLocal(wordVectorDimension int) *Local {
	return &Local{
		TFIDF:   NewTFIDF(),
		WordVec: NewWordVector(wordVectorDimension),
	}
}

// Fit trains both sub-embedders on the same corpus.
func (l *Local) Fit(corpus []string) {
	l.TFIDF.Fit(corpus)
	l.WordVec.Fit(corpus)
}

// Embed returns text's embedding and the method that produced it. Empty
// (or all-whitespace) input always yields the zero vector at the
// averaged-word embedder's dimension, tagged "zero_vector" rather than
// either local method name.
func (l *Local) Embed(text string) ([]float64, string) {
	if strings.TrimSpace(text) == "" {
		return make([]float64, l.WordVec.Dimension()), MethodZeroVector
	}

	v := l.TFIDF.Transform(text)
	if !IsZero(v) {
		return v, MethodTFIDF
	}
	return l.WordVec.Transform(text), MethodSimple
}
