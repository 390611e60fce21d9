package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalFallsBackToWordVectorWhenTFIDFIsZero(t *testing.T) {
	l := NewLocal(16)
	// Untrained TF-IDF always yields the zero vector, so even an untrained
	// Local must fall back to the (also untrained, also zero) word vector
	// embedder rather than returning the TF-IDF method name.
	v, method := l.Embed("hello team")
	assert.Equal(t, MethodSimple, method)
	assert.True(t, IsZero(v))
}

func TestLocalEmptyInputYieldsZeroVectorMethod(t *testing.T) {
	l := NewLocal(128)
	v, method := l.Embed("   ")
	assert.Equal(t, MethodZeroVector, method)
	assert.Len(t, v, 128)
	assert.True(t, IsZero(v))
}

func TestLocalPrefersTFIDFWhenTrainedAndNonZero(t *testing.T) {
	l := NewLocal(16)
	corpus := []string{
		"deploy service now",
		"deploy service again",
		"deploy service today",
		"rollback database migration",
	}
	l.Fit(corpus)

	v, method := l.Embed("deploy service now")
	assert.Equal(t, MethodTFIDF, method)
	assert.False(t, IsZero(v))
}
