package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmind-dev/chatmind/pkg/kvcodec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, func(v []float64) bool { return len(v) > 0 })
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	vector := []float64{1, 2, 3}
	meta := kvcodec.Metadata{"text": "hello"}

	require.NoError(t, s.Put("id1", vector, meta))

	rec, err := s.Get("id1")
	require.NoError(t, err)
	assert.Equal(t, "id1", rec.ID)
	assert.Equal(t, vector, rec.Vector)
	assert.Equal(t, meta, rec.Metadata)
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutEmptyIDRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Put("", []float64{1}, nil)
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestPutInvalidVectorRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Put("id1", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidVector)
}

func TestStoreErrorCarriesOp(t *testing.T) {
	s := newTestStore(t)
	err := s.Put("", []float64{1}, nil)

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "put", serr.Op)
}

func TestPutIsIdempotentInRegistry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("id1", []float64{1}, nil))
	require.NoError(t, s.Put("id1", []float64{2}, nil))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec, err := s.Get("id1")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, rec.Vector)
}

func TestDeleteRemovesRecordAndRegistryEntry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("id1", []float64{1}, nil))
	require.NoError(t, s.Delete("id1"))

	_, err := s.Get("id1")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCountEqualsRegistryCardinality(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(string(rune('a'+i)), []float64{float64(i)}, nil))
	}
	require.NoError(t, s.Delete("b"))

	count, err := s.Count()
	require.NoError(t, err)
	ids, err := s.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, len(ids), count)
	assert.Equal(t, 4, count)
}

func TestPutBatchBestEffort(t *testing.T) {
	s := newTestStore(t)
	entries := map[string]struct {
		Vector []float64
		Meta   kvcodec.Metadata
	}{
		"good1": {Vector: []float64{1}},
		"good2": {Vector: []float64{2}},
		"bad":   {Vector: nil},
	}
	n := s.PutBatch(entries)
	assert.Equal(t, 2, n)
}
