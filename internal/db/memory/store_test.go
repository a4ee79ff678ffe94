package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/sieve/internal/db"
	"github.com/kailas-cloud/sieve/internal/domain/search/predicate"
)

func chunkIndex(t *testing.T) *db.IndexDefinition {
	t.Helper()
	return db.NewIndex("chunks:idx").
		Prefix("chunk:").
		TagWithOpts("document_name", "|", true).
		Tag("language").
		VectorFlat(db.VectorField, 2, db.DistanceCosine, 0).
		MustBuild()
}

func put(t *testing.T, s *Store, key, doc, lang string, v []float32) {
	t.Helper()
	require.NoError(t, s.HSet(context.Background(), key, map[string]string{
		"document_name": doc,
		"language":      lang,
		db.VectorField:  db.EncodeVector(v),
	}))
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.CreateIndex(context.Background(), chunkIndex(t)))
	put(t, s, "chunk:a:0", "a", "en", []float32{1, 0})
	put(t, s, "chunk:b:0", "b", "en", []float32{0.8, 0.6})
	put(t, s, "chunk:c:0", "c", "de", []float32{0, 1})
	put(t, s, "other:x", "a", "en", []float32{1, 0})
	return s
}

func TestSearchKNN_Ordering(t *testing.T) {
	s := seeded(t)

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "chunks:idx",
		Vector:    []float32{1, 0},
		K:         10,
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)

	keys := []string{res.Entries[0].Key, res.Entries[1].Key, res.Entries[2].Key}
	assert.Equal(t, []string{"chunk:a:0", "chunk:b:0", "chunk:c:0"}, keys)
	assert.InDelta(t, 1.0, res.Entries[0].Score, 1e-6)
	assert.InDelta(t, 0.8, res.Entries[1].Score, 1e-6)
	assert.InDelta(t, 0.0, res.Entries[2].Score, 1e-6)
	assert.NotContains(t, res.Entries[0].Fields, db.VectorField)
}

func TestSearchKNN_OppositeVectorScoresBelowZero(t *testing.T) {
	s := seeded(t)
	put(t, s, "chunk:d:0", "d", "en", []float32{-1, 0})

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "chunks:idx",
		Vector:    []float32{1, 0},
		K:         10,
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 4)

	last := res.Entries[3]
	assert.Equal(t, "chunk:d:0", last.Key)
	assert.InDelta(t, -1.0, last.Score, 1e-6)
}

func TestSearchKNN_K(t *testing.T) {
	s := seeded(t)

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "chunks:idx",
		Vector:    []float32{0, 1},
		K:         1,
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "chunk:c:0", res.Entries[0].Key)
}

func TestSearchKNN_Filter(t *testing.T) {
	s := seeded(t)

	docs, err := predicate.NewIn(predicate.KeyDocument, "b", "c")
	require.NoError(t, err)
	notDE, err := predicate.NewIn(predicate.KeyLanguage, "de")
	require.NoError(t, err)
	p, err := predicate.New([]predicate.Condition{docs}, []predicate.Condition{notDE})
	require.NoError(t, err)

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "chunks:idx",
		Filter:       p,
		Vector:       []float32{1, 0},
		K:            10,
		ReturnFields: []string{"document_name"},
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, map[string]string{"document_name": "b"}, res.Entries[0].Fields)
}

func TestSearchKNN_SkipsDimensionMismatch(t *testing.T) {
	s := seeded(t)
	put(t, s, "chunk:d:0", "d", "en", []float32{1, 0, 0})

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "chunks:idx",
		Vector:    []float32{1, 0},
		K:         10,
	})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
}

func TestSearchKNN_Errors(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "missing", Vector: []float32{1}, K: 1})
	assert.True(t, errors.Is(err, db.ErrIndexNotFound))

	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: "x", K: 1})
	assert.Error(t, err)

	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: "x", Vector: []float32{1}})
	assert.Error(t, err)
}

func TestIndexLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	idx := chunkIndex(t)

	require.NoError(t, s.CreateIndex(ctx, idx))
	assert.ErrorIs(t, s.CreateIndex(ctx, idx), db.ErrIndexExists)

	ok, err := s.IndexExists(ctx, idx.Name)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.DropIndex(ctx, idx.Name))
	assert.ErrorIs(t, s.DropIndex(ctx, idx.Name), db.ErrIndexNotFound)
}

func TestKV_TTL(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, "resp:1", []byte("x"), time.Minute))
	require.NoError(t, s.Set(ctx, "resp:2", []byte("y")))

	got, err := s.Get(ctx, "resp:1")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "resp:1")
	assert.ErrorIs(t, err, db.ErrKeyNotFound)

	got, err = s.Get(ctx, "resp:2")
	require.NoError(t, err)
	assert.Equal(t, "y", string(got))
}

func TestHashes(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.HSetMulti(ctx, []db.HashSetItem{
		{Key: "chunk:a:1", Fields: map[string]string{"text": "one"}},
		{Key: "chunk:a:2", Fields: map[string]string{"text": "two"}},
	}))

	all, err := s.HGetAllMulti(ctx, []string{"chunk:a:1", "chunk:missing"})
	require.NoError(t, err)
	assert.Equal(t, "one", all[0]["text"])
	assert.Empty(t, all[1])

	keys, err := s.Scan(ctx, "chunk:a:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk:a:1", "chunk:a:2"}, keys)

	require.NoError(t, s.Del(ctx, "chunk:a:1"))
	ok, err := s.Exists(ctx, "chunk:a:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncodeVector_RoundTrip(t *testing.T) {
	v := []float32{0.25, -1, 3.5}
	got, err := db.DecodeVector(db.EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = db.DecodeVector("abc")
	assert.Error(t, err)
}
