// Package chunk stores embedded chunks in the vector store and runs
// filtered KNN search over them.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/sieve/internal/db"
	domchunk "github.com/kailas-cloud/sieve/internal/domain/chunk"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/search/predicate"
)

// store is the consumer interface for chunks (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Query is a filtered vector search over one collection.
// Empty Candidates or RelativePaths mean no restriction on that tag.
type Query struct {
	Collection    string
	Vector        []float32
	Candidates    []string
	RelativePaths []string
	Language      string
	TopK          int
}

// Repo implements chunk storage and vector search.
type Repo struct {
	store     store
	keyPrefix string
	hnsw      HNSWConfig
}

// New creates a chunk repository. keyPrefix namespaces every key and index.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, hnsw: HNSWConfig{M: 32, EFConstruct: 400}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the chunk index of a collection unless it exists.
func (r *Repo) EnsureIndex(ctx context.Context, col domcol.Collection) error {
	name := r.indexName(col.Name())
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}
	def, err := buildIndex(name, r.collectionPrefix(col.Name()), col, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// DropIndex removes the chunk index of a collection. Stored chunks are kept.
func (r *Repo) DropIndex(ctx context.Context, collection string) error {
	if err := r.store.DropIndex(ctx, r.indexName(collection)); err != nil {
		return fmt.Errorf("drop index %s: %w", collection, err)
	}
	return nil
}

// Upsert writes chunks in one pipelined round-trip. Every chunk must
// carry its vector.
func (r *Repo) Upsert(ctx context.Context, collection string, chunks []domchunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		if len(c.Vector()) == 0 {
			return fmt.Errorf("chunk %s has no vector", c.ID())
		}
		items[i] = db.HashSetItem{Key: r.key(collection, c.ID()), Fields: toHash(c)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset chunks %s: %w", collection, err)
	}
	return nil
}

// Search runs a KNN query restricted to the candidate documents and the
// language, most similar first.
func (r *Repo) Search(ctx context.Context, q Query) ([]hit.Hit, error) {
	p, err := buildPredicate(q)
	if err != nil {
		return nil, err
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: r.indexName(q.Collection),
		Filter:    p,
		Vector:    q.Vector,
		K:         q.TopK,
		ReturnFields: []string{
			fieldDocument, fieldRelativePath, fieldLanguage,
			fieldPage, fieldText, fieldContent,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", q.Collection, err)
	}
	if sr == nil {
		return nil, nil
	}

	hits := make([]hit.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		h, err := fromHash(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("parse chunk %s: %w", e.Key, err)
		}
		h.Score = e.Score
		hits = append(hits, h)
	}
	return hits, nil
}

// Surrounding attaches up to n neighbouring chunks on each side of every
// hit, looked up by text number on the same document page. Missing
// neighbours are skipped.
func (r *Repo) Surrounding(ctx context.Context, collection string, hits []hit.Hit, n int) ([]hit.Hit, error) {
	if n <= 0 || len(hits) == 0 {
		return hits, nil
	}

	type ref struct {
		hitIdx     int
		textNumber int
		left       bool
	}
	var (
		keys []string
		refs []ref
	)
	for i, h := range hits {
		for d := n; d >= 1; d-- {
			if tn := h.TextNumber - d; tn >= 0 {
				keys = append(keys, r.key(collection, domchunk.ID(h.DocumentName, h.PageNumber, tn)))
				refs = append(refs, ref{hitIdx: i, textNumber: tn, left: true})
			}
		}
		for d := 1; d <= n; d++ {
			tn := h.TextNumber + d
			keys = append(keys, r.key(collection, domchunk.ID(h.DocumentName, h.PageNumber, tn)))
			refs = append(refs, ref{hitIdx: i, textNumber: tn})
		}
	}

	found, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall neighbours %s: %w", collection, err)
	}

	out := make([]hit.Hit, len(hits))
	copy(out, hits)
	for i, m := range found {
		text, ok := m[fieldContent]
		if !ok {
			continue
		}
		ref := refs[i]
		c := hit.Chunk{TextNumber: ref.textNumber, Text: text}
		if ref.left {
			out[ref.hitIdx].LeftContext = append(out[ref.hitIdx].LeftContext, c)
		} else {
			out[ref.hitIdx].RightContext = append(out[ref.hitIdx].RightContext, c)
		}
	}
	return out, nil
}

func buildPredicate(q Query) (predicate.Predicate, error) {
	var must []predicate.Condition
	if len(q.Candidates) > 0 {
		c, err := predicate.NewIn(predicate.KeyDocument, q.Candidates...)
		if err != nil {
			return predicate.Predicate{}, fmt.Errorf("document condition: %w", err)
		}
		must = append(must, c)
	}
	if len(q.RelativePaths) > 0 {
		c, err := predicate.NewIn(predicate.KeyRelativePath, q.RelativePaths...)
		if err != nil {
			return predicate.Predicate{}, fmt.Errorf("relative path condition: %w", err)
		}
		must = append(must, c)
	}
	if q.Language != "" {
		c, err := predicate.NewIn(predicate.KeyLanguage, q.Language)
		if err != nil {
			return predicate.Predicate{}, fmt.Errorf("language condition: %w", err)
		}
		must = append(must, c)
	}
	return predicate.New(must, nil)
}

// Key patterns: {prefix}chunk:{collection}:{document}:{page}:{text}, {prefix}{collection}:chunks:idx

func (r *Repo) key(collection, id string) string {
	return r.collectionPrefix(collection) + id
}

func (r *Repo) collectionPrefix(collection string) string {
	return fmt.Sprintf("%schunk:%s:", r.keyPrefix, collection)
}

func (r *Repo) indexName(collection string) string {
	return fmt.Sprintf("%s%s:chunks:idx", r.keyPrefix, collection)
}

func toHash(c domchunk.Chunk) map[string]string {
	return map[string]string{
		fieldDocument:     c.DocumentName(),
		fieldRelativePath: c.RelativePath(),
		fieldLanguage:     c.Language(),
		fieldPage:         strconv.Itoa(c.PageNumber()),
		fieldText:         strconv.Itoa(c.TextNumber()),
		fieldContent:      c.Text(),
		db.VectorField:    db.EncodeVector(c.Vector()),
	}
}

func fromHash(m map[string]string) (hit.Hit, error) {
	page, err := strconv.Atoi(m[fieldPage])
	if err != nil {
		return hit.Hit{}, fmt.Errorf("page_number: %w", err)
	}
	text, err := strconv.Atoi(m[fieldText])
	if err != nil {
		return hit.Hit{}, fmt.Errorf("text_number: %w", err)
	}
	h := hit.Hit{
		DocumentName: m[fieldDocument],
		RelativePath: m[fieldRelativePath],
		Language:     m[fieldLanguage],
		PageNumber:   page,
		TextNumber:   text,
		Text:         m[fieldContent],
	}
	return h, h.Validate()
}
