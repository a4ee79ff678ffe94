package collection

import (
	"fmt"
	"regexp"
	"time"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IndexType selects the vector index algorithm of a collection.
type IndexType string

const (
	// IndexHNSW is an approximate graph index (default).
	IndexHNSW IndexType = "hnsw"
	// IndexFlat is an exact brute-force index.
	IndexFlat IndexType = "flat"
)

// IsValid checks if the index type is supported.
func (t IndexType) IsValid() bool {
	return t == IndexHNSW || t == IndexFlat
}

// Collection is a named bucket of documents plus the models used to search it
// (immutable value object).
type Collection struct {
	name          string
	embedderModel string
	rerankerModel string
	indexType     IndexType
	vectorDim     int
	createdAt     int64
	revision      int
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Collection.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Embedder model is required, the
// reranker is optional. VectorDim comes from the embedder model and must be > 0.
func New(name, embedderModel, rerankerModel string, indexType IndexType, vectorDim int) (Collection, error) {
	if err := validateName(name); err != nil {
		return Collection{}, err
	}
	if embedderModel == "" {
		return Collection{}, fmt.Errorf("embedder model is required")
	}
	if indexType == "" {
		indexType = IndexHNSW
	}
	if !indexType.IsValid() {
		return Collection{}, fmt.Errorf("invalid index type: %q", indexType)
	}
	if vectorDim <= 0 {
		return Collection{}, fmt.Errorf("vector dimension must be positive")
	}

	return Collection{
		name:          name,
		embedderModel: embedderModel,
		rerankerModel: rerankerModel,
		indexType:     indexType,
		vectorDim:     vectorDim,
		createdAt:     time.Now().UnixMilli(),
		revision:      1,
	}, nil
}

// Reconstruct creates a Collection without validation (storage hydration).
func Reconstruct(
	name, embedderModel, rerankerModel string, indexType IndexType,
	vectorDim int, createdAt int64, revision int,
) Collection {
	if indexType == "" {
		indexType = IndexHNSW
	}
	return Collection{
		name:          name,
		embedderModel: embedderModel,
		rerankerModel: rerankerModel,
		indexType:     indexType,
		vectorDim:     vectorDim,
		createdAt:     createdAt,
		revision:      revision,
	}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// EmbedderModel returns the embedding model name.
func (c Collection) EmbedderModel() string { return c.embedderModel }

// RerankerModel returns the reranker model name ("" when none).
func (c Collection) RerankerModel() string { return c.rerankerModel }

// HasReranker reports whether a reranker is configured.
func (c Collection) HasReranker() bool { return c.rerankerModel != "" }

// IndexType returns the vector index algorithm.
func (c Collection) IndexType() IndexType { return c.indexType }

// VectorDim returns the vector dimension.
func (c Collection) VectorDim() int { return c.vectorDim }

// CreatedAt returns the creation timestamp (unix millis).
func (c Collection) CreatedAt() int64 { return c.createdAt }

// Revision returns the optimistic concurrency version.
func (c Collection) Revision() int { return c.revision }
