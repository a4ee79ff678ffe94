package search

import (
	"context"

	"github.com/kailas-cloud/sieve/internal/domain"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	domresp "github.com/kailas-cloud/sieve/internal/domain/search/response"
	"github.com/kailas-cloud/sieve/internal/repository/chunk"
	"github.com/kailas-cloud/sieve/internal/usecase/filtering"
)

// Resolver turns a filter into candidate documents.
type Resolver interface {
	Resolve(ctx context.Context, collection string, spec filter.Spec) (filtering.Resolution, error)
}

// Catalog reads collections and documents.
type Catalog interface {
	GetCollection(ctx context.Context, name string) (domcol.Collection, error)
	Documents(ctx context.Context, collection string, names []string) ([]domdoc.Document, error)
}

// Chunks runs vector search and fetches neighbouring chunks.
type Chunks interface {
	Search(ctx context.Context, q chunk.Query) ([]hit.Hit, error)
	Surrounding(ctx context.Context, collection string, hits []hit.Hit, n int) ([]hit.Hit, error)
}

// Responses persists search responses.
type Responses interface {
	Save(ctx context.Context, r *domresp.Response) error
	Get(ctx context.Context, id string) (*domresp.Response, error)
}

// Models resolves the embedder and reranker bound to a collection.
type Models interface {
	Embedder(name string) (domain.EmbedderBinding, error)
	Reranker(name string) (domain.RerankerBinding, error)
}
