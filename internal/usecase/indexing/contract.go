package indexing

import (
	"context"

	"github.com/kailas-cloud/sieve/internal/domain"
	domchunk "github.com/kailas-cloud/sieve/internal/domain/chunk"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
)

// CollectionReader reads collections and the documents chunks belong to.
type CollectionReader interface {
	GetCollection(ctx context.Context, name string) (domcol.Collection, error)
	// Documents returns the named documents; unknown names are ignored.
	Documents(ctx context.Context, collection string, names []string) ([]domdoc.Document, error)
}

// ChunkStore writes embedded chunks to the vector index.
type ChunkStore interface {
	EnsureIndex(ctx context.Context, col domcol.Collection) error
	Upsert(ctx context.Context, collection string, chunks []domchunk.Chunk) error
}

// Models resolves the embedder bound to a collection.
type Models interface {
	Embedder(name string) (domain.EmbedderBinding, error)
}
