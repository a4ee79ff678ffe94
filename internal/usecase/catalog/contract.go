package catalog

import (
	"context"

	"github.com/kailas-cloud/sieve/internal/domain"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/template"
)

// Repository defines the storage contract of the catalog.
type Repository interface {
	CreateCollection(ctx context.Context, c domcol.Collection) error
	GetCollection(ctx context.Context, name string) (domcol.Collection, error)
	ListCollections(ctx context.Context) ([]domcol.Collection, error)
	DeleteCollection(ctx context.Context, name string) error

	UpsertDocuments(ctx context.Context, collection string, docs []domdoc.Document) error
	PatchDocument(ctx context.Context, collection, name string, p domdoc.Patch) (domdoc.Document, error)

	UpsertTemplates(ctx context.Context, tpls []template.Template) error
	ReplaceGrammar(ctx context.Context, grammar template.GrammarType, tpls []template.Template) error
	ListTemplates(ctx context.Context) ([]template.Template, error)
}

// IndexManager manages the vector index of a collection.
type IndexManager interface {
	EnsureIndex(ctx context.Context, col domcol.Collection) error
	DropIndex(ctx context.Context, collection string) error
}

// Models checks that the models a collection names are active.
type Models interface {
	Embedder(name string) (domain.EmbedderBinding, error)
	Reranker(name string) (domain.RerankerBinding, error)
}
