package chi

import (
	"context"

	dombatch "github.com/kailas-cloud/sieve/internal/domain/batch"
	domchunk "github.com/kailas-cloud/sieve/internal/domain/chunk"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/search/request"
	domresp "github.com/kailas-cloud/sieve/internal/domain/search/response"
	"github.com/kailas-cloud/sieve/internal/domain/search/stats"
	"github.com/kailas-cloud/sieve/internal/domain/template"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
	cataloguc "github.com/kailas-cloud/sieve/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/sieve/internal/usecase/health"
)

// Catalog administers collections, documents and templates.
type Catalog interface {
	CreateCollection(ctx context.Context, p cataloguc.CollectionParams) (domcol.Collection, error)
	GetCollection(ctx context.Context, name string) (domcol.Collection, error)
	ListCollections(ctx context.Context) ([]domcol.Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	UpsertDocuments(ctx context.Context, collection string, docs []domdoc.Document) error
	PatchDocument(ctx context.Context, collection, name string, p domdoc.Patch) (domdoc.Document, error)
	ImportTemplates(ctx context.Context, grammar template.GrammarType, tpls []template.Template) error
	ListTemplates(ctx context.Context) ([]template.Template, error)
}

// Searcher runs queries and serves stored responses.
type Searcher interface {
	Search(ctx context.Context, collection string, req *request.Request) (*domresp.Response, error)
	Response(ctx context.Context, id string) (*domresp.Response, error)
	Stats(ctx context.Context, id string, minHits, minPages int) (*stats.Table, error)
}

// Answerer generates answers over stored responses.
type Answerer interface {
	Answer(ctx context.Context, req answeruc.Request) (answeruc.Result, error)
}

// Indexer embeds and stores chunks.
type Indexer interface {
	IndexChunks(ctx context.Context, collection string, chunks []domchunk.Chunk) []dombatch.Result
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
