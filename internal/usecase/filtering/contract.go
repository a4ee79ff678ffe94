package filtering

import (
	"context"

	"github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/template"
	"github.com/kailas-cloud/sieve/internal/usecase/templating"
)

// Catalog gives read access to documents and templates.
type Catalog interface {
	// SearchableDocuments lists documents of a collection with use_in_search set.
	SearchableDocuments(ctx context.Context, collection string) ([]document.Document, error)
	// Templates returns the templates with the given ids; unknown ids are ignored.
	Templates(ctx context.Context, ids []int64) ([]template.Template, error)
}

// TemplateMatcher resolves which documents templates admit.
type TemplateMatcher interface {
	Match(ctx context.Context, templates []template.Template, docs []document.Document) (templating.Result, error)
	Strict() bool
}
