// Package filtering turns a filter specification into the set of documents
// a vector search is restricted to.
package filtering

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
	"github.com/kailas-cloud/sieve/internal/domain/template"
	"github.com/kailas-cloud/sieve/internal/logger"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	// Candidates restricts the search; empty means unrestricted unless
	// ShortCircuit is set.
	Candidates []string
	// RelativePaths additionally restricts the search to chunks stored
	// under one of these paths; empty means any path.
	RelativePaths []string
	// ShortCircuit marks a filter that cannot be satisfied: the query has
	// no results. This is an outcome, not an error.
	ShortCircuit bool
	// Reason explains a short-circuit.
	Reason string
	// Operands are the resolved filter categories in combination order.
	Operands []Operand
	// Templates lists the requested templates that admitted documents.
	Templates []template.Template
	// Prompts holds the non-blank system prompts of Templates.
	Prompts []string
	// Documents indexes the searchable documents loaded during resolution.
	Documents map[string]document.Document
}

// Restricted reports whether the search must be limited to Candidates.
func (r Resolution) Restricted() bool { return len(r.Candidates) > 0 }

// Resolver resolves filter specifications against the catalog.
type Resolver struct {
	catalog Catalog
	matcher TemplateMatcher
}

// New creates a Resolver.
func New(catalog Catalog, matcher TemplateMatcher) *Resolver {
	return &Resolver{catalog: catalog, matcher: matcher}
}

// Resolve computes the candidate document set of spec within a collection.
//
// Every specified category resolves to a name list; the lists are reduced
// with AND or OR as the spec says. With AND, a category that admits
// nothing voids the query. Whatever the operator, a query that specified
// filters but ends with no candidates is short-circuited too. Relative
// paths are not a category: they narrow the vector search.
func (r *Resolver) Resolve(ctx context.Context, collection string, spec filter.Spec) (Resolution, error) {
	if r.matcher.Strict() {
		if err := spec.Validate(); err != nil {
			return Resolution{}, fmt.Errorf("validate filter: %w", err)
		}
	}
	if spec.IsEmpty() {
		return Resolution{}, nil
	}

	docs, err := r.catalog.SearchableDocuments(ctx, collection)
	if err != nil {
		return Resolution{}, fmt.Errorf("list documents: %w", err)
	}
	res := Resolution{
		Documents:     make(map[string]document.Document, len(docs)),
		RelativePaths: spec.RelativePaths(),
	}
	for _, d := range docs {
		res.Documents[d.Name()] = d
	}

	and := spec.UseAndOperator()
	categories := Operand{Category: Categories, Specified: len(spec.Categories()) > 0}
	if categories.Specified {
		categories.Names = namesWhere(docs, func(d document.Document) bool {
			return slices.Contains(spec.Categories(), d.Category())
		})
	}
	documents := Operand{Category: Documents, Specified: len(spec.Documents()) > 0, Names: spec.Documents()}
	contains := Operand{Category: RelativePathContains, Specified: len(spec.RelativePathContains()) > 0}
	if contains.Specified {
		contains.Names = namesWhere(docs, func(d document.Document) bool {
			for _, s := range spec.RelativePathContains() {
				if strings.Contains(d.RelativePath(), s) {
					return true
				}
			}
			return false
		})
	}

	templates := Operand{Category: Templates, Specified: len(spec.Templates()) > 0}
	if templates.Specified {
		tpls, err := r.catalog.Templates(ctx, spec.Templates())
		if err != nil {
			return Resolution{}, fmt.Errorf("load templates: %w", err)
		}
		matched, err := r.matcher.Match(ctx, tpls, docs)
		if err != nil {
			return Resolution{}, fmt.Errorf("match templates: %w", err)
		}
		templates.Names = matched.Admitted
		res.Templates = matched.Templates
		res.Prompts = matched.Prompts

		if spec.OnlyTemplateDocuments() {
			if len(templates.Names) == 0 {
				res.Operands = []Operand{templates}
				return shortCircuit(ctx, res, "no template documents"), nil
			}
			categories, documents = cleared(categories), cleared(documents)
			res.RelativePaths = nil
		}
	}

	meta := Operand{Category: MetadataFilters, Specified: len(spec.MetadataFilters()) > 0}
	if meta.Specified {
		meta.Names, err = r.metadataNames(spec, docs)
		if err != nil {
			return Resolution{}, err
		}
	}

	res.Operands = []Operand{categories, documents, contains, templates, meta}
	if !slices.ContainsFunc(res.Operands, func(o Operand) bool { return o.Specified }) {
		return res, nil
	}
	if and {
		for _, o := range res.Operands {
			if o.Unsatisfied() {
				return shortCircuit(ctx, res, fmt.Sprintf("%s admitted no documents", o.Category)), nil
			}
		}
	}
	res.Candidates = Combine(res.Operands, and)
	if len(res.Candidates) == 0 {
		return shortCircuit(ctx, res, "filters admitted no documents"), nil
	}
	return res, nil
}

// metadataNames applies each expression to every document. Expressions
// admitting nothing are skipped; the rest are combined with the spec's
// operator.
func (r *Resolver) metadataNames(spec filter.Spec, docs []document.Document) ([]string, error) {
	var parts []Operand
	for i, f := range spec.MetadataFilters() {
		if f.Err() != nil {
			continue
		}
		expr := f.Expression()
		var names []string
		for _, d := range docs {
			ok, err := expr.Evaluate(d.Metadata())
			if err != nil {
				if r.matcher.Strict() {
					return nil, fmt.Errorf("metadata_filters[%d] on document %q: %w", i, d.Name(), err)
				}
				continue
			}
			if ok {
				names = append(names, d.Name())
			}
		}
		if len(names) > 0 {
			parts = append(parts, Operand{Category: MetadataFilters, Specified: true, Names: names})
		}
	}
	return Combine(parts, spec.UseAndOperator()), nil
}

func namesWhere(docs []document.Document, keep func(document.Document) bool) []string {
	var out []string
	for _, d := range docs {
		if keep(d) {
			out = append(out, d.Name())
		}
	}
	return out
}

func cleared(o Operand) Operand {
	return Operand{Category: o.Category}
}

func shortCircuit(ctx context.Context, res Resolution, reason string) Resolution {
	logger.FromContext(ctx).Debug("filter short-circuited", zap.String("reason", reason))
	res.Candidates = nil
	res.ShortCircuit = true
	res.Reason = reason
	return res
}
