package chunk

import (
	"github.com/kailas-cloud/sieve/internal/db"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	"github.com/kailas-cloud/sieve/internal/domain/search/predicate"
)

// Hash field names of a stored chunk.
const (
	fieldDocument     = predicate.KeyDocument
	fieldRelativePath = predicate.KeyRelativePath
	fieldLanguage     = predicate.KeyLanguage
	fieldPage         = "page_number"
	fieldText         = "text_number"
	fieldContent      = "text"
)

// tagSeparator splits multi-valued tags. Document names and paths may
// contain commas, so the default separator is not usable.
const tagSeparator = "|"

// buildIndex creates the chunk index of a collection. Document names and
// paths are matched case-sensitively; the vector index follows the
// collection index type.
func buildIndex(indexName, prefix string, col domcol.Collection, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(indexName).
		Prefix(prefix).
		TagWithOpts(fieldDocument, tagSeparator, true).
		TagWithOpts(fieldRelativePath, tagSeparator, true).
		Tag(fieldLanguage).
		Numeric(fieldPage).
		Numeric(fieldText)

	if col.IndexType() == domcol.IndexFlat {
		b = b.VectorFlat(db.VectorField, col.VectorDim(), db.DistanceCosine, 0)
	} else {
		b = b.VectorHNSW(db.VectorField, col.VectorDim(), db.DistanceCosine, hnsw.M, hnsw.EFConstruct)
	}
	return b.Build()
}
