package document

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

// MaxNameLength bounds document names.
const MaxNameLength = 512

// Document is a catalog entry (immutable value object). Its name is unique
// within a collection and is the key vector hits refer to.
type Document struct {
	name         string
	path         string
	relativePath string
	category     string
	metadata     metadata.Value
	useInSearch  bool
}

// New validates and creates a Document. Metadata must be a map or null.
func New(
	name, path, relativePath, category string,
	meta metadata.Value, useInSearch bool,
) (Document, error) {
	if strings.TrimSpace(name) == "" {
		return Document{}, fmt.Errorf("document name is required")
	}
	if len(name) > MaxNameLength {
		return Document{}, fmt.Errorf("document name too long (max %d)", MaxNameLength)
	}
	if !meta.IsNull() && !meta.IsMap() {
		return Document{}, fmt.Errorf("document %q: metadata must be an object", name)
	}
	return Document{
		name:         name,
		path:         path,
		relativePath: relativePath,
		category:     category,
		metadata:     meta,
		useInSearch:  useInSearch,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	name, path, relativePath, category string,
	meta metadata.Value, useInSearch bool,
) Document {
	return Document{
		name: name, path: path, relativePath: relativePath, category: category,
		metadata: meta, useInSearch: useInSearch,
	}
}

// Name returns the document name.
func (d Document) Name() string { return d.name }

// Path returns the source location of the document.
func (d Document) Path() string { return d.path }

// RelativePath returns the path relative to the collection root.
func (d Document) RelativePath() string { return d.relativePath }

// Category returns the document category.
func (d Document) Category() string { return d.category }

// Metadata returns the metadata tree.
func (d Document) Metadata() metadata.Value { return d.metadata }

// UseInSearch reports whether the document takes part in filtered search.
func (d Document) UseInSearch() bool { return d.useInSearch }

// Apply returns a copy with the patch applied.
func (d Document) Apply(p Patch) Document {
	out := d
	if p.category != nil {
		out.category = *p.category
	}
	if p.useInSearch != nil {
		out.useInSearch = *p.useInSearch
	}
	if len(p.metadata) > 0 {
		merged := make(map[string]metadata.Value, d.metadata.Len()+len(p.metadata))
		for _, k := range d.metadata.Keys() {
			v, _ := d.metadata.Get(k)
			merged[k] = v
		}
		for k, v := range p.metadata {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = *v
		}
		out.metadata = metadata.Map(merged)
	}
	return out
}
