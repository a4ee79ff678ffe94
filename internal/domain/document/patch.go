package document

import (
	"fmt"

	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

// Patch is a partial catalog update. Nil fields are unchanged.
// A nil value in Metadata deletes that top-level key.
type Patch struct {
	category    *string
	useInSearch *bool
	metadata    map[string]*metadata.Value
}

// NewPatch validates and creates a Patch. At least one field must be provided.
func NewPatch(category *string, useInSearch *bool, meta map[string]*metadata.Value) (Patch, error) {
	if category == nil && useInSearch == nil && len(meta) == 0 {
		return Patch{}, fmt.Errorf("at least one field must be provided")
	}
	for k := range meta {
		if k == "" {
			return Patch{}, fmt.Errorf("metadata key must not be empty")
		}
	}
	return Patch{category: category, useInSearch: useInSearch, metadata: meta}, nil
}

// Category returns the new category, or nil if unchanged.
func (p Patch) Category() *string { return p.category }

// UseInSearch returns the new flag, or nil if unchanged.
func (p Patch) UseInSearch() *bool { return p.useInSearch }

// Metadata returns metadata updates (nil value = delete).
func (p Patch) Metadata() map[string]*metadata.Value { return p.metadata }
