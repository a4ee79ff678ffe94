// Package chunk defines an indexed text fragment of a document.
package chunk

import (
	"fmt"
	"strings"
)

// Chunk is one embedded text fragment (immutable value object).
// A chunk is addressed by document, page and text number.
type Chunk struct {
	documentName string
	relativePath string
	language     string
	pageNumber   int
	textNumber   int
	text         string
	vector       []float32
}

// Params are the inputs to New.
type Params struct {
	DocumentName string
	RelativePath string
	Language     string
	PageNumber   int
	TextNumber   int
	Text         string
}

// New validates and creates a Chunk without a vector.
func New(p Params) (Chunk, error) {
	if strings.TrimSpace(p.DocumentName) == "" {
		return Chunk{}, fmt.Errorf("chunk document_name is required")
	}
	if strings.TrimSpace(p.Text) == "" {
		return Chunk{}, fmt.Errorf("chunk %s: text is required", ID(p.DocumentName, p.PageNumber, p.TextNumber))
	}
	if p.PageNumber < 0 || p.TextNumber < 0 {
		return Chunk{}, fmt.Errorf("chunk %q: page and text numbers must not be negative", p.DocumentName)
	}
	return Chunk{
		documentName: p.DocumentName,
		relativePath: p.RelativePath,
		language:     strings.ToLower(strings.TrimSpace(p.Language)),
		pageNumber:   p.PageNumber,
		textNumber:   p.TextNumber,
		text:         p.Text,
	}, nil
}

// ID is the stable identifier of a chunk within a collection.
func ID(documentName string, page, text int) string {
	return fmt.Sprintf("%s:%d:%d", documentName, page, text)
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return ID(c.documentName, c.pageNumber, c.textNumber) }

// DocumentName returns the owning document.
func (c Chunk) DocumentName() string { return c.documentName }

// RelativePath returns the document path relative to the collection root.
func (c Chunk) RelativePath() string { return c.relativePath }

// Language returns the lowercased language code ("" when unknown).
func (c Chunk) Language() string { return c.language }

// PageNumber returns the page the fragment was taken from.
func (c Chunk) PageNumber() int { return c.pageNumber }

// TextNumber returns the position of the fragment on its page.
func (c Chunk) TextNumber() int { return c.textNumber }

// Text returns the fragment text.
func (c Chunk) Text() string { return c.text }

// Vector returns the embedding (nil before indexing).
func (c Chunk) Vector() []float32 { return c.vector }

// WithVector returns a copy carrying the embedding.
func (c Chunk) WithVector(v []float32) Chunk {
	c.vector = v
	return c
}
