package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput signals a malformed request payload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidExpression signals a malformed metadata expression.
	ErrInvalidExpression = errors.New("invalid expression")
	// ErrInvalidFilter signals a malformed filter specification.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidTemplate signals a template that cannot be evaluated.
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrTypeMismatch signals an ordered comparison between incompatible values.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrDomain signals a computation on values outside the function domain.
	ErrDomain = errors.New("domain error")

	// ErrModelNotRegistered signals a model name missing from the registry.
	ErrModelNotRegistered = errors.New("model not registered")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankerError signals a reranker failure.
	ErrRerankerError = errors.New("reranker error")
	// ErrGenerationFailed signals a generative model failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// DomainError is raised when the weighted score of a document cannot be
// computed because score*hits*pages is not positive.
type DomainError struct {
	Document string
	Product  float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: weighted score of %q undefined for product %g",
		ErrDomain.Error(), e.Document, e.Product)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// NewDomainError creates a weighted score domain error.
func NewDomainError(document string, product float64) error {
	return &DomainError{Document: document, Product: product}
}
