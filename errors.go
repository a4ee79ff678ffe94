package sieve

import "github.com/kailas-cloud/sieve/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrAlreadyExists          = domain.ErrAlreadyExists
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrInvalidExpression      = domain.ErrInvalidExpression
	ErrInvalidFilter          = domain.ErrInvalidFilter
	ErrInvalidTemplate        = domain.ErrInvalidTemplate
	ErrModelNotRegistered     = domain.ErrModelNotRegistered
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrRerankerError          = domain.ErrRerankerError
	ErrGenerationFailed       = domain.ErrGenerationFailed
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrDomain                 = domain.ErrDomain
)
