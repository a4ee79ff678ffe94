package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// errorHandlers are tried in order; rate limiting is checked before the
// provider failures it may wrap.
var errorHandlers = []errorHandler{
	domainErrorHandler,
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound, false),
	sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists, false),
	sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed, true),
	sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, CodeInvalidFilter, true),
	sentinelHandler(domain.ErrInvalidExpression, http.StatusBadRequest, CodeInvalidFilter, true),
	sentinelHandler(domain.ErrInvalidTemplate, http.StatusBadRequest, CodeInvalidTemplate, true),
	sentinelHandler(domain.ErrTypeMismatch, http.StatusUnprocessableEntity, CodeInvalidTemplate, true),
	sentinelHandler(domain.ErrModelNotRegistered, http.StatusUnprocessableEntity, CodeModelNotFound, true),
	sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited, false),
	sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, CodeVectorDimension, false),
	sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingFailed, false),
	sentinelHandler(domain.ErrRerankerError, http.StatusBadGateway, CodeRerankerFailed, false),
	sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, CodeGenerationFailed, false),
}

// sentinelHandler matches a single sentinel error. With detail the full
// error text is returned, otherwise only the sentinel text.
func sentinelHandler(sentinel error, status int, code ErrorCode, detail bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if detail {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

// domainErrorHandler reports a non-positive weighted score with the
// offending document.
func domainErrorHandler(w http.ResponseWriter, err error) bool {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return false
	}
	writeError(w, http.StatusUnprocessableEntity, CodeScoreDomain, de.Error())
	return true
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

// errorCode classifies err for per-item batch results.
func errorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeValidationFailed
	case errors.Is(err, domain.ErrModelNotRegistered):
		return CodeModelNotFound
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return CodeVectorDimension
	case errors.Is(err, domain.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return CodeEmbeddingFailed
	default:
		return CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
