package chi

import (
	"time"

	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
)

// ErrorCode is a machine readable error class of the API.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeNotFound         ErrorCode = "not_found"
	CodeAlreadyExists    ErrorCode = "already_exists"
	CodeInvalidFilter    ErrorCode = "invalid_filter"
	CodeInvalidTemplate  ErrorCode = "invalid_template"
	CodeVectorDimension  ErrorCode = "vector_dim_mismatch"
	CodeModelNotFound    ErrorCode = "model_not_registered"
	CodeScoreDomain      ErrorCode = "score_domain_error"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeEmbeddingFailed  ErrorCode = "embedding_provider_error"
	CodeRerankerFailed   ErrorCode = "reranker_error"
	CodeGenerationFailed ErrorCode = "generation_failed"
	CodeInternal         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CreateCollectionRequest is the body of POST /collections.
type CreateCollectionRequest struct {
	Name          string `json:"name"`
	EmbedderModel string `json:"embedder_model"`
	RerankerModel string `json:"reranker_model,omitempty"`
	IndexType     string `json:"index_type,omitempty"`
}

// Collection is the wire form of a collection.
type Collection struct {
	Name          string    `json:"name"`
	EmbedderModel string    `json:"embedder_model"`
	RerankerModel string    `json:"reranker_model,omitempty"`
	IndexType     string    `json:"index_type"`
	VectorDim     int       `json:"vector_dimensions"`
	CreatedAt     time.Time `json:"created_at"`
	Revision      int       `json:"revision"`
}

// Document is the wire form of a catalog document.
type Document struct {
	Name         string         `json:"name"`
	Path         string         `json:"path,omitempty"`
	RelativePath string         `json:"relative_path,omitempty"`
	Category     string         `json:"category,omitempty"`
	Metadata     metadata.Value `json:"metadata"`
	UseInSearch  *bool          `json:"use_in_search,omitempty"`
}

// UpsertDocumentsRequest is the body of POST /collections/{collection}/documents.
type UpsertDocumentsRequest struct {
	Documents []Document `json:"documents"`
}

// PatchDocumentRequest is the body of PATCH .../documents/{document}.
// A null metadata value removes the key.
type PatchDocumentRequest struct {
	Category    *string                    `json:"category,omitempty"`
	UseInSearch *bool                      `json:"use_in_search,omitempty"`
	Metadata    map[string]*metadata.Value `json:"metadata,omitempty"`
}

// Chunk is the wire form of an indexed text fragment.
type Chunk struct {
	DocumentName string `json:"document_name"`
	RelativePath string `json:"relative_path,omitempty"`
	Language     string `json:"language,omitempty"`
	PageNumber   int    `json:"page_number"`
	TextNumber   int    `json:"text_number"`
	Text         string `json:"text"`
}

// IndexChunksRequest is the body of POST /collections/{collection}/chunks.
type IndexChunksRequest struct {
	Chunks []Chunk `json:"chunks"`
}

// BatchResultItem is the per-chunk outcome of an indexing request.
type BatchResultItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Stage  string         `json:"stage,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchResponse lists per-item outcomes.
type BatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// SearchRequest is the body of POST /collections/{collection}/search.
type SearchRequest struct {
	Query    string      `json:"query"`
	Language string      `json:"language,omitempty"`
	Filters  filter.Spec `json:"filters"`
	MinScore float64     `json:"min_score,omitempty"`
}

// AnswerRequest is the body of POST /responses/{id}/answer.
type AnswerRequest struct {
	Instruction                string  `json:"instruction"`
	RankMass                   float64 `json:"rank_mass,omitempty"`
	DocNamePrefix              bool    `json:"doc_name_prefix,omitempty"`
	DontAnswerWithoutDocuments bool    `json:"dont_answer_without_documents,omitempty"`
	SystemPrompt               string  `json:"system_prompt,omitempty"`
}

// Template is the wire form of a stored template.
type Template struct {
	ID                    int64                     `json:"id"`
	Name                  string                    `json:"name"`
	Display               string                    `json:"display,omitempty"`
	Active                bool                      `json:"is_active"`
	Grammar               string                    `json:"grammar_type,omitempty"`
	DataConnector         map[string]metadata.Value `json:"data_connector,omitempty"`
	DataFilterExpressions metadata.Value            `json:"data_filter_expressions"`
	StructuredIfExists    bool                      `json:"structured_response_if_exists"`
	StructuredFields      []string                  `json:"structured_response_data_fields,omitempty"`
	HasSystemPrompt       bool                      `json:"has_system_prompt"`
}

// ImportTemplatesResponse reports an accepted template file.
type ImportTemplatesResponse struct {
	TemplateName string `json:"template_name"`
	Grammar      string `json:"grammar_type,omitempty"`
	Imported     int    `json:"imported"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
