// Package chi serves the REST API over a chi router.
package chi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kailas-cloud/sieve/internal/domain"
	dombatch "github.com/kailas-cloud/sieve/internal/domain/batch"
	domchunk "github.com/kailas-cloud/sieve/internal/domain/chunk"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
	"github.com/kailas-cloud/sieve/internal/domain/search/request"
	"github.com/kailas-cloud/sieve/internal/domain/template"
	"github.com/kailas-cloud/sieve/internal/repository/templatefile"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
	cataloguc "github.com/kailas-cloud/sieve/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/sieve/internal/usecase/health"
)

// Default display thresholds of GET /responses/{id}/stats.
const (
	DefaultDisplayMinHits  = 1
	DefaultDisplayMinPages = 1
)

const maxBodyBytes = 32 << 20

// Server holds the HTTP handlers.
type Server struct {
	catalog Catalog
	search  Searcher
	answer  Answerer
	indexer Indexer
	health  HealthChecker

	minHits  int
	minPages int
}

// Option configures a Server.
type Option func(*Server)

// WithDisplayDefaults sets the stats thresholds used when a request omits them.
func WithDisplayDefaults(minHits, minPages int) Option {
	return func(s *Server) {
		if minHits >= 0 {
			s.minHits = minHits
		}
		if minPages >= 0 {
			s.minPages = minPages
		}
	}
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog Catalog, search Searcher, answer Answerer, indexer Indexer, health HealthChecker,
	opts ...Option,
) *Server {
	s := &Server{
		catalog:  catalog,
		search:   search,
		answer:   answer,
		indexer:  indexer,
		health:   health,
		minHits:  DefaultDisplayMinHits,
		minPages: DefaultDisplayMinPages,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/collections", func(r gochi.Router) {
		r.Get("/", s.ListCollections)
		r.Post("/", s.CreateCollection)
		r.Route("/{collection}", func(r gochi.Router) {
			r.Get("/", s.GetCollection)
			r.Delete("/", s.DeleteCollection)
			r.Post("/documents", s.UpsertDocuments)
			r.Patch("/documents/{document}", s.PatchDocument)
			r.Post("/chunks", s.IndexChunks)
			r.Post("/search", s.Search)
		})
	})

	r.Get("/templates", s.ListTemplates)
	r.Post("/templates", s.ImportTemplates)

	r.Route("/responses/{id}", func(r gochi.Router) {
		r.Get("/", s.GetResponse)
		r.Get("/stats", s.ResponseStats)
		r.Post("/answer", s.Answer)
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// CreateCollection handles POST /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "collection name is required")
		return
	}

	col, err := s.catalog.CreateCollection(r.Context(), cataloguc.CollectionParams{
		Name:          req.Name,
		EmbedderModel: req.EmbedderModel,
		RerankerModel: req.RerankerModel,
		IndexType:     domcol.IndexType(req.IndexType),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, collectionToWire(col))
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.catalog.ListCollections(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	items := make([]Collection, len(cols))
	for i, c := range cols {
		items[i] = collectionToWire(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetCollection handles GET /collections/{collection}.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.catalog.GetCollection(r.Context(), gochi.URLParam(r, "collection"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(col.Revision())))
	writeJSON(w, http.StatusOK, collectionToWire(col))
}

// DeleteCollection handles DELETE /collections/{collection}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteCollection(r.Context(), gochi.URLParam(r, "collection")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertDocuments handles POST /collections/{collection}/documents.
func (s *Server) UpsertDocuments(w http.ResponseWriter, r *http.Request) {
	var req UpsertDocumentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	docs := make([]domdoc.Document, len(req.Documents))
	for i, d := range req.Documents {
		doc, err := documentFromWire(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, fmt.Sprintf("documents[%d]: %v", i, err))
			return
		}
		docs[i] = doc
	}

	if err := s.catalog.UpsertDocuments(r.Context(), gochi.URLParam(r, "collection"), docs); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"upserted": len(docs)})
}

// PatchDocument handles PATCH /collections/{collection}/documents/{document}.
func (s *Server) PatchDocument(w http.ResponseWriter, r *http.Request) {
	var req PatchDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := domdoc.NewPatch(req.Category, req.UseInSearch, req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	doc, err := s.catalog.PatchDocument(r.Context(),
		gochi.URLParam(r, "collection"), gochi.URLParam(r, "document"), p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToWire(doc))
}

// IndexChunks handles POST /collections/{collection}/chunks.
func (s *Server) IndexChunks(w http.ResponseWriter, r *http.Request) {
	var req IndexChunksRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "chunks must not be empty")
		return
	}

	chunks := make([]domchunk.Chunk, 0, len(req.Chunks))
	var invalid []dombatch.Result
	for i, c := range req.Chunks {
		ch, err := domchunk.New(domchunk.Params{
			DocumentName: c.DocumentName,
			RelativePath: c.RelativePath,
			Language:     c.Language,
			PageNumber:   c.PageNumber,
			TextNumber:   c.TextNumber,
			Text:         c.Text,
		})
		if err != nil {
			id := domchunk.ID(c.DocumentName, c.PageNumber, c.TextNumber)
			invalid = append(invalid, dombatch.NewError(id, dombatch.StageValidate,
				fmt.Errorf("chunks[%d]: %w: %w", i, domain.ErrInvalidInput, err)))
			continue
		}
		chunks = append(chunks, ch)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	var results []dombatch.Result
	if len(chunks) > 0 {
		results = s.indexer.IndexChunks(ctx, gochi.URLParam(r, "collection"), chunks)
	}
	results = append(results, invalid...)

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, batchToWire(results))
}

// Search handles POST /collections/{collection}/search. Malformed metadata
// expressions are skipped unless ?strict=true rejects them up front.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	req := SearchRequest{Filters: filter.Empty()}
	if !decodeBody(w, r, &req) {
		return
	}
	var strict bool
	if err := runtime.BindQueryParameter("form", true, false, "strict", r.URL.Query(), &strict); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid strict parameter")
		return
	}
	if strict {
		if err := req.Filters.Validate(); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}
	sr, err := request.New(req.Query, req.Language, req.Filters, req.MinScore)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, gochi.URLParam(r, "collection"), &sr)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// ListTemplates handles GET /templates.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.catalog.ListTemplates(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	items := make([]Template, len(tpls))
	for i, t := range tpls {
		items[i] = templateToWire(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ImportTemplates handles POST /templates?format=json|yaml|toml. The body
// is a template configuration file.
func (s *Server) ImportTemplates(w http.ResponseWriter, r *http.Request) {
	format := "json"
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid format parameter")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	f, err := templatefile.Parse(data, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidTemplate, err.Error())
		return
	}
	if err := s.catalog.ImportTemplates(r.Context(), f.Grammar, f.Templates); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportTemplatesResponse{
		TemplateName: f.TemplateName,
		Grammar:      string(f.Grammar),
		Imported:     len(f.Templates),
	})
}

// GetResponse handles GET /responses/{id}.
func (s *Server) GetResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := s.search.Response(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResponseStats handles GET /responses/{id}/stats?min_hits=&min_pages=.
func (s *Server) ResponseStats(w http.ResponseWriter, r *http.Request) {
	minHits, minPages := s.minHits, s.minPages
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "min_hits", q, &minHits); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid min_hits")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "min_pages", q, &minPages); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid min_pages")
		return
	}
	if minHits < 0 || minPages < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "min_hits and min_pages must not be negative")
		return
	}

	t, err := s.search.Stats(r.Context(), gochi.URLParam(r, "id"), minHits, minPages)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Answer handles POST /responses/{id}/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.answer.Answer(ctx, answeruc.Request{
		ResponseID:                 gochi.URLParam(r, "id"),
		Instruction:                req.Instruction,
		RankMass:                   req.RankMass,
		DocNamePrefix:              req.DocNamePrefix,
		DontAnswerWithoutDocuments: req.DontAnswerWithoutDocuments,
		SystemPrompt:               req.SystemPrompt,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func setUsageHeaders(w http.ResponseWriter, u *domain.TokenUsage) {
	if u == nil {
		return
	}
	if u.EmbeddingTokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(u.EmbeddingTokens))
	}
	if u.GenerationTokens > 0 {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(u.GenerationTokens))
	}
}

func routePattern(r *http.Request) string {
	if rc := gochi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

func collectionToWire(c domcol.Collection) Collection {
	return Collection{
		Name:          c.Name(),
		EmbedderModel: c.EmbedderModel(),
		RerankerModel: c.RerankerModel(),
		IndexType:     string(c.IndexType()),
		VectorDim:     c.VectorDim(),
		CreatedAt:     time.UnixMilli(c.CreatedAt()).UTC(),
		Revision:      c.Revision(),
	}
}

func documentFromWire(d Document) (domdoc.Document, error) {
	useInSearch := true
	if d.UseInSearch != nil {
		useInSearch = *d.UseInSearch
	}
	return domdoc.New(d.Name, d.Path, d.RelativePath, d.Category, d.Metadata, useInSearch)
}

func documentToWire(d domdoc.Document) Document {
	use := d.UseInSearch()
	return Document{
		Name:         d.Name(),
		Path:         d.Path(),
		RelativePath: d.RelativePath(),
		Category:     d.Category(),
		Metadata:     d.Metadata(),
		UseInSearch:  &use,
	}
}

func templateToWire(t template.Template) Template {
	return Template{
		ID:                    t.ID(),
		Name:                  t.Name(),
		Display:               t.Display(),
		Active:                t.Active(),
		Grammar:               string(t.Grammar()),
		DataConnector:         t.DataConnector(),
		DataFilterExpressions: t.DataFilterExpressions(),
		StructuredIfExists:    t.StructuredIfExists(),
		StructuredFields:      t.StructuredFields(),
		HasSystemPrompt:       t.HasSystemPrompt(),
	}
}

func batchToWire(results []dombatch.Result) BatchResponse {
	out := BatchResponse{Items: make([]BatchResultItem, len(results))}
	out.Succeeded, out.Failed = dombatch.Tally(results)
	for i, r := range results {
		item := BatchResultItem{ID: r.ID(), Status: string(r.Status()), Stage: string(r.Stage())}
		if r.Err() != nil {
			item.Error = &ErrorResponse{Code: errorCode(r.Err()), Message: r.Err().Error()}
		}
		out.Items[i] = item
	}
	return out
}
