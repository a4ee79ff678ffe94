package domain

import (
	"context"
	"fmt"
)

// Reranker rescores passages against a query with a cross-encoder.
// The returned slice is aligned with passages.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// GenerationRequest is a single chat-style generation call.
type GenerationRequest struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float32
}

// GenerationResult carries the generated text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces an answer from a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// EmbedderModel describes a configured embedding model.
type EmbedderModel struct {
	Name       string
	Path       string
	VectorSize int
	Device     string
}

// RerankerModel describes a configured cross-encoder model.
type RerankerModel struct {
	Name   string
	Path   string
	Device string
}

// EmbedderBinding pairs a model description with the client serving it.
type EmbedderBinding struct {
	Model  EmbedderModel
	Client Embedder
}

// RerankerBinding pairs a model description with the client serving it.
type RerankerBinding struct {
	Model  RerankerModel
	Client Reranker
}

// ModelRegistry holds the active embedding and reranking models.
// It is built once at startup and is read-only afterwards.
type ModelRegistry struct {
	embedders map[string]EmbedderBinding
	rerankers map[string]RerankerBinding
}

// NewModelRegistry validates bindings and creates a registry.
func NewModelRegistry(embedders []EmbedderBinding, rerankers []RerankerBinding) (*ModelRegistry, error) {
	r := &ModelRegistry{
		embedders: make(map[string]EmbedderBinding, len(embedders)),
		rerankers: make(map[string]RerankerBinding, len(rerankers)),
	}
	for _, b := range embedders {
		if b.Model.Name == "" {
			return nil, fmt.Errorf("embedder model name is required")
		}
		if b.Model.VectorSize <= 0 {
			return nil, fmt.Errorf("embedder %q: vector size must be positive", b.Model.Name)
		}
		if b.Client == nil {
			return nil, fmt.Errorf("embedder %q: client is required", b.Model.Name)
		}
		if _, dup := r.embedders[b.Model.Name]; dup {
			return nil, fmt.Errorf("embedder %q: %w", b.Model.Name, ErrAlreadyExists)
		}
		r.embedders[b.Model.Name] = b
	}
	for _, b := range rerankers {
		if b.Model.Name == "" {
			return nil, fmt.Errorf("reranker model name is required")
		}
		if b.Client == nil {
			return nil, fmt.Errorf("reranker %q: client is required", b.Model.Name)
		}
		if _, dup := r.rerankers[b.Model.Name]; dup {
			return nil, fmt.Errorf("reranker %q: %w", b.Model.Name, ErrAlreadyExists)
		}
		r.rerankers[b.Model.Name] = b
	}
	return r, nil
}

// Embedder looks up an active embedder by model name.
func (r *ModelRegistry) Embedder(name string) (EmbedderBinding, error) {
	b, ok := r.embedders[name]
	if !ok {
		return EmbedderBinding{}, fmt.Errorf("embedder %q: %w", name, ErrModelNotRegistered)
	}
	return b, nil
}

// Reranker looks up an active reranker by model name.
func (r *ModelRegistry) Reranker(name string) (RerankerBinding, error) {
	b, ok := r.rerankers[name]
	if !ok {
		return RerankerBinding{}, fmt.Errorf("reranker %q: %w", name, ErrModelNotRegistered)
	}
	return b, nil
}

// EmbedderNames returns names of all active embedders.
func (r *ModelRegistry) EmbedderNames() []string {
	names := make([]string, 0, len(r.embedders))
	for n := range r.embedders {
		names = append(names, n)
	}
	return names
}

// HealthCheckers returns every bound client that can report its health.
func (r *ModelRegistry) HealthCheckers() map[string]HealthChecker {
	out := make(map[string]HealthChecker)
	for n, b := range r.embedders {
		if hc, ok := b.Client.(HealthChecker); ok {
			out["embedder:"+n] = hc
		}
	}
	for n, b := range r.rerankers {
		if hc, ok := b.Client.(HealthChecker); ok {
			out["reranker:"+n] = hc
		}
	}
	return out
}
