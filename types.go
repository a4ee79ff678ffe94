package sieve

import (
	"context"
	"time"
)

// EmbeddingResult is the output of an Embedder.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Reranker scores passages against a query; higher is more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// GenerationRequest is one prompt sent to a Generator.
type GenerationRequest struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float32
}

// GenerationResult is the generated text with token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Generator answers prompts.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// Collection is a named set of documents bound to an embedding model.
type Collection struct {
	Name          string
	EmbedderModel string
	RerankerModel string
	VectorDim     int
	CreatedAt     time.Time
}

// Document is a catalog entry searched through its chunks.
type Document struct {
	Name         string
	Path         string
	RelativePath string
	Category     string
	// Metadata is a JSON-like tree: maps, lists, strings, numbers, bools.
	Metadata    map[string]any
	UseInSearch bool
}

// Chunk is one indexed text fragment of a document page.
type Chunk struct {
	DocumentName string
	RelativePath string
	Language     string
	PageNumber   int
	TextNumber   int
	Text         string
}

// ItemResult is the outcome of one chunk of an IndexChunks call.
type ItemResult struct {
	ID  string
	Err error
}

// Hit is one retrieved chunk.
type Hit struct {
	DocumentName string
	RelativePath string
	PageNumber   int
	TextNumber   int
	Score        float64
	Language     string
	// Text includes the neighbouring chunks of the same page.
	Text string
}

// DocumentStats is the relevance of one document within a response.
type DocumentStats struct {
	DocumentName        string
	RelativePath        string
	Hits                int
	Pages               []int
	Score               float64
	ScoreWeighted       float64
	ScoreWeightedScaled float64
}

// SearchResult is a stored search response.
type SearchResult struct {
	ID           string
	Hits         []Hit
	Stats        []DocumentStats
	Templates    []string
	ShortCircuit bool
	Reason       string
}

// Answer is a generated answer with the documents it was grounded on.
type Answer struct {
	Text      string
	Documents []string
	Generated bool
}
