// Package mcp exposes search and answer generation as MCP tools.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/domain/search/request"
	domresp "github.com/kailas-cloud/sieve/internal/domain/search/response"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
	"github.com/kailas-cloud/sieve/internal/version"
)

// DefaultTopK is the number of hits when a tool call does not set top_k.
const DefaultTopK = 5

// Searcher runs queries.
type Searcher interface {
	Search(ctx context.Context, collection string, req *request.Request) (*domresp.Response, error)
}

// Answerer generates answers over stored responses.
type Answerer interface {
	Answer(ctx context.Context, req answeruc.Request) (answeruc.Result, error)
}

// Config holds tool defaults.
type Config struct {
	// DefaultCollection is searched when a call names no collection.
	DefaultCollection string
	DefaultTopK       int
}

// Server is the MCP server of sieve.
type Server struct {
	search Searcher
	answer Answerer
	cfg    Config
	logger *zap.Logger
	server *mcp.Server
}

// NewServer creates an MCP server. answer may be nil when no generator is
// configured; the answer tool is then not registered.
func NewServer(search Searcher, answer Answerer, cfg Config, logger *zap.Logger) (*Server, error) {
	if search == nil {
		return nil, errors.New("mcp: searcher is required")
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	s := &Server{
		search: search,
		answer: answer,
		cfg:    cfg,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{Name: "sieve", Version: version.Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}
