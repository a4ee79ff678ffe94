package sieve

import "go.uber.org/zap"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string // "memory" or "redis"
	addrs    []string
	password string

	catalogDriver string
	catalogDSN    string
	keyPrefix     string
	templatesPath string

	embedders []embedderEntry
	rerankers []rerankerEntry
	generator Generator

	hnswM, hnswEFConstruct int
	surroundingChunks      *int
	rankMass               float64
	logger                 *zap.Logger
}

type embedderEntry struct {
	name string
	dims int
	e    Embedder
}

type rerankerEntry struct {
	name string
	r    Reranker
}

// WithRedis stores vectors and responses in Redis 8+ (or Redis Stack).
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithMemory keeps vectors and responses in process memory (default).
func WithMemory() Option {
	return func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	}
}

// WithCatalog sets the SQL catalog. driver is "sqlite" or "postgres";
// the default is an in-memory SQLite database.
func WithCatalog(driver, dsn string) Option {
	return func(c *clientConfig) {
		c.catalogDriver = driver
		c.catalogDSN = dsn
	}
}

// WithKeyPrefix namespaces every key the client writes.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithTemplatesFile reads query templates from a file or directory
// instead of the catalog.
func WithTemplatesFile(path string) Option {
	return func(c *clientConfig) { c.templatesPath = path }
}

// WithEmbedder registers an embedding model producing dims-sized vectors.
// Collections refer to it by name.
func WithEmbedder(name string, dims int, e Embedder) Option {
	return func(c *clientConfig) {
		c.embedders = append(c.embedders, embedderEntry{name: name, dims: dims, e: e})
	}
}

// WithReranker registers a cross-encoder under name.
func WithReranker(name string, r Reranker) Option {
	return func(c *clientConfig) {
		c.rerankers = append(c.rerankers, rerankerEntry{name: name, r: r})
	}
}

// WithGenerator enables answer generation.
func WithGenerator(g Generator) Option {
	return func(c *clientConfig) { c.generator = g }
}

// WithHNSW sets HNSW index parameters for new collections.
func WithHNSW(m, efConstruct int) Option {
	return func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	}
}

// WithSurroundingChunks sets how many neighbouring chunks extend each hit.
func WithSurroundingChunks(n int) Option {
	return func(c *clientConfig) { c.surroundingChunks = &n }
}

// WithRankMass sets the default share of relevance mass forwarded to
// generation.
func WithRankMass(mass float64) Option {
	return func(c *clientConfig) { c.rankMass = mass }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
