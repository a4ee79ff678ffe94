// Package config loads the YAML configuration of the sieve server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the sieve configuration.
type Config struct {
	HTTP       HTTPConfig                `yaml:"http"`
	Database   DatabaseConfig            `yaml:"database"`
	Catalog    CatalogConfig             `yaml:"catalog"`
	Templates  TemplatesConfig           `yaml:"templates"`
	Index      IndexConfig               `yaml:"index"`
	Models     ModelsConfig              `yaml:"models"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Generation GenerationConfig          `yaml:"generation"`
	Search     SearchConfig              `yaml:"search"`
	Auth       AuthConfig                `yaml:"auth"`
	Storage    StorageConfig             `yaml:"storage"`
	Logging    LoggingConfig             `yaml:"logging"`
	MCP        MCPConfig                 `yaml:"mcp"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the vector and key/value store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CatalogConfig holds the SQL catalog settings.
type CatalogConfig struct {
	Driver       string `yaml:"driver"` // postgres, sqlite (default: sqlite)
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// IndexConfig holds HNSW index and indexing batch settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	MaxBatchSize    int `yaml:"max_batch_size"`
}

// TemplatesConfig selects where query templates are read from.
type TemplatesConfig struct {
	Source string `yaml:"source"` // sql, file (default: sql)
	Path   string `yaml:"path"`   // file or directory for source=file
	Watch  bool   `yaml:"watch"`  // reload files on change
}

// ModelsConfig lists the known models and the ones bound at startup.
type ModelsConfig struct {
	Embedders       []EmbedderConfig `yaml:"embedders"`
	Rerankers       []RerankerConfig `yaml:"rerankers"`
	ActiveEmbedders []string         `yaml:"active_embedders"`
	ActiveRerankers []string         `yaml:"active_rerankers"`
}

// EmbedderConfig describes one embedding model.
type EmbedderConfig struct {
	Name        string `yaml:"name"`
	Provider    string `yaml:"provider"` // key of providers
	Model       string `yaml:"model"`    // provider model id (default: name)
	Path        string `yaml:"path"`
	VectorSize  int    `yaml:"vector_size"`
	Device      string `yaml:"device"`
	Instruction string `yaml:"instruction"` // prepended to every embedded text

	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	MaxBatchSize      int     `yaml:"max_batch_size"`
	CacheTTLSec       int     `yaml:"cache_ttl_sec"` // 0 = keep forever, -1 = no cache
}

// APIModel returns the model id sent to the provider.
func (e EmbedderConfig) APIModel() string {
	if e.Model != "" {
		return e.Model
	}
	return e.Name
}

// RerankerConfig describes one cross-encoder served over HTTP.
type RerankerConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Path   string `yaml:"path"`
	Device string `yaml:"device"`
}

// ProviderConfig holds OpenAI-compatible provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GenerationConfig holds answer generation settings. An empty model
// disables the answer endpoints.
type GenerationConfig struct {
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float32 `yaml:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Enabled reports whether a generator is configured.
func (g GenerationConfig) Enabled() bool { return g.Model != "" }

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	RankMass          float64 `yaml:"rank_mass"`
	DisplayMinHits    int     `yaml:"display_min_hits"`
	DisplayMinPages   int     `yaml:"display_min_pages"`
	SurroundingChunks *int    `yaml:"surrounding_chunks"`
	StrictTemplates   bool    `yaml:"strict_templates"`
	ResponseTTLSec    int     `yaml:"response_ttl_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// MCPConfig holds the MCP tool server settings.
type MCPConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Path              string `yaml:"path"`
	DefaultCollection string `yaml:"default_collection"`
	DefaultTopK       int    `yaml:"default_top_k"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document. ${VAR} and
// ${VAR:-default} are substituted from the environment first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = "sqlite"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 500
	}
	if c.Templates.Source == "" {
		c.Templates.Source = "sql"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1024
	}
	if c.Search.RankMass <= 0 {
		c.Search.RankMass = 0.8
	}
	if c.Search.DisplayMinHits <= 0 {
		c.Search.DisplayMinHits = 1
	}
	if c.Search.DisplayMinPages <= 0 {
		c.Search.DisplayMinPages = 1
	}
	if c.Search.SurroundingChunks == nil {
		n := 2
		c.Search.SurroundingChunks = &n
	}
	if c.Search.ResponseTTLSec <= 0 {
		c.Search.ResponseTTLSec = 24 * 60 * 60
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "sieve:"
	}
	if c.MCP.Path == "" {
		c.MCP.Path = "/mcp"
	}
	if c.MCP.DefaultTopK <= 0 {
		c.MCP.DefaultTopK = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver)
	}

	switch c.Catalog.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("catalog.driver must be \"postgres\" or \"sqlite\", got %q", c.Catalog.Driver)
	}
	if c.Catalog.DSN == "" {
		return errors.New("catalog.dsn is required")
	}

	switch c.Templates.Source {
	case "sql":
	case "file":
		if c.Templates.Path == "" {
			return errors.New("templates.path is required for the file source")
		}
	default:
		return fmt.Errorf("templates.source must be \"sql\" or \"file\", got %q", c.Templates.Source)
	}

	if err := c.validateModels(); err != nil {
		return err
	}

	if c.Search.RankMass > 100 {
		return fmt.Errorf("search.rank_mass must be at most 100, got %g", c.Search.RankMass)
	}
	if *c.Search.SurroundingChunks < 0 {
		return fmt.Errorf("search.surrounding_chunks must not be negative, got %d", *c.Search.SurroundingChunks)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", c.Generation.Temperature)
	}
	if !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp.path must start with /, got %q", c.MCP.Path)
	}
	return nil
}

func (c *Config) validateModels() error {
	embedders := make(map[string]EmbedderConfig, len(c.Models.Embedders))
	for i, e := range c.Models.Embedders {
		if e.Name == "" {
			return fmt.Errorf("models.embedders[%d].name is required", i)
		}
		if _, dup := embedders[e.Name]; dup {
			return fmt.Errorf("models.embedders: duplicate name %q", e.Name)
		}
		embedders[e.Name] = e
	}
	if len(c.Models.ActiveEmbedders) == 0 {
		return errors.New("models.active_embedders must name at least one embedder")
	}
	for _, name := range c.Models.ActiveEmbedders {
		e, ok := embedders[name]
		if !ok {
			return fmt.Errorf("models.active_embedders: unknown embedder %q", name)
		}
		if e.VectorSize <= 0 {
			return fmt.Errorf("models.embedders.%s.vector_size must be positive", name)
		}
		if _, ok := c.Providers[e.Provider]; !ok {
			return fmt.Errorf("models.embedders.%s: unknown provider %q", name, e.Provider)
		}
	}

	for _, name := range c.Models.ActiveRerankers {
		i := slices.IndexFunc(c.Models.Rerankers, func(r RerankerConfig) bool { return r.Name == name })
		if i < 0 {
			return fmt.Errorf("models.active_rerankers: unknown reranker %q", name)
		}
		if c.Models.Rerankers[i].URL == "" {
			return fmt.Errorf("models.rerankers.%s.url is required", name)
		}
	}
	return nil
}

// ActiveEmbedders returns the configurations of the active embedders.
func (c *Config) ActiveEmbedders() []EmbedderConfig {
	out := make([]EmbedderConfig, 0, len(c.Models.ActiveEmbedders))
	for _, name := range c.Models.ActiveEmbedders {
		for _, e := range c.Models.Embedders {
			if e.Name == name {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// ActiveRerankers returns the configurations of the active rerankers.
func (c *Config) ActiveRerankers() []RerankerConfig {
	out := make([]RerankerConfig, 0, len(c.Models.ActiveRerankers))
	for _, name := range c.Models.ActiveRerankers {
		for _, r := range c.Models.Rerankers {
			if r.Name == name {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests and go run
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
