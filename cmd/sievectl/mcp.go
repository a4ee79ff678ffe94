package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/app"
	logpkg "github.com/kailas-cloud/sieve/internal/logger"
	mcpTransport "github.com/kailas-cloud/sieve/internal/transport/mcp"
	"github.com/kailas-cloud/sieve/internal/version"
)

var mcpCollection string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the search and answer tools over MCP stdio",
	Long: `Serve semantic_search (and answer, when generation is configured)
to an MCP client over stdin/stdout. Logs go to stderr.

Example client entry:
  {"command": "sievectl", "args": ["mcp", "--env", "prod"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpCollection, "collection", "", "default collection (overrides mcp.default_collection)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	if mcpCollection != "" {
		cfg.MCP.DefaultCollection = mcpCollection
	}

	logger, err := logpkg.New(logpkg.Config{
		Env:    env,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "sievectl-mcp"},
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting MCP stdio server",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("default_collection", cfg.MCP.DefaultCollection),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.RegisterMetrics()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	go a.RunWatcher(ctx)

	var answerer mcpTransport.Answerer
	if a.AnswerSvc != nil {
		answerer = a.AnswerSvc
	}
	server, err := mcpTransport.NewServer(a.SearchSvc, answerer, mcpTransport.Config{
		DefaultCollection: cfg.MCP.DefaultCollection,
		DefaultTopK:       cfg.MCP.DefaultTopK,
	}, logger)
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
