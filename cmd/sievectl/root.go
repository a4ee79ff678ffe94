package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/sieve/internal/config"
	catalogrepo "github.com/kailas-cloud/sieve/internal/repository/catalog"
	"github.com/kailas-cloud/sieve/internal/version"
)

var configEnv string

var rootCmd = &cobra.Command{
	Use:   "sievectl",
	Short: "Operator tool for the sieve retrieval engine",
	Long: `sievectl ranks hit files offline, checks and loads query template
files, prepares the SQL catalog and serves the MCP tools over stdio.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("sievectl version %s (%s)\n", version.Version, version.Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configEnv, "env", "", "config environment (default: $ENV or local)")
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (config.Config, string, error) {
	env := configEnv
	if env == "" {
		env = config.GetEnv()
	}
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, env, nil
}

// catalogFlags select the SQL catalog; unset flags fall back to the config.
type catalogFlags struct {
	driver string
	dsn    string
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.driver, "catalog-driver", "", "catalog driver: sqlite or postgres")
	cmd.Flags().StringVar(&f.dsn, "catalog-dsn", "", "catalog connection string")
}

func (f *catalogFlags) config() (catalogrepo.Config, error) {
	if f.dsn != "" {
		driver := f.driver
		if driver == "" {
			driver = catalogrepo.DriverSQLite
		}
		return catalogrepo.Config{Driver: driver, DSN: f.dsn}, nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return catalogrepo.Config{}, err
	}
	driver := cfg.Catalog.Driver
	if f.driver != "" {
		driver = f.driver
	}
	return catalogrepo.Config{Driver: driver, DSN: cfg.Catalog.DSN, MaxOpenConns: cfg.Catalog.MaxOpenConns}, nil
}
