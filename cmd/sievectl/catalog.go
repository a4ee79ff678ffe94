package main

import (
	"github.com/spf13/cobra"

	catalogrepo "github.com/kailas-cloud/sieve/internal/repository/catalog"
)

var migrateFlags catalogFlags

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "SQL catalog commands",
}

var catalogMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the catalog schema",
	Long: `Create the tables of collections, documents and templates. Running it
again is harmless.`,
	Args: cobra.NoArgs,
	RunE: runCatalogMigrate,
}

func init() {
	migrateFlags.register(catalogMigrateCmd)
	catalogCmd.AddCommand(catalogMigrateCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := migrateFlags.config()
	if err != nil {
		return err
	}
	repo, err := catalogrepo.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	if err := repo.Migrate(cmd.Context()); err != nil {
		return err
	}
	cmd.Printf("catalog schema ready (%s)\n", cfg.Driver)
	return nil
}
