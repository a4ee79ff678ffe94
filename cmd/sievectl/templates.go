package main

import (
	"fmt"

	"github.com/spf13/cobra"

	catalogrepo "github.com/kailas-cloud/sieve/internal/repository/catalog"
	"github.com/kailas-cloud/sieve/internal/repository/templatefile"
	cataloguc "github.com/kailas-cloud/sieve/internal/usecase/catalog"
)

var (
	loadFlags   catalogFlags
	loadMigrate bool
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Query template file commands",
}

var templatesValidateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Parse template files and compile every rule",
	Long: `Parse yaml, json or toml template files, or every such file of a
directory, and compile their data filter rules. Template ids must be unique
across all given files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTemplatesValidate,
}

var templatesLoadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load a template file into the catalog",
	Long: `Upsert the templates of FILE into the SQL catalog. A file declaring a
grammar_type is the full list of that grammar: other templates of the same
grammar are deactivated.`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplatesLoad,
}

func init() {
	loadFlags.register(templatesLoadCmd)
	templatesLoadCmd.Flags().BoolVar(&loadMigrate, "migrate", false, "create the catalog schema first")
	templatesCmd.AddCommand(templatesValidateCmd, templatesLoadCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesValidate(cmd *cobra.Command, args []string) error {
	seen := make(map[int64]string)
	for _, path := range args {
		src, err := templatefile.NewSource(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, f := range src.Files() {
			for _, t := range f.Templates {
				if prev, dup := seen[t.ID()]; dup {
					return fmt.Errorf("%s: template id %d already defined in %s", f.Path, t.ID(), prev)
				}
				seen[t.ID()] = f.Path
			}
			grammar := string(f.Grammar)
			if grammar == "" {
				grammar = "none"
			}
			cmd.Printf("%s: %s, %d templates, grammar %s\n", f.Path, f.TemplateName, len(f.Templates), grammar)
		}
	}
	cmd.Printf("ok: %d templates\n", len(seen))
	return nil
}

func runTemplatesLoad(cmd *cobra.Command, args []string) error {
	f, err := templatefile.Load(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadFlags.config()
	if err != nil {
		return err
	}
	repo, err := catalogrepo.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	if loadMigrate {
		if err := repo.Migrate(cmd.Context()); err != nil {
			return err
		}
	}
	// Collections are not touched, so no index manager or models are needed.
	svc := cataloguc.New(repo, nil, nil)
	if err := svc.ImportTemplates(cmd.Context(), f.Grammar, f.Templates); err != nil {
		return err
	}
	cmd.Printf("loaded %d templates from %s\n", len(f.Templates), f.Path)
	return nil
}
