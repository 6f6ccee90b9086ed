package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/categories"
	"github.com/conciliar-dev/conciliar/internal/config"
	"github.com/conciliar-dev/conciliar/internal/gitops"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

type initOptions struct {
	name      string
	companyID string
	document  string
	bankCode  string
}

func newInitCommand(_ *globalOptions) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new reconciliation workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			hash, err := runInit(absDir, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized conciliar workspace at %s (%s)\n", absDir, hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "company name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.companyID, "company-id", "", "company id (default: derived from the name)")
	cmd.Flags().StringVar(&opts.document, "document", "", "company CNPJ or CPF")
	cmd.Flags().StringVar(&opts.bankCode, "bank-code", "", "main bank code")

	return cmd
}

// companySlug derives an id such as "padaria-sao-joao" from a company name.
func companySlug(name string) string {
	return strings.ReplaceAll(textnorm.Normalize(name), " ", "-")
}

func runInit(dir string, opts initOptions) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return "", fmt.Errorf("%s already contains %s", dir, config.FileName)
	}

	dirs := []string{
		"categories",
		"learning",
		"batches",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	companyID := opts.companyID
	if companyID == "" {
		companyID = companySlug(opts.name)
	}
	if companyID == "" {
		return "", fmt.Errorf("cannot derive a company id from %q, pass --company-id", opts.name)
	}
	cfg := config.Default(companyID, opts.name)
	cfg.Company.Document = opts.document
	cfg.Company.BankCode = opts.bankCode
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	if err := categories.NewService(categories.DefaultChart()).Save(dir); err != nil {
		return "", fmt.Errorf("writing chart of categories: %w", err)
	}

	gitignore := "exports/\n*.db\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}

	for _, keep := range []string{"import", "batches", "logs"} {
		if err := os.WriteFile(filepath.Join(dir, keep, ".gitkeep"), []byte{}, 0o644); err != nil {
			return "", fmt.Errorf("writing .gitkeep: %w", err)
		}
	}

	if err := gitops.Init(dir); err != nil {
		return "", err
	}
	hash, err := gitops.CommitAll(dir, fmt.Sprintf("%s: Initialize %s", gitops.PrefixInit, opts.name), cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return hash, nil
}
