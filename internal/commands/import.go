package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/gitops"
	"github.com/conciliar-dev/conciliar/internal/importer"
)

func newImportCommand(g *globalOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank statements and ledger files",
		Long: "Import bank statements (CNAB 240, CNAB 400, OFX, CSV) and accounts payable/receivable files.\n" +
			"Without arguments every file waiting in import/ is imported and moved to import/processed/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(g)
			if err != nil {
				return err
			}
			if account != "" {
				if _, ok := ws.cfg.Account(account); !ok {
					return fmt.Errorf("unknown bank account %q", account)
				}
			}
			svc := importer.NewService(ws.books, importer.DefaultRegistry(), ws.cfg.BankAccounts, ws.logger)

			var sums []importer.Summary
			var importErr error
			if len(args) == 0 {
				sums, importErr = svc.ImportPending(ws.root, account)
			} else {
				sums, importErr = importFiles(svc, args, account)
			}

			out := cmd.OutOrStdout()
			var txns, entries int
			var names []string
			for _, s := range sums {
				fmt.Fprintf(out, "%s (%s): %d transactions, %d ledger entries, %d duplicates, %d line errors\n",
					s.File, s.Format, s.Transactions, s.Entries, s.Duplicates, len(s.Errors))
				txns += s.Transactions
				entries += s.Entries
				names = append(names, s.File)
			}
			if len(sums) == 0 && importErr == nil {
				fmt.Fprintln(out, "Nothing to import")
				return nil
			}

			if txns+entries > 0 {
				details := fmt.Sprintf("%d transactions, %d ledger entries from %s", txns, entries, strings.Join(names, ", "))
				if err := ws.finish(gitops.PrefixImport, "files", details, ""); err != nil {
					return errors.Join(importErr, err)
				}
			}
			return importErr
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "bank account id the statements belong to")
	return cmd
}

func importFiles(svc *importer.Service, paths []string, account string) ([]importer.Summary, error) {
	var sums []importer.Summary
	var errs []error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s: %w", p, err))
			continue
		}
		sum, err := svc.Import(filepath.Base(p), data, account)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sums = append(sums, sum)
	}
	return sums, errors.Join(errs...)
}
