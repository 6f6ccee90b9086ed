package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/export"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/reconcile"
)

func newExportCommand(g *globalOptions) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export <batch-id>",
		Short: "Export a batch's confirmed settlements",
		Long:  "Export confirmed matches as a bank return file (cnab240, cnab400), csv, json, or a plain-text report.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(g)
			if err != nil {
				return err
			}
			if format == "" {
				format = ws.cfg.Export.DefaultFormat
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			svc := reconcile.NewService(ws.books, ws.cfg.MatchingOptions(), ws.logger)
			report, err := svc.Show(args[0])
			if err != nil {
				return err
			}
			reconciled, err := svc.Reconciled(args[0])
			if err != nil {
				return err
			}
			account, err := exportAccount(ws, report.Batch, reconciled)
			if err != nil {
				return err
			}

			in := export.Input{
				Company: export.Company{
					ID:       ws.cfg.Company.ID,
					Name:     ws.cfg.Company.Name,
					Document: ws.cfg.Company.Document,
				},
				Account:     account,
				Batch:       report.Batch,
				Reconciled:  reconciled,
				Divergences: report.Divergences,
				GeneratedAt: time.Now(),
			}
			var buf bytes.Buffer
			if err := export.Write(&buf, f, in); err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if output == "" {
				output = filepath.Join(ws.root, "exports", report.Batch.ID+f.Extension())
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("creating export dir: %w", err)
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			ws.logger.Info("batch exported", "batch", report.Batch.ID, "format", f, "settlements", len(reconciled), "path", output)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d settlements to %s\n", len(reconciled), output)
			return ws.activity.Record("export", string(f), output, report.Batch.ID, "")
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "cnab240, cnab400, csv, json or report (default from conciliar.yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default exports/<batch><ext>)")
	return cmd
}

// exportAccount picks the bank account a batch's return file is addressed
// to: the batch's own account, else the account of its first settlement,
// else the company's main bank.
func exportAccount(ws *workspace, b model.Batch, reconciled []model.Reconciled) (model.BankAccount, error) {
	id := b.AccountID
	if id == "" && len(reconciled) > 0 {
		id = reconciled[0].Transaction.AccountID
	}
	if id != "" {
		a, ok := ws.cfg.Account(id)
		if !ok {
			return model.BankAccount{}, fmt.Errorf("bank account %q is not configured", id)
		}
		return a, nil
	}
	return model.BankAccount{BankCode: ws.cfg.Company.BankCode}, nil
}
