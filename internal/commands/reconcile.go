package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/gitops"
	"github.com/conciliar-dev/conciliar/internal/reconcile"
)

func newReconcileCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match bank transactions against ledger entries",
	}
	cmd.AddCommand(
		newReconcileRunCommand(g),
		newReconcileApproveCommand(g),
		newReconcileRejectCommand(g),
		newReconcileShowCommand(g),
	)
	return cmd
}

func newReconcileRunCommand(g *globalOptions) *cobra.Command {
	var from, to, account string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a reconciliation batch over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parsePeriod(from, to)
			if err != nil {
				return err
			}
			ws, err := openWorkspace(g)
			if err != nil {
				return err
			}
			if account != "" {
				if _, ok := ws.cfg.Account(account); !ok {
					return fmt.Errorf("unknown bank account %q", account)
				}
			}

			svc := reconcile.NewService(ws.books, ws.cfg.MatchingOptions(), ws.logger)
			report, err := svc.Run(cmd.Context(), reconcile.RunParams{From: start, To: end, AccountID: account})
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			b := report.Batch
			details := fmt.Sprintf("%s to %s: %d matched, %d suggested, %d divergences",
				b.From.Format(time.DateOnly), b.To.Format(time.DateOnly), b.Matched, len(report.Suggested()), b.Divergent)
			return ws.finish(gitops.PrefixReconcile, "run", details, b.ID)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&account, "account", "", "restrict to one bank account")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newReconcileApproveCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <batch-id> <transaction-id> <entry-id>",
		Short: "Confirm a suggested match",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(g)
			if err != nil {
				return err
			}
			svc := reconcile.NewService(ws.books, ws.cfg.MatchingOptions(), ws.logger)
			m, err := svc.Approve(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s <-> %s (%d%%)\n", m.TransactionID, m.EntryID, m.Confidence)
			return ws.finish(gitops.PrefixReconcile, "approve", fmt.Sprintf("approve %s <-> %s", m.TransactionID, m.EntryID), args[0])
		},
	}
}

func newReconcileRejectCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <batch-id> <transaction-id> <entry-id>",
		Short: "Dismiss a suggested match",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(g)
			if err != nil {
				return err
			}
			svc := reconcile.NewService(ws.books, ws.cfg.MatchingOptions(), ws.logger)
			m, err := svc.Reject(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s <-> %s\n", m.TransactionID, m.EntryID)
			return ws.finish(gitops.PrefixReconcile, "reject", fmt.Sprintf("reject %s <-> %s", m.TransactionID, m.EntryID), args[0])
		},
	}
}

func newReconcileShowCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [batch-id]",
		Short: "Show a batch, or list batches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				batches, err := ws.books.Batches()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BATCH\tPERIOD\tSTATUS\tMATCHED\tRATE")
				for _, b := range batches {
					fmt.Fprintf(tw, "%s\t%s..%s\t%s\t%d\t%s%%\n", b.ID,
						b.From.Format(time.DateOnly), b.To.Format(time.DateOnly), b.Status, b.Matched, b.MatchRate.StringFixed(2))
				}
				return tw.Flush()
			}
			svc := reconcile.NewService(ws.books, ws.cfg.MatchingOptions(), ws.logger)
			report, err := svc.Show(args[0])
			if err != nil {
				return err
			}
			return printReport(out, report)
		},
	}
}

func printReport(w io.Writer, r *reconcile.Report) error {
	b := r.Batch
	fmt.Fprintf(w, "Batch %s (%s)\n", b.ID, b.Status)
	fmt.Fprintf(w, "Period %s to %s", b.From.Format(time.DateOnly), b.To.Format(time.DateOnly))
	if b.AccountID != "" {
		fmt.Fprintf(w, ", account %s", b.AccountID)
	}
	fmt.Fprintf(w, "\n%d transactions, %d ledger entries, %d matched (%s%%), %d divergences\n",
		b.Transactions, b.Entries, b.Matched, b.MatchRate.StringFixed(2), b.Divergent)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(r.Matches) > 0 {
		fmt.Fprintln(tw, "\nTRANSACTION\tENTRY\tORIGIN\tPHASE\tCONFIDENCE\tREASONS")
		for _, m := range r.Matches {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				m.TransactionID, m.EntryID, m.Origin, m.Phase, m.Confidence, strings.Join(m.Reasons, "; "))
		}
	}
	if len(r.Divergences) > 0 {
		fmt.Fprintln(tw, "\nKIND\tTRANSACTION\tENTRY\tDESCRIPTION")
		for _, d := range r.Divergences {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Kind, dash(d.TransactionID), dash(d.EntryID), d.Description)
		}
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
