package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/gitops"
	"github.com/conciliar-dev/conciliar/internal/transfer"
)

func newTransfersCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Internal transfers between the company's accounts",
	}
	cmd.AddCommand(newTransfersDetectCommand(g))
	return cmd
}

func newTransfersDetectCommand(g *globalOptions) *cobra.Command {
	var from, to string
	var apply bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Pair debits and credits that move money between own accounts",
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

			pairs, err := transfer.NewService(ws.books, ws.cfg.TransferOptions(), ws.logger).Run(start, end, apply)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(pairs) == 0 {
				fmt.Fprintln(out, "No internal transfers found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DEBIT\tCREDIT\tCONFIDENCE\tHOURS")
			for _, p := range pairs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\n", p.DebitID, p.CreditID, p.Confidence, p.HoursApart)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !apply {
				fmt.Fprintln(out, "Dry run; pass --apply to mark these as internal transfers")
				return nil
			}
			return ws.finish(gitops.PrefixTransfers, "detect", fmt.Sprintf("%d pairs marked as internal transfers", len(pairs)), "")
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first operation date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last operation date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&apply, "apply", false, "mark detected pairs as internal transfers")
	return cmd
}
