package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/categories"
	"github.com/conciliar-dev/conciliar/internal/classify"
	"github.com/conciliar-dev/conciliar/internal/gitops"
)

func newClassifyService(ws *workspace, cmd *cobra.Command) (*classify.Service, func() error, error) {
	chart, err := categories.Load(ws.root)
	if err != nil {
		return nil, nil, err
	}
	history, closeHistory, err := ws.learningStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return classify.NewService(ws.books, history, chart, ws.cfg.ClassifyOptions(), ws.logger), closeHistory, nil
}

func newClassifyCommand(g *globalOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify pending transactions from the learning history",
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
			svc, closeHistory, err := newClassifyService(ws, cmd)
			if err != nil {
				return err
			}
			defer closeHistory()

			sum, err := svc.ClassifyPending(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Classified %d transactions: %d automatic, %d low confidence, %d unclassified\n",
				sum.Total(), sum.Automatic, sum.LowConfidence, sum.Unclassified)
			if sum.Total() == 0 {
				return nil
			}
			details := fmt.Sprintf("%d automatic, %d low confidence, %d unclassified", sum.Automatic, sum.LowConfidence, sum.Unclassified)
			return ws.finish(gitops.PrefixClassify, "pending", details, "")
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first operation date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last operation date (YYYY-MM-DD)")
	return cmd
}

func newLearnCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <transaction-id> <category-id>",
		Short: "Classify a transaction manually and remember the choice",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("category id %q must be a number", args[1])
			}
			ws, err := openWorkspace(g)
			if err != nil {
				return err
			}
			svc, closeHistory, err := newClassifyService(ws, cmd)
			if err != nil {
				return err
			}
			defer closeHistory()

			tx, err := svc.Learn(cmd.Context(), args[0], categoryID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q -> category %d\n", tx.ID, tx.Description, tx.CategoryID)
			return ws.finish(gitops.PrefixLearn, "category", fmt.Sprintf("%s -> %d", tx.ID, categoryID), "")
		},
	}
}
