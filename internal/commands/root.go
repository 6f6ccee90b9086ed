package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/buildinfo"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	repo      string
	verbose   bool
	logFormat string
}

func (g *globalOptions) logger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	switch g.logFormat {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (text or json)", g.logFormat)
	}
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "conciliar",
		Short:   "Bank reconciliation for small businesses",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := g.logger(io.Discard)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.repo, "repo", ".", "workspace directory")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug details")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(
		newInitCommand(g),
		newImportCommand(g),
		newClassifyCommand(g),
		newLearnCommand(g),
		newTransfersCommand(g),
		newReconcileCommand(g),
		newExportCommand(g),
	)

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}
