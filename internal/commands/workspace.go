package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/conciliar-dev/conciliar/internal/activity"
	"github.com/conciliar-dev/conciliar/internal/books"
	"github.com/conciliar-dev/conciliar/internal/config"
	"github.com/conciliar-dev/conciliar/internal/gitops"
	"github.com/conciliar-dev/conciliar/internal/learning"
)

// workspace is an opened conciliar directory.
type workspace struct {
	root     string
	cfg      *config.Config
	books    *books.Store
	logger   *slog.Logger
	activity *activity.Log
	git      gitops.Committer
}

func openWorkspace(g *globalOptions) (*workspace, error) {
	root, err := filepath.Abs(g.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("%s is not a conciliar workspace: %w", root, err)
	}
	logger, err := g.logger(os.Stderr)
	if err != nil {
		return nil, err
	}
	return &workspace{
		root:     root,
		cfg:      cfg,
		books:    books.NewStore(root, cfg.Company.ID),
		logger:   logger.With("company", cfg.Company.ID),
		activity: activity.New(root),
		git: gitops.Committer{
			Dir:         root,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
			Enabled:     cfg.Git.AutoCommit,
		},
	}, nil
}

// learningStore opens the configured history backend. The returned close
// func must be called when done.
func (w *workspace) learningStore(ctx context.Context) (learning.Store, func() error, error) {
	if w.cfg.Learning.SQLitePath == "" {
		return learning.NewCSVStore(w.root), func() error { return nil }, nil
	}
	path := w.cfg.Learning.SQLitePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating learning dir: %w", err)
	}
	st, err := learning.OpenSQLite(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

// finish commits the workspace and records the command in the activity log.
func (w *workspace) finish(prefix gitops.Prefix, action, details, batchID string) error {
	hash, err := w.git.Commit(prefix, details)
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	if err := w.activity.Record(string(prefix), action, details, batchID, hash); err != nil {
		return fmt.Errorf("writing activity log: %w", err)
	}
	if hash != "" {
		w.logger.Debug("committed", "hash", hash)
	}
	return nil
}

// parseDay parses a YYYY-MM-DD flag value. Empty is the zero time.
func parseDay(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, value)
	}
	return t, nil
}

func parsePeriod(from, to string) (time.Time, time.Time, error) {
	f, err := parseDay("from", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := parseDay("to", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return f, t, nil
}
