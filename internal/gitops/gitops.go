// Package gitops records workspace changes as git commits.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prefix tags a commit with the command that produced it.
type Prefix string

const (
	PrefixInit      Prefix = "init"
	PrefixImport    Prefix = "import"
	PrefixClassify  Prefix = "classify"
	PrefixLearn     Prefix = "learn"
	PrefixTransfers Prefix = "transfers"
	PrefixReconcile Prefix = "reconcile"
)

// Init initializes a new git repository at dir.
func Init(dir string) error {
	cmd := exec.Command("git", "init", "--quiet")
	cmd.Dir = dir
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Committer commits a workspace on behalf of the CLI.
type Committer struct {
	Dir         string
	AuthorName  string
	AuthorEmail string
	Enabled     bool
}

// Commit stages everything and commits it as "<prefix>: <summary>". It returns
// the short hash, or "" when committing is disabled, dir is not a repository,
// or there is nothing to commit.
func (c Committer) Commit(prefix Prefix, summary string) (string, error) {
	if !c.Enabled || !IsRepo(c.Dir) {
		return "", nil
	}
	if err := c.git("add", "-A"); err != nil {
		return "", err
	}
	status, err := c.output("status", "--porcelain")
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", nil
	}
	return CommitAll(c.Dir, fmt.Sprintf("%s: %s", prefix, summary), c.AuthorName, c.AuthorEmail)
}

func (c Committer) git(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.Dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (c Committer) output(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.Dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CommitAll stages all files and creates a commit authored and committed by
// the given identity. Returns the short commit hash.
func CommitAll(dir, message, authorName, authorEmail string) (string, error) {
	add := exec.Command("git", "add", "-A")
	add.Dir = dir
	if out, err := add.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git add: %s: %w", out, err)
	}

	commit := exec.Command("git", "commit", "--quiet", "-m", message)
	commit.Dir = dir
	commit.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+authorName,
		"GIT_AUTHOR_EMAIL="+authorEmail,
		"GIT_COMMITTER_NAME="+authorName,
		"GIT_COMMITTER_EMAIL="+authorEmail,
	)
	if out, err := commit.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", out, err)
	}

	rev := exec.Command("git", "rev-parse", "--short", "HEAD")
	rev.Dir = dir
	out, err := rev.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
