package gitops

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastCommit(t *testing.T, dir, format string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--format="+format, "-1")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")
	require.NoError(t, Init(dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommitAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conciliar.yaml"), []byte("company: {}\n"), 0o644))

	hash, err := CommitAll(dir, "init: Padaria", "Test Author", "test@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Equal(t, "init: Padaria", lastCommit(t, dir, "%s"))
	assert.Equal(t, "Test Author <test@example.com>", lastCommit(t, dir, "%an <%ae>"))
	assert.Equal(t, "Test Author <test@example.com>", lastCommit(t, dir, "%cn <%ce>"))
}

func TestCommitter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	c := Committer{Dir: dir, AuthorName: "Conciliar", AuthorEmail: "conciliar@localhost", Enabled: true}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x\n"), 0o644))
	hash, err := c.Commit(PrefixImport, "2 transactions from extrato.ofx")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Equal(t, "import: 2 transactions from extrato.ofx", lastCommit(t, dir, "%s"))

	hash, err = c.Commit(PrefixClassify, "nothing changed")
	require.NoError(t, err)
	assert.Empty(t, hash, "clean tree is not committed")
}

func TestCommitter_Disabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x\n"), 0o644))

	hash, err := Committer{Dir: dir}.Commit(PrefixLearn, "x")
	require.NoError(t, err)
	assert.Empty(t, hash)

	hash, err = Committer{Dir: t.TempDir(), Enabled: true}.Commit(PrefixLearn, "x")
	require.NoError(t, err)
	assert.Empty(t, hash, "not a repository")
}
