package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs RootCmd with args, capturing combined stdout/stderr, the way
// cobra.Command is conventionally exercised in tests (SetOut/SetArgs rather
// than spawning the binary).
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetErr(&buf)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return buf.String(), err
}

func TestInitRecordReduceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	repoPath := filepath.Join(dir, "repo")

	_, err := execute(t, "init", repoPath)
	require.NoError(t, err)

	contentPath := filepath.Join(dir, "type")
	require.NoError(t, os.WriteFile(contentPath, []byte("Issue"), 0o644))

	out, err := execute(t, "record", repoPath, "--file", ".type/issue="+contentPath)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = execute(t, "reduce", repoPath)
	require.NoError(t, err)
	assert.Contains(t, out, "map[")
}

func TestRecordRejectsMalformedFileFlag(t *testing.T) {
	dir := t.TempDir()
	repoPath := filepath.Join(dir, "repo")
	_, err := execute(t, "init", repoPath)
	require.NoError(t, err)

	_, err = execute(t, "record", repoPath, "--file", "no-equals-sign")
	assert.Error(t, err)
}

func TestReduceRejectsUnknownItem(t *testing.T) {
	dir := t.TempDir()
	repoPath := filepath.Join(dir, "repo")
	_, err := execute(t, "init", repoPath)
	require.NoError(t, err)

	_, err = execute(t, "reduce", repoPath, "--item", "does-not-exist")
	assert.Error(t, err)
}
