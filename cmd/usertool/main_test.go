package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authchat/core"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashCommand(t *testing.T) {
	out, err := run(t, "secret1\n", "hash", "--cost", "4")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, core.VerifyPassword("secret1", hash))
	assert.False(t, core.VerifyPassword("secret2", hash))

	_, err = run(t, "", "hash")
	assert.Error(t, err)
}

func TestAddCommandWritesPasswordFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MONGO_URI", "memory://")
	t.Setenv("BCRYPT_COST", "4")

	path := filepath.Join(t.TempDir(), "alice.pw")
	_, err := run(t, "", "add", "alice", "--out", path, "--length", "16")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(string(data)), 16)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAddCommandRequiresDatabase(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MONGO_URI", "")
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "", "add", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}
