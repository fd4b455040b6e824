package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"personaltasks/internal/auth"
	"personaltasks/internal/config"
	"personaltasks/internal/models"
	"personaltasks/internal/storage/sqlite"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "tasks.db")
	cfgPath = filepath.Join(dir, "personaltasks.yaml")
	body := fmt.Sprintf("store: sqlite\ndb_path: %q\nprefs_path: %q\nlog_level: error\nauth:\n  secret: cli-test\n",
		dbPath, filepath.Join(dir, "prefs.toml"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath, dbPath
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personaltasks.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "db_path:")

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "token", "--user", "alice")
	require.NoError(t, err)

	tokens := auth.NewManager(auth.Config{Secret: "cli-test", Issuer: "personaltasks", TokenTTL: time.Hour})
	userID, err := tokens.UserID(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestListCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	store, err := sqlite.Open(dbPath, nil)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = store.ForUser("alice").Create(ctx, models.Task{Title: "Pay rent", DueDate: models.NewDate(2025, 1, 5), Importance: models.ImportanceHigh})
	require.NoError(t, err)
	_, err = store.ForUser("alice").Create(ctx, models.Task{Title: "Read book", Description: "novel", DueDate: models.NewDate(2025, 1, 1)})
	require.NoError(t, err)
	_, err = store.ForUser("bob").Create(ctx, models.Task{Title: "Bob's errand", DueDate: models.NewDate(2025, 1, 1)})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "--config", cfgPath, "list", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "05/01/2025")
	assert.Less(t, strings.Index(out, "Pay rent"), strings.Index(out, "Read book"))
	assert.NotContains(t, out, "Bob's errand")

	out, err = execute(t, "--config", cfgPath, "list", "--user", "alice", "--sort", "light")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Read book"), strings.Index(out, "Pay rent"))

	out, err = execute(t, "--config", cfgPath, "list", "--user", "alice", "-q", "NOVEL")
	require.NoError(t, err)
	assert.NotContains(t, out, "Pay rent")
	assert.Contains(t, out, "Read book")

	token, err := execute(t, "--config", cfgPath, "token", "--user", "bob")
	require.NoError(t, err)
	out, err = execute(t, "--config", cfgPath, "list", "--token", strings.TrimSpace(token))
	require.NoError(t, err)
	assert.Contains(t, out, "Bob's errand")

	_, err = execute(t, "--config", cfgPath, "list", "--status", "ARCHIVED")
	assert.Error(t, err)
	_, err = execute(t, "--config", cfgPath, "list", "--sort", "random")
	assert.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: postgres\n"), 0o600))

	_, err := execute(t, "--config", path, "list")
	assert.ErrorContains(t, err, "unknown store")
}

func TestConfigShowHidesSecret(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "cli-test")

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, dbPath, shown.DBPath)
	assert.Equal(t, config.StoreSQLite, shown.Store)
	assert.Equal(t, "personaltasks", shown.Auth.Issuer)
	assert.Equal(t, 24*time.Hour, shown.Auth.TokenTTL)
	assert.Empty(t, shown.Auth.Secret)
}

func TestServeRefusesDefaultSecret(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "personaltasks.yaml")
	body := fmt.Sprintf("store: memory\naddr: 127.0.0.1:0\nprefs_path: %q\nlog_level: error\n", filepath.Join(dir, "prefs.toml"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	_, err := execute(t, "--config", cfgPath, "serve")
	assert.ErrorContains(t, err, "auth.secret")
}
