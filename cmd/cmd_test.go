package cmd

import (
	"path/filepath"
	"testing"

	"github.com/inovacc/gitcove/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := GetRootCmd()

	for _, path := range [][]string{
		{"server", "start"},
		{"server", "stop"},
		{"server", "restart"},
		{"server", "status"},
		{"repo", "create"},
		{"repo", "import"},
		{"repo", "scan"},
		{"repo", "list"},
		{"repo", "archive"},
		{"repo", "activate"},
		{"repo", "update"},
		{"repo", "delete"},
		{"user", "add"},
		{"user", "list"},
		{"user", "passwd"},
		{"user", "delete"},
		{"perm", "grant"},
		{"perm", "revoke"},
		{"perm", "list"},
		{"service"},
		{"config", "init"},
		{"config", "show"},
	} {
		found, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name(), path)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "yes", yesNo(true))
	assert.Equal(t, "no", yesNo(false))
	assert.Equal(t, "read-only", accessLabel(true))
	assert.Equal(t, "read-write", accessLabel(false))
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()

	file := config.DefaultFor(dir)
	file.Server.Port = 9000

	path := filepath.Join(dir, "gitcove.ini")
	require.NoError(t, config.Save(file, path))

	var (
		root string
		port int
		back string
	)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringVar(&root, "root", "", "")
	flags.IntVar(&port, "port", 0, "")
	flags.StringVar(&back, "store", "", "")

	configPath = path
	t.Cleanup(func() { configPath, rootOverride, portOverride, storeBackend = "", "", 0, "" })

	loaded, err := loadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, 9000, loaded.Server.Port)
	assert.Equal(t, config.BackendSQLite, loaded.Storage.Backend)

	require.NoError(t, flags.Set("port", "9100"))
	require.NoError(t, flags.Set("store", "bolt"))
	require.NoError(t, flags.Set("root", filepath.Join(dir, "repos")))
	portOverride, storeBackend, rootOverride = port, back, root

	loaded, err = loadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, 9100, loaded.Server.Port)
	assert.Equal(t, config.BackendBolt, loaded.Storage.Backend)
	assert.Equal(t, filepath.Join(dir, "repos"), loaded.Repositories.Root)

	storeBackend = "nope"

	_, err = loadConfig(flags)
	assert.Error(t, err)
}
