package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("BOARDSYNC_CONFIG", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", c.Server.Addr)
	assert.Equal(t, filepath.Join(dir, "data", "boardsync", "boardsync.sqlite"), c.Server.DB)
	assert.Equal(t, "atomic", c.Server.WriteMode)
	assert.Equal(t, 256, c.Server.SendBuffer)
	assert.Equal(t, "*", c.Server.CORSOrigin)
	assert.Equal(t, "http://127.0.0.1:5000", c.Client.Server)
	assert.Empty(t, c.File)
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "board.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = "0.0.0.0:7000"
write_mode = "sequential"
send_buffer = 16

[log]
level = "debug"
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", c.Server.Addr)
	assert.Equal(t, "sequential", c.Server.WriteMode)
	assert.Equal(t, 16, c.Server.SendBuffer)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, path, c.File)

	t.Setenv("BOARDSYNC_SERVER_ADDR", "127.0.0.1:7100")
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7100", c.Server.Addr)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", "", "")
	fs.String("db", "", "")
	require.NoError(t, fs.Parse([]string{"--addr", "127.0.0.1:7200"}))
	c, err = Load(path,
		FlagBinding{Key: "server.addr", Flag: fs.Lookup("addr")},
		FlagBinding{Key: "server.db", Flag: fs.Lookup("db")},
	)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7200", c.Server.Addr)
	assert.Equal(t, filepath.Join(dir, "data", "boardsync", "boardsync.sqlite"), c.Server.DB, "unset flag keeps lower layers")
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load("")
	require.NoError(t, err)

	c := base
	c.Server.WriteMode = "eventual"
	assert.Error(t, c.Validate())

	c = base
	c.Server.SendBuffer = 0
	assert.Error(t, c.Validate())

	c = base
	c.Server.Addr = " "
	assert.Error(t, c.Validate())

	c = base
	c.Log.Format = "xml"
	assert.Error(t, c.Validate())
}
