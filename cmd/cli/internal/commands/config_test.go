package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configTestCLI struct {
	Backend BackendFlags `embed:""`
	Debug   bool

	Tasks struct {
		Watch TasksWatchCmd `cmd:""`
	} `cmd:""`
}

func TestYAMLConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: http://localhost:8000
retry_delay: 250ms
retries: 1
debug: true
tasks:
  watch:
    interval: 30s
`), 0600))

	var cli configTestCLI
	parser, err := kong.New(&cli, kong.Configuration(YAMLConfig, path), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"tasks", "watch"})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cli.Backend.Server)
	assert.Equal(t, 250*time.Millisecond, cli.Backend.RetryDelay)
	assert.Equal(t, 1, cli.Backend.Retries)
	assert.Equal(t, 10*time.Second, cli.Backend.Timeout)
	assert.True(t, cli.Debug)
	assert.Equal(t, 30*time.Second, cli.Tasks.Watch.Interval)
}

func TestYAMLConfig_FlagsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://from-file:8000\n"), 0600))

	var cli configTestCLI
	parser, err := kong.New(&cli, kong.Configuration(YAMLConfig, path))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"--server", "http://from-flag:8000", "tasks", "watch"})
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:8000", cli.Backend.Server)
}

func TestYAMLConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed\n"), 0600))

	var cli configTestCLI
	_, err := kong.New(&cli, kong.Configuration(YAMLConfig, path))
	require.Error(t, err)
}
