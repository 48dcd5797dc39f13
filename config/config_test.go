package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, ":8787", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.Poll())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir
	cfg.ListenAddr = "127.0.0.1:9000"
	cfg.VaultDir = filepath.Join(dir, "vault")
	cfg.Stylesheets = []string{filepath.Join(dir, "theme.css")}
	cfg.PollInterval = "500ms"
	cfg.DefaultTagColors = map[string]string{"todo": "#ff8800"}
	require.NoError(t, Save(cfg))

	_, err := os.Stat(Path(dir) + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, 500*time.Millisecond, loaded.Poll())
}

func TestLoadFillsDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte(`{"vault_dir": "/notes"}`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "/notes", cfg.VaultDir)
	assert.Equal(t, ":8787", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotNil(t, cfg.DefaultTagColors)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"short hex":       func(c *Config) { c.DefaultTagColors = map[string]string{"a": "#fff"} },
		"empty tag":       func(c *Config) { c.DefaultTagColors = map[string]string{"": "#ffffff"} },
		"bad duration":    func(c *Config) { c.PollInterval = "soon" },
		"bad log level":   func(c *Config) { c.LogLevel = "chatty" },
		"bad listen":      func(c *Config) { c.ListenAddr = "nowhere" },
		"empty sheet":     func(c *Config) { c.Stylesheets = []string{""} },
		"missing datadir": func(c *Config) { c.DataDir = "" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		err := Validate(cfg)
		require.ErrorIs(t, err, ErrInvalid, name)
	}

	require.NoError(t, Validate(Default()))
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte(`{`), 0o644))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestIsHexColorFollowsColorModel(t *testing.T) {
	t.Parallel()

	assert.True(t, isHexColor("#3366cc"))
	assert.True(t, isHexColor("#ABCDEF"))
	assert.False(t, isHexColor("3366cc"), "leading # is required")
	assert.False(t, isHexColor("#fff"))
	assert.False(t, isHexColor(" #3366cc"))
	assert.False(t, isHexColor("#3366cg"))
}
