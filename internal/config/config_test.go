package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kgquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, 6, cfg.Graph.People)
	assert.Equal(t, 2, cfg.Graph.Companies)
	assert.Equal(t, int64(42), cfg.Graph.Seed)
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestAllowedOrigins(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
server:
  allowed_origins:
    - http://localhost:3000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)

	t.Setenv("KGQUERY_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KGQUERY_ADDR", ":9999")
	t.Setenv("KGQUERY_LOG_LEVEL", "debug")
	t.Setenv("MY_ROUTER_KEY", "secret")

	path := writeConfig(t, `
llm:
  provider: openrouter
  api_key_env: MY_ROUTER_KEY
graph:
  people: 12
  companies: 3
viz:
  height: 500px
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "secret", cfg.APIKey())
	assert.Equal(t, 12, cfg.BuildOptions().People)
	assert.Equal(t, "500px", cfg.Viz.Height)
	assert.Equal(t, "100%", cfg.Viz.Width)
}

func TestProviderDefaultsItsKeyVariable(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(writeConfig(t, "llm:\n  provider: openrouter\n"))
	require.NoError(t, err)
	assert.Equal(t, "OPENROUTER_API_KEY", cfg.LLM.APIKeyEnv)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KGQUERY_DOTENV_VALUE=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("KGQUERY_DOTENV_VALUE") })

	_, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", os.Getenv("KGQUERY_DOTENV_VALUE"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"timeout", func(c *Config) { c.LLM.Timeout = "soon" }, "llm.timeout"},
		{"too many people", func(c *Config) { c.Graph.People = 31 }, "graph"},
		{"no companies", func(c *Config) { c.Graph.Companies = 0 }, "graph"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "log.format"},
		{"addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "kgquery.yaml")
	cfg := DefaultConfig()
	cfg.Graph.People = 20
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.Graph.People)
}
