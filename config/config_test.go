package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "doctreeai"}
	InitFlags(cmd)
	return cmd
}

func TestLoadConfigs_Defaults(t *testing.T) {
	cfg, err := LoadConfigs(newRootCmd().PersistentFlags(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ".doctreeai_cache", cfg.CacheDir)
	assert.Equal(t, "README.md", cfg.ReadmeFile)
	assert.Equal(t, "validate", cfg.ReadmeMode)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 4, cfg.MaxParallelCalls)
	assert.Equal(t, int64(100*1024), cfg.MaxFileSize)
	assert.Equal(t, "openai", cfg.AIProviderConfig.Provider)
	assert.InDelta(t, 0.3, cfg.AIProviderConfig.Temperature, 1e-6)
	assert.Equal(t, 120*time.Second, cfg.AIProviderConfig.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigs_Precedence(t *testing.T) {
	dir := t.TempDir()
	yml := `cache_dir: .summaries
readme_mode: generate
workers: 2
exclude:
  - "docs/**"
ai_provider_config:
  provider: ollama
  base_url: http://localhost:11434/api
  model: llama3.2
  timeout: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName+".yml"), []byte(yml), 0o644))
	t.Setenv("OPENAI_MODEL_NAME", "qwen2.5")
	t.Setenv("DOCTREEAI_CACHE_DIR", ".env_cache")

	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Set("workers", "6"))

	cfg, err := LoadConfigs(cmd.PersistentFlags(), dir)
	require.NoError(t, err)

	assert.Equal(t, "generate", cfg.ReadmeMode, "file")
	assert.Equal(t, []string{"docs/**"}, cfg.Exclude, "file")
	assert.Equal(t, 30*time.Second, cfg.AIProviderConfig.Timeout, "file")
	assert.Equal(t, "ollama", cfg.AIProviderConfig.Provider, "file")
	assert.Equal(t, "qwen2.5", cfg.AIProviderConfig.Model, "env over file")
	assert.Equal(t, ".env_cache", cfg.CacheDir, "env over file")
	assert.Equal(t, 6, cfg.Workers, "flag over file")
}

func TestLoadConfigs_ExplicitFileAndVerbose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"warn","max_parallel_calls":1}`), 0o644))

	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Set("config", path))
	require.NoError(t, cmd.PersistentFlags().Set("verbose", "true"))

	cfg, err := LoadConfigs(cmd.PersistentFlags(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.MaxParallelCalls)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, path, ConfigFileUsed(cmd.PersistentFlags(), t.TempDir()))
}

func TestLoadConfigs_BrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName+".yaml"), []byte("workers: [oops"), 0o644))

	_, err := LoadConfigs(newRootCmd().PersistentFlags(), dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty cache dir":  func(c *Config) { c.CacheDir = " " },
		"unknown mode":     func(c *Config) { c.ReadmeMode = "rewrite" },
		"zero workers":     func(c *Config) { c.Workers = 0 },
		"zero parallel":    func(c *Config) { c.MaxParallelCalls = 0 },
		"bad scheme":       func(c *Config) { c.AIProviderConfig.BaseURL = "ftp://example.com" },
		"empty model":      func(c *Config) { c.AIProviderConfig.Model = "" },
		"unknown provider": func(c *Config) { c.AIProviderConfig.Provider = "carrier-pigeon" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadConfigs(newRootCmd().PersistentFlags(), t.TempDir())
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+".yml")
	require.NoError(t, WriteDefault(path, DefaultConfig))
	assert.ErrorIs(t, WriteDefault(path, DefaultConfig), ErrConfigExists)

	cfg, err := LoadConfigs(nil, dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig.RetryMaxDelay, cfg.RetryMaxDelay)
	assert.Equal(t, DefaultConfig.AIProviderConfig.Model, cfg.AIProviderConfig.Model)
	assert.Equal(t, DefaultConfig.AIProviderConfig.Timeout, cfg.AIProviderConfig.Timeout)
	assert.NoError(t, cfg.Validate())

	policy := cfg.RetryPolicy()
	assert.Equal(t, DefaultConfig.MaxAttempts, policy.MaxAttempts)
}
