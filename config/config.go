package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meysamhadeli/doctreeai/providers"
	"github.com/meysamhadeli/doctreeai/readme"
	"github.com/meysamhadeli/doctreeai/summarizer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the config file base name looked up in the target directory.
const ConfigFileName = "doctreeai-config"

// ErrConfigExists is returned by WriteDefault when a config file is already present.
var ErrConfigExists = errors.New("configuration file already exists")

// Config represents the structure of the configuration file
type Config struct {
	Version          string                      `mapstructure:"version" yaml:"version"`
	Theme            string                      `mapstructure:"theme" yaml:"theme"`
	LogLevel         string                      `mapstructure:"log_level" yaml:"log_level"`
	CacheDir         string                      `mapstructure:"cache_dir" yaml:"cache_dir"`
	ReadmeFile       string                      `mapstructure:"readme_file" yaml:"readme_file"`
	ReadmeMode       string                      `mapstructure:"readme_mode" yaml:"readme_mode"`
	Workers          int                         `mapstructure:"workers" yaml:"workers"`
	MaxParallelCalls int                         `mapstructure:"max_parallel_calls" yaml:"max_parallel_calls"`
	MaxAttempts      int                         `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryBaseDelay   time.Duration               `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration               `mapstructure:"retry_max_delay" yaml:"retry_max_delay"`
	MaxFileSize      int64                       `mapstructure:"max_file_size" yaml:"max_file_size"`
	Exclude          []string                    `mapstructure:"exclude" yaml:"exclude"`
	AIProviderConfig *providers.AIProviderConfig `mapstructure:"ai_provider_config" yaml:"ai_provider_config"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Version:          "1.0.0",
	Theme:            "dracula",
	LogLevel:         "info",
	CacheDir:         ".doctreeai_cache",
	ReadmeFile:       "README.md",
	ReadmeMode:       string(readme.ModeValidate),
	Workers:          8,
	MaxParallelCalls: 4,
	MaxAttempts:      summarizer.DefaultRetryPolicy.MaxAttempts,
	RetryBaseDelay:   summarizer.DefaultRetryPolicy.BaseDelay,
	RetryMaxDelay:    summarizer.DefaultRetryPolicy.MaxDelay,
	MaxFileSize:      100 * 1024,
	Exclude:          []string{},
	AIProviderConfig: &providers.AIProviderConfig{
		Provider:    "openai",
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   0,
		Timeout:     120 * time.Second,
	},
}

// LoadConfigs merges defaults, the config file, environment variables and
// flags, in increasing order of precedence.
func LoadConfigs(flags *pflag.FlagSet, cwd string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	cfgFile := ""
	if flags != nil {
		cfgFile, _ = flags.GetString("config")
	}
	if cfgFile == "" {
		cfgFile = FindConfigFile(cwd)
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if t := GetConfigFileType(cfgFile); t != "" {
			v.SetConfigType(t)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if config.AIProviderConfig == nil {
		config.AIProviderConfig = &providers.AIProviderConfig{}
	}
	if flags != nil {
		if verbose, _ := flags.GetBool("verbose"); verbose {
			config.LogLevel = "debug"
		}
	}
	return &config, nil
}

// ConfigFileUsed returns the config file LoadConfigs would read, or "".
func ConfigFileUsed(flags *pflag.FlagSet, cwd string) string {
	if flags != nil {
		if cfgFile, _ := flags.GetString("config"); cfgFile != "" {
			return cfgFile
		}
	}
	return FindConfigFile(cwd)
}

// FindConfigFile returns the first doctreeai-config.{yml,yaml,json} in dir.
func FindConfigFile(dir string) string {
	for _, ext := range []string{".yml", ".yaml", ".json"} {
		candidate := filepath.Join(dir, ConfigFileName+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", DefaultConfig.Version)
	v.SetDefault("theme", DefaultConfig.Theme)
	v.SetDefault("log_level", DefaultConfig.LogLevel)
	v.SetDefault("cache_dir", DefaultConfig.CacheDir)
	v.SetDefault("readme_file", DefaultConfig.ReadmeFile)
	v.SetDefault("readme_mode", DefaultConfig.ReadmeMode)
	v.SetDefault("workers", DefaultConfig.Workers)
	v.SetDefault("max_parallel_calls", DefaultConfig.MaxParallelCalls)
	v.SetDefault("max_attempts", DefaultConfig.MaxAttempts)
	v.SetDefault("retry_base_delay", DefaultConfig.RetryBaseDelay)
	v.SetDefault("retry_max_delay", DefaultConfig.RetryMaxDelay)
	v.SetDefault("max_file_size", DefaultConfig.MaxFileSize)
	v.SetDefault("exclude", DefaultConfig.Exclude)
	v.SetDefault("ai_provider_config.provider", DefaultConfig.AIProviderConfig.Provider)
	v.SetDefault("ai_provider_config.base_url", DefaultConfig.AIProviderConfig.BaseURL)
	v.SetDefault("ai_provider_config.model", DefaultConfig.AIProviderConfig.Model)
	v.SetDefault("ai_provider_config.api_key", DefaultConfig.AIProviderConfig.ApiKey)
	v.SetDefault("ai_provider_config.temperature", DefaultConfig.AIProviderConfig.Temperature)
	v.SetDefault("ai_provider_config.max_tokens", DefaultConfig.AIProviderConfig.MaxTokens)
	v.SetDefault("ai_provider_config.timeout", DefaultConfig.AIProviderConfig.Timeout)
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("log_level", "DOCTREEAI_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("cache_dir", "DOCTREEAI_CACHE_DIR")
	_ = v.BindEnv("readme_mode", "DOCTREEAI_README_MODE")
	_ = v.BindEnv("ai_provider_config.provider", "DOCTREEAI_PROVIDER")
	_ = v.BindEnv("ai_provider_config.base_url", "OPENAI_API_BASE", "OPENAI_BASE_URL")
	_ = v.BindEnv("ai_provider_config.model", "OPENAI_MODEL_NAME", "OPENAI_MODEL")
	_ = v.BindEnv("ai_provider_config.api_key", "OPENAI_API_KEY")
}

var flagKeys = map[string]string{
	"theme":              "theme",
	"log_level":          "log_level",
	"cache_dir":          "cache_dir",
	"readme_file":        "readme_file",
	"readme_mode":        "readme_mode",
	"workers":            "workers",
	"max_parallel_calls": "max_parallel_calls",
	"max_attempts":       "max_attempts",
	"max_file_size":      "max_file_size",
	"exclude":            "exclude",
	"provider":           "ai_provider_config.provider",
	"base_url":           "ai_provider_config.base_url",
	"model":              "ai_provider_config.model",
	"api_key":            "ai_provider_config.api_key",
	"temperature":        "ai_provider_config.temperature",
	"max_tokens":         "ai_provider_config.max_tokens",
	"timeout":            "ai_provider_config.timeout",
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a configuration file (JSON or YAML).")
	flags.Bool("verbose", false, "Enable debug logging.")

	flags.String("theme", DefaultConfig.Theme, "Syntax highlighting theme for rendered summaries (e.g., 'dracula', 'monokai').")
	flags.String("log_level", DefaultConfig.LogLevel, "Log level: trace, debug, info, warn or error.")
	flags.String("cache_dir", DefaultConfig.CacheDir, "Cache directory, relative to the target directory.")
	flags.String("readme_file", DefaultConfig.ReadmeFile, "README file to cross-reference, relative to the target directory.")
	flags.String("readme_mode", DefaultConfig.ReadmeMode, "README mode: 'validate' (report stale lines) or 'generate' (rewrite stale lines).")
	flags.Int("workers", DefaultConfig.Workers, "Number of summarizer workers.")
	flags.Int("max_parallel_calls", DefaultConfig.MaxParallelCalls, "Maximum concurrent calls to the AI provider.")
	flags.Int("max_attempts", DefaultConfig.MaxAttempts, "Attempts per summary before a node is marked failed.")
	flags.Int64("max_file_size", DefaultConfig.MaxFileSize, "Skip files larger than this many bytes.")
	flags.StringSlice("exclude", nil, "Glob of paths to exclude (repeatable), e.g. 'docs/**'.")

	flags.String("provider", DefaultConfig.AIProviderConfig.Provider, "The AI provider: 'openai' (any OpenAI compatible API) or 'ollama'.")
	flags.String("base_url", DefaultConfig.AIProviderConfig.BaseURL, "The base URL of the AI provider.")
	flags.String("model", DefaultConfig.AIProviderConfig.Model, "The model used for summaries.")
	flags.String("api_key", "", "The API key used to authenticate with the AI provider.")
	flags.Float32("temperature", DefaultConfig.AIProviderConfig.Temperature, "Sampling temperature for summaries.")
	flags.Int("max_tokens", 0, "Maximum output tokens per summary (0 leaves it to the provider).")
	flags.Duration("timeout", DefaultConfig.AIProviderConfig.Timeout, "Timeout of a single AI provider request.")
}

// Validate rejects settings a run cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, errors.New("cache_dir must not be empty"))
	}
	if strings.TrimSpace(c.ReadmeFile) == "" {
		errs = append(errs, errors.New("readme_file must not be empty"))
	}
	if _, err := readme.ParseMode(c.ReadmeMode); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxParallelCalls < 1 {
		errs = append(errs, fmt.Errorf("max_parallel_calls must be at least 1, got %d", c.MaxParallelCalls))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}

	ai := c.AIProviderConfig
	if ai == nil {
		return errors.Join(append(errs, errors.New("ai_provider_config is missing"))...)
	}
	switch strings.ToLower(ai.Provider) {
	case "openai", "azure", "openai-compatible", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unsupported provider %q", ai.Provider))
	}
	if strings.TrimSpace(ai.Model) == "" {
		errs = append(errs, errors.New("ai_provider_config.model must not be empty"))
	}
	if u, err := url.Parse(ai.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("ai_provider_config.base_url must be an http(s) URL, got %q", ai.BaseURL))
	}
	return errors.Join(errs...)
}

// RetryPolicy returns the summarizer retry policy configured by c.
func (c *Config) RetryPolicy() summarizer.RetryPolicy {
	return summarizer.RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
	}
}

// WriteDefault writes cfg as YAML to path, refusing to overwrite.
func WriteDefault(path string, cfg Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

// GetConfigFileType returns the type of the configuration file based on its extension
func GetConfigFileType(filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "json"
	} else if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		return "yaml"
	}
	return ""
}
