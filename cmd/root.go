package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meysamhadeli/doctreeai/config"
	"github.com/meysamhadeli/doctreeai/providers"
	"github.com/meysamhadeli/doctreeai/providers/contracts"
	"github.com/meysamhadeli/doctreeai/token_management"
	token_contracts "github.com/meysamhadeli/doctreeai/token_management/contracts"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// RootDependencies is what every subcommand needs: the resolved target
// directory, its configuration and the configured provider.
type RootDependencies struct {
	Cwd             string
	Config          *config.Config
	Logger          *pterm.Logger
	TokenManagement token_contracts.ITokenManagement
	Provider        contracts.ISummaryProvider
}

var rootCmd = &cobra.Command{
	Use:   "doctreeai",
	Short: "Hierarchical AI summaries of a source tree, kept in sync with its README.",
	Long: `DocTreeAI summarizes a project bottom-up, from files to directories to the whole project,
and caches every summary by content fingerprint so unchanged code is never summarized twice.
It maps README lines to the code they describe and reports, or rewrites, the lines that went stale.`,
	Version:       config.DefaultConfig.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	config.InitFlags(rootCmd)
	rootCmd.PersistentFlags().StringP("path", "p", "", "Target directory (defaults to the current directory).")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// targetDir resolves --path to an absolute directory.
func targetDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("path")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("target directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("target %s is not a directory", abs)
	}
	return abs, nil
}

// loadConfig resolves the target directory and loads its configuration.
func loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	cwd, err := targetDir(cmd)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.LoadConfigs(cmd.Flags(), cwd)
	if err != nil {
		return "", nil, err
	}
	return cwd, cfg, nil
}

// handleRootCommand builds the dependencies shared by the commands that talk
// to the provider.
func handleRootCommand(cmd *cobra.Command) (*RootDependencies, error) {
	cwd, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	deps := &RootDependencies{
		Cwd:             cwd,
		Config:          cfg,
		Logger:          utils.NewLogger(cfg.LogLevel),
		TokenManagement: token_management.NewTokenManager(),
	}
	cfg.AIProviderConfig.TokenManagement = deps.TokenManagement

	deps.Provider, err = providers.ChooseProvider(cfg.AIProviderConfig)
	if err != nil {
		return nil, err
	}
	deps.Logger.Debug("configuration loaded", deps.Logger.Args(
		"target", cwd,
		"config_file", config.ConfigFileUsed(cmd.Flags(), cwd),
		"provider", deps.Provider.Name(),
		"model", deps.Provider.ModelName(),
	))
	return deps, nil
}

// cacheDir returns the absolute cache directory of the target.
func cacheDir(cwd string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.CacheDir) {
		return cfg.CacheDir
	}
	return filepath.Join(cwd, cfg.CacheDir)
}

// readmePath returns the absolute README path of the target.
func readmePath(cwd string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.ReadmeFile) {
		return cfg.ReadmeFile
	}
	return filepath.Join(cwd, cfg.ReadmeFile)
}

// relativeTo returns target relative to base, or "" when it lies outside.
func relativeTo(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}
