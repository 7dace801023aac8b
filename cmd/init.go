package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/meysamhadeli/doctreeai/cache"
	"github.com/meysamhadeli/doctreeai/config"
	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/spf13/cobra"
)

// initCmd: doctreeai init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the cache directory, ignore it in git and write a default config.",
	Long: `The 'init' command prepares a project for DocTreeAI. It creates the cache directory,
adds it to .gitignore (creating the file when needed) and writes doctreeai-config.yml with the
current settings unless a configuration file already exists. API keys are never written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		skipConfig, _ := cmd.Flags().GetBool("no-config")
		return handleInitCommand(cmd, skipConfig)
	},
}

func init() {
	initCmd.Flags().Bool("no-config", false, "Do not write a configuration file.")
	rootCmd.AddCommand(initCmd)
}

func handleInitCommand(cmd *cobra.Command, skipConfig bool) error {
	cwd, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.LogLevel)

	dir := cacheDir(cwd, cfg)
	if _, err := cache.Open(dir, logger); err != nil {
		return err
	}
	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✓ Cache directory ready: %s", dir)))

	if rel := relativeTo(cwd, dir); rel != "" {
		added, err := utils.EnsureGitignoreEntry(cwd, rel+"/")
		if err != nil {
			return err
		}
		if added {
			fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✓ Added %s/ to .gitignore", rel)))
		} else {
			fmt.Println(lipgloss.Gray.Render(fmt.Sprintf("%s/ is already in .gitignore", rel)))
		}
	}

	if skipConfig {
		return nil
	}
	if existing := config.ConfigFileUsed(cmd.Flags(), cwd); existing != "" {
		fmt.Println(lipgloss.Gray.Render(fmt.Sprintf("Using existing configuration %s", existing)))
		return nil
	}

	out := *cfg
	ai := *cfg.AIProviderConfig
	ai.ApiKey = ""
	out.AIProviderConfig = &ai
	path := filepath.Join(cwd, config.ConfigFileName+".yml")
	if err := config.WriteDefault(path, out); err != nil && !errors.Is(err, config.ErrConfigExists) {
		return err
	}
	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✓ Wrote %s", path)))
	return nil
}
