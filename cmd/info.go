package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/meysamhadeli/doctreeai/cache"
	"github.com/meysamhadeli/doctreeai/config"
	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
	"github.com/meysamhadeli/doctreeai/readme"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/spf13/cobra"
)

// infoCmd: doctreeai info
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show configuration, cache statistics and README status.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleInfoCommand(cmd)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func handleInfoCommand(cmd *cobra.Command) error {
	cwd, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ai := cfg.AIProviderConfig

	configFile := config.ConfigFileUsed(cmd.Flags(), cwd)
	if configFile == "" {
		configFile = "(defaults)"
	}
	apiKey := "not set"
	if ai.ApiKey != "" {
		apiKey = "set"
	}
	printSection("Configuration", []string{
		fmt.Sprintf("Target:        %s", cwd),
		fmt.Sprintf("Config file:   %s", configFile),
		fmt.Sprintf("Provider:      %s", ai.Provider),
		fmt.Sprintf("Model:         %s", ai.Model),
		fmt.Sprintf("Base URL:      %s", ai.BaseURL),
		fmt.Sprintf("API key:       %s", apiKey),
		fmt.Sprintf("README mode:   %s", cfg.ReadmeMode),
		fmt.Sprintf("Workers:       %d (max %d parallel calls)", cfg.Workers, cfg.MaxParallelCalls),
	})
	if err := cfg.Validate(); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Configuration problems: %v", err)))
	}

	dir := cacheDir(cwd, cfg)
	cacheLines := []string{fmt.Sprintf("Directory:     %s", dir)}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		cacheLines = append(cacheLines, "Not initialized. Run 'doctreeai init' or 'doctreeai run'.")
	} else {
		store, err := cache.Open(dir, utils.NewLogger(cfg.LogLevel))
		if err != nil {
			return err
		}
		stats, err := store.Stats()
		if err != nil {
			return err
		}
		cacheLines = append(cacheLines,
			fmt.Sprintf("Entries:       %d", stats.EntryCount),
			fmt.Sprintf("Size:          %.2f KB", float64(stats.TotalSize)/1024),
			fmt.Sprintf("Mirrored:      %d paths", stats.MirrorCount),
		)
		if !stats.NewestRecord.IsZero() {
			cacheLines = append(cacheLines, fmt.Sprintf("Last update:   %s", stats.NewestRecord.Local().Format(time.DateTime)))
		}
	}
	printSection("Cache", cacheLines)

	info, err := readme.Inspect(readmePath(cwd, cfg), readme.MappingPath(dir))
	if err != nil {
		return err
	}
	readmeLines := []string{fmt.Sprintf("File:          %s", cfg.ReadmeFile)}
	if !info.Exists {
		readmeLines = append(readmeLines, "Not found.")
	} else {
		sections := "none"
		if len(info.Sections) > 0 {
			sections = strings.Join(info.Sections, ", ")
		}
		readmeLines = append(readmeLines,
			fmt.Sprintf("Size:          %d bytes, %d lines", info.Size, info.Lines),
			fmt.Sprintf("Sections:      %s", sections),
			fmt.Sprintf("Description:   %t", info.HasDescription),
			fmt.Sprintf("Mapped lines:  %d", info.MappedLines),
		)
	}
	printSection("README", readmeLines)
	return nil
}

func printSection(title string, lines []string) {
	fmt.Println(lipgloss.BoxStyle.Render(lipgloss.Title.Render(title) + "\n" + strings.Join(lines, "\n")))
}
