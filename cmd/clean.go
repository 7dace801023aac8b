package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/meysamhadeli/doctreeai/cache"
	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every cached summary and the README mapping.",
	Long: `The 'clean' command deletes the cache directory, including all summary records, the
directory mirror and the README mapping. The next run recomputes every summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		stats, _ := cmd.Flags().GetBool("stats")
		return handleCleanCommand(cmd, force, stats)
	},
}

func init() {
	cleanCmd.Flags().BoolP("force", "f", false, "Remove the cache without confirmation.")
	cleanCmd.Flags().BoolP("stats", "s", false, "Only show cache statistics.")
	rootCmd.AddCommand(cleanCmd)
}

func handleCleanCommand(cmd *cobra.Command, force bool, showStats bool) error {
	cwd, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := cacheDir(cwd, cfg)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		fmt.Println(lipgloss.Yellow.Render("No cache to remove."))
		return nil
	}

	store, err := cache.Open(dir, utils.NewLogger(cfg.LogLevel))
	if err != nil {
		return err
	}

	stats, err := store.Stats()
	if err != nil {
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Warning: could not read statistics: %v", err)))
	} else {
		fmt.Println(lipgloss.Info.Render("Cache Statistics:"))
		fmt.Printf("  Cache Directory: %s\n", dir)
		fmt.Printf("  Cached Summaries: %d\n", stats.EntryCount)
		fmt.Printf("  Total Size: %.2f MB\n", float64(stats.TotalSize)/(1024*1024))
	}
	if showStats {
		return nil
	}

	if !force {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		confirmed, err := utils.ConfirmPrompt(ctx, bufio.NewReader(os.Stdin), os.Stdout, "Remove the entire cache?")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println(lipgloss.Yellow.Render("Cache removal cancelled."))
			return nil
		}
	}

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)
	spinnerInstance, _ := spinner.Start("Removing cache...")

	err = store.InvalidateAll()
	_ = spinnerInstance.Stop()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("error removing cache: %w", err)
	}
	fmt.Println(lipgloss.Green.Render("✓ Cache has been removed."))
	return nil
}
