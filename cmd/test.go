package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
	"github.com/meysamhadeli/doctreeai/providers/models"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const connectionTestPrompt = "Respond with exactly: 'Connection test successful'"

// testCmd: doctreeai test
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the configured AI provider answers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleTestCommand(rootDependencies)
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func handleTestCommand(rootDependencies *RootDependencies) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider := rootDependencies.Provider
	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)
	spinnerInstance, _ := spinner.Start(fmt.Sprintf("Contacting %s (%s)...", provider.Name(), provider.ModelName()))

	resp, err := provider.Summarize(ctx, models.SummaryRequest{
		System:      "You are a connectivity check.",
		Prompt:      connectionTestPrompt,
		ContextPath: "connection-test",
	})
	_ = spinnerInstance.Stop()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	fmt.Println(lipgloss.Green.Render("✓ Provider responded: " + resp.Text))
	rootDependencies.TokenManagement.DisplayTokens(provider.Name(), provider.ModelName())
	return nil
}
