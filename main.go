package main

import (
	"fmt"
	"os"

	"github.com/meysamhadeli/doctreeai/cmd"
	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, lipgloss.Red.Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}
