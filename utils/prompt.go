package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
)

// ConfirmPrompt asks a yes/no question and waits for an answer or ctx.
// Anything but "y" or "yes" counts as no, and so does end of input.
func ConfirmPrompt(ctx context.Context, reader *bufio.Reader, w io.Writer, question string) (bool, error) {
	answers := make(chan string, 1)
	errs := make(chan error, 1)

	fmt.Fprint(w, lipgloss.BlueSky.Render(question+" [y/N] "))
	go func() {
		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			errs <- fmt.Errorf("error reading input: %w", err)
			return
		}
		answers <- strings.ToLower(strings.TrimSpace(input))
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(w)
		return false, ctx.Err()
	case err := <-errs:
		return false, err
	case answer := <-answers:
		return answer == "y" || answer == "yes", nil
	}
}
