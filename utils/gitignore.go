package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnsureGitignoreEntry appends entry to dir/.gitignore unless an equivalent
// pattern is already there. The file is created when missing.
func EnsureGitignoreEntry(dir string, entry string) (bool, error) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	patterns, err := readGitignore(gitignorePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read .gitignore: %w", err)
	}
	want := normalizePattern(entry)
	for _, pattern := range patterns {
		if normalizePattern(pattern) == want {
			return false, nil
		}
	}

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read .gitignore: %w", err)
	}
	var b strings.Builder
	b.Write(content)
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(entry + "\n")

	if err := os.WriteFile(gitignorePath, []byte(b.String()), 0o644); err != nil {
		return false, fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return true, nil
}

// readGitignore reads the .gitignore file and returns the list of ignore patterns.
func readGitignore(gitignorePath string) ([]string, error) {
	content, err := os.ReadFile(gitignorePath)
	if err != nil {
		return nil, err
	}
	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, nil
}

func normalizePattern(pattern string) string {
	return strings.Trim(filepath.ToSlash(strings.TrimSpace(pattern)), "/")
}
