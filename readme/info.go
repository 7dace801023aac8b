package readme

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Info is a quick description of a README for the info command.
type Info struct {
	Exists         bool
	Size           int64
	Lines          int
	Sections       []string
	HasDescription bool
	MappedLines    int
}

var descriptionMarkers = []string{"description", "about", "overview", "what is", "purpose"}

// Inspect reads the README and its mapping without changing either.
func Inspect(readmePath, mappingPath string) (*Info, error) {
	info := &Info{}
	if m, err := LoadMapping(mappingPath); err == nil {
		info.MappedLines = len(m.Entries)
	}

	data, err := os.ReadFile(readmePath)
	if errors.Is(err, fs.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("failed to read %s: %w", readmePath, err)
	}

	info.Exists = true
	info.Size = int64(len(data))
	content := string(data)
	lines := ParseLines(content)
	info.Lines = len(lines)

	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line.Text)
		if isFence(trimmed) {
			inFence = !inFence
			continue
		}
		if inFence || !strings.HasPrefix(trimmed, "#") {
			continue
		}
		if title := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); title != "" {
			info.Sections = append(info.Sections, title)
		}
	}

	lower := strings.ToLower(content)
	for _, marker := range descriptionMarkers {
		if strings.Contains(lower, marker) {
			info.HasDescription = true
			break
		}
	}
	return info, nil
}
