package tree

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/pterm/pterm"
)

// IncludeFunc is the externally supplied inclusion predicate. relPath is slash
// separated and relative to the root.
type IncludeFunc func(relPath string, isDir bool) bool

// Warning records a path skipped during the build.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// Builder assembles a tree from disk.
type Builder struct {
	Root    string
	Include IncludeFunc
	// MaxFileSize skips larger files with a warning. Zero disables the limit.
	MaxFileSize int64
	Logger      *pterm.Logger
}

// Build reads the tree under Root. File fingerprints are computed while reading,
// directory fingerprints after their children (post-order). Unreadable entries
// are skipped and reported as warnings.
func (b *Builder) Build(ctx context.Context) (*Node, []Warning, error) {
	info, err := os.Stat(b.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat root %s: %w", b.Root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("root %s is not a directory", b.Root)
	}

	var warnings []Warning
	root, err := b.buildDir(ctx, RootPath, &warnings)
	if err != nil {
		return nil, warnings, err
	}

	if b.Logger != nil {
		b.Logger.Debug("tree built", b.Logger.Args("root", b.Root, "nodes", root.Count(), "warnings", len(warnings)))
	}
	return root, warnings, nil
}

func (b *Builder) buildDir(ctx context.Context, relDir string, warnings *[]Warning) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(b.absPath(relDir))
	if err != nil {
		if relDir == RootPath {
			return nil, fmt.Errorf("failed to read root directory: %w", err)
		}
		b.warn(warnings, relDir, err)
		return nil, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	children := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		relPath := entry.Name()
		if relDir != RootPath {
			relPath = path.Join(relDir, entry.Name())
		}

		switch {
		case entry.IsDir():
			if b.Include != nil && !b.Include(relPath, true) {
				continue
			}
			child, err := b.buildDir(ctx, relPath, warnings)
			if err != nil {
				return nil, err
			}
			if child != nil {
				children = append(children, child)
			}

		case entry.Type().IsRegular():
			if b.Include != nil && !b.Include(relPath, false) {
				continue
			}
			if child := b.buildFile(relPath, warnings); child != nil {
				children = append(children, child)
			}

		default:
			// Sockets, devices and symlinks are not summarized.
			continue
		}
	}

	dir := NewDirectory(relDir, children)
	dir.Rehash()
	return dir, nil
}

func (b *Builder) buildFile(relPath string, warnings *[]Warning) *Node {
	abs := b.absPath(relPath)

	if b.MaxFileSize > 0 {
		info, err := os.Stat(abs)
		if err != nil {
			b.warn(warnings, relPath, err)
			return nil
		}
		if info.Size() > b.MaxFileSize {
			b.warn(warnings, relPath, fmt.Errorf("file size %d exceeds limit %d", info.Size(), b.MaxFileSize))
			return nil
		}
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		b.warn(warnings, relPath, err)
		return nil
	}

	node := NewFile(relPath, content)
	node.Binary = isBinaryContent(content)
	return node
}

func (b *Builder) absPath(relPath string) string {
	if relPath == RootPath {
		return b.Root
	}
	return filepath.Join(b.Root, filepath.FromSlash(relPath))
}

func (b *Builder) warn(warnings *[]Warning, relPath string, err error) {
	*warnings = append(*warnings, Warning{Path: relPath, Err: err})
	if b.Logger != nil {
		b.Logger.Warn("skipping unreadable path", b.Logger.Args("path", relPath, "error", err))
	}
}

// isBinaryContent looks for a NUL byte in the first 512 bytes.
func isBinaryContent(data []byte) bool {
	checkSize := 512
	if len(data) < checkSize {
		checkSize = len(data)
	}
	for i := 0; i < checkSize; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
