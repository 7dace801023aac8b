package ignore

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// IgnoreFileName is the project-local ignore file read in addition to .gitignore.
const IgnoreFileName = ".doctreeignore"

// Matcher decides which paths belong to the summarized tree. It combines the default
// patterns, .gitignore, .doctreeignore, user exclude globs and a file size limit.
// Reload takes the write lock, Include takes the read lock.
type Matcher struct {
	mu               sync.RWMutex
	rootDir          string
	gitIgnore        gitignore.GitIgnore
	projectIgnore    gitignore.GitIgnore
	nestedMu         sync.Mutex
	nested           map[string]dirIgnores
	excludes         []string
	hiddenAllowed    map[string]struct{}
	maxFileSizeBytes int64
}

// MatcherOptions configures the matcher.
type MatcherOptions struct {
	RootDir string
	// Excludes are doublestar globs relative to RootDir, e.g. "docs/**" or "**/*.gen.go".
	Excludes []string
	// MaxFileSizeBytes skips larger files. Zero means the 100 KiB default.
	MaxFileSizeBytes int64
}

// dirIgnores are the ignore files of one subdirectory. Both are nil when the
// directory has none.
type dirIgnores struct {
	gitIgnore     gitignore.GitIgnore
	projectIgnore gitignore.GitIgnore
}

// NewMatcher loads the ignore files found in the root directory. Ignore files in
// subdirectories are loaded the first time a path below them is checked.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		rootDir:          options.RootDir,
		maxFileSizeBytes: options.MaxFileSizeBytes,
		hiddenAllowed:    map[string]struct{}{".gitignore": {}, IgnoreFileName: {}},
		nested:           make(map[string]dirIgnores),
	}
	for _, pattern := range options.Excludes {
		pattern = strings.TrimSpace(filepath.ToSlash(pattern))
		if pattern != "" && doublestar.ValidatePattern(pattern) {
			matcher.excludes = append(matcher.excludes, pattern)
		}
	}
	if matcher.maxFileSizeBytes <= 0 {
		matcher.maxFileSizeBytes = 100 * 1024
	}

	matcher.gitIgnore = loadIgnoreFile(filepath.Join(options.RootDir, ".gitignore"), options.RootDir)
	matcher.projectIgnore = loadIgnoreFile(filepath.Join(options.RootDir, IgnoreFileName), options.RootDir)

	return matcher
}

// Include reports whether relPath (slash separated, relative to the root) is part of the tree.
// It is the predicate handed to the tree builder.
func (m *Matcher) Include(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return true
	}

	base := path.Base(relPath)
	if isDir {
		if _, skip := alwaysSkippedDirs[base]; skip {
			return false
		}
	}
	if strings.HasPrefix(base, ".") {
		if _, ok := m.hiddenAllowed[base]; !ok {
			return false
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if matchesDefaultPatterns(relPath) {
		return false
	}
	if matchGitIgnore(m.gitIgnore, relPath, isDir) || matchGitIgnore(m.projectIgnore, relPath, isDir) {
		return false
	}
	if m.matchNested(relPath, isDir) {
		return false
	}
	for _, pattern := range m.excludes {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return false
		}
		if isDir {
			if ok, _ := doublestar.Match(pattern, relPath+"/"); ok {
				return false
			}
		}
	}
	return true
}

// ExcludePath removes a file or directory (relative to the root) from the tree,
// such as the cache directory or the README being cross-referenced.
func (m *Matcher) ExcludePath(relPath string) {
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	if relPath == "" || strings.HasPrefix(relPath, "..") {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.excludes = append(m.excludes, relPath, relPath+"/**")
}

// IsFileTooLarge reports whether a file exceeds the configured size limit.
func (m *Matcher) IsFileTooLarge(size int64) bool {
	return size > m.maxFileSizeBytes
}

// ShouldIgnore adapts Include to absolute paths for the file watcher.
func (m *Matcher) ShouldIgnore(absolutePath string) bool {
	rel, err := filepath.Rel(m.rootDir, absolutePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	isDir := false
	if info, err := os.Stat(absolutePath); err == nil {
		isDir = info.IsDir()
	}
	return !m.Include(rel, isDir)
}

// ShouldIgnoreDir is ShouldIgnore for paths known to be directories.
func (m *Matcher) ShouldIgnoreDir(absolutePath string) bool {
	rel, err := filepath.Rel(m.rootDir, absolutePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	return !m.Include(rel, true)
}

// Reload re-reads .gitignore and .doctreeignore from disk.
func (m *Matcher) Reload() {
	newGitIgnore := loadIgnoreFile(filepath.Join(m.rootDir, ".gitignore"), m.rootDir)
	newProjectIgnore := loadIgnoreFile(filepath.Join(m.rootDir, IgnoreFileName), m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gitIgnore = newGitIgnore
	m.projectIgnore = newProjectIgnore

	m.nestedMu.Lock()
	m.nested = make(map[string]dirIgnores)
	m.nestedMu.Unlock()
}

// matchNested checks the ignore files of every ancestor directory of relPath
// below the root. Patterns are relative to the directory holding the file.
func (m *Matcher) matchNested(relPath string, isDir bool) bool {
	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		dir := strings.Join(parts[:i], "/")
		rest := strings.Join(parts[i:], "/")
		ignores := m.dirIgnores(dir)
		if matchGitIgnore(ignores.gitIgnore, rest, isDir) || matchGitIgnore(ignores.projectIgnore, rest, isDir) {
			return true
		}
	}
	return false
}

func (m *Matcher) dirIgnores(relDir string) dirIgnores {
	m.nestedMu.Lock()
	defer m.nestedMu.Unlock()
	if ignores, ok := m.nested[relDir]; ok {
		return ignores
	}
	absDir := filepath.Join(m.rootDir, filepath.FromSlash(relDir))
	ignores := dirIgnores{
		gitIgnore:     loadIgnoreFile(filepath.Join(absDir, ".gitignore"), absDir),
		projectIgnore: loadIgnoreFile(filepath.Join(absDir, IgnoreFileName), absDir),
	}
	m.nested[relDir] = ignores
	return ignores
}

func matchesDefaultPatterns(relPath string) bool {
	baseLower := strings.ToLower(path.Base(relPath))
	parts := strings.Split(strings.ToLower(relPath), "/")

	for _, pattern := range DefaultIgnorePatterns {
		pattern = strings.ToLower(pattern)
		if !strings.ContainsAny(pattern, "*?[") {
			for _, part := range parts {
				if part == pattern {
					return true
				}
			}
			continue
		}
		if matched, err := path.Match(pattern, baseLower); err == nil && matched {
			return true
		}
	}
	return false
}

func matchGitIgnore(gi gitignore.GitIgnore, relPath string, isDir bool) bool {
	if gi == nil {
		return false
	}
	match := gi.Relative(relPath, isDir)
	return match != nil && match.Ignore()
}

// loadIgnoreFile returns nil when the file does not exist.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
