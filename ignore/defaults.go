package ignore

// DefaultIgnorePatterns are always excluded from the summarized tree.
// Plain names match any path component, glob patterns match the base name.
var DefaultIgnorePatterns = []string{
	// Version control
	".git",
	".svn",
	".hg",

	// Dependencies
	"node_modules",
	"vendor",
	"bower_components",
	".venv",
	"venv",
	"__pycache__",

	// Build output
	"dist",
	"build",
	"out",
	"target",
	"bin",
	"obj",

	// IDE / Editor
	".idea",
	".vscode",
	".vs",
	"*.swp",
	"*~",

	// OS files
	".DS_Store",
	"Thumbs.db",

	// Secrets and local state
	".env",
	"*.log",
	"*.lock",
	"*.sum",

	// Binary and media
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.o",
	"*.a",
	"*.class",
	"*.jar",
	"*.zip",
	"*.tar",
	"*.tar.gz",
	"*.tgz",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.ico",
	"*.webp",
	"*.mp3",
	"*.mp4",
	"*.wav",
	"*.pdf",
}

// alwaysSkippedDirs are pruned without consulting any pattern.
var alwaysSkippedDirs = map[string]struct{}{
	".git":         {},
	".svn":         {},
	".hg":          {},
	"node_modules": {},
	"__pycache__":  {},
	".idea":        {},
	".vscode":      {},
	".venv":        {},
	"venv":         {},
}
