package code_analyzer

import (
	"path/filepath"
	"strings"
)

var extensionToLanguage = map[string]string{
	"go":   "go",
	"py":   "python",
	"pyi":  "python",
	"java": "java",
	"js":   "javascript",
	"jsx":  "javascript",
	"mjs":  "javascript",
	"cjs":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"mts":  "typescript",
	"cs":   "csharp",
	"rs":   "rust",
	"zig":  "zig",
}

// GetSupportedLanguage returns the analyzer language for a path, or "" when
// no symbol extraction is available.
func GetSupportedLanguage(filePath string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	return extensionToLanguage[ext]
}
