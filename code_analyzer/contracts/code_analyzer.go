package contracts

import "context"

// ICodeAnalyzer extracts declaration names from a file.
type ICodeAnalyzer interface {
	ExtractSymbols(ctx context.Context, filePath string, sourceCode []byte) []string
}
