package code_analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/meysamhadeli/doctreeai/code_analyzer/contracts"
	"github.com/meysamhadeli/doctreeai/code_analyzer/models"
	"github.com/meysamhadeli/doctreeai/embed_data"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/pterm/pterm"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// maxSymbols bounds what is stored per cache entry.
const maxSymbols = 64

type compiledQuery struct {
	tag   string
	query *sitter.Query
}

type languageQueries struct {
	once    sync.Once
	lang    *sitter.Language
	queries []compiledQuery
	err     error
}

// CodeAnalyzer extracts declared symbol names from source files. Queries are
// compiled once per language and shared; parsers are created per call.
type CodeAnalyzer struct {
	logger    *pterm.Logger
	languages map[string]*languageQueries
}

// NewCodeAnalyzer initializes a new CodeAnalyzer.
func NewCodeAnalyzer(logger *pterm.Logger) contracts.ICodeAnalyzer {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &CodeAnalyzer{
		logger: logger,
		languages: map[string]*languageQueries{
			"go":         {lang: golang.GetLanguage()},
			"python":     {lang: python.GetLanguage()},
			"java":       {lang: java.GetLanguage()},
			"javascript": {lang: javascript.GetLanguage()},
			"typescript": {lang: typescript.GetLanguage()},
			"csharp":     {lang: csharp.GetLanguage()},
		},
	}
}

// ExtractSymbols returns sorted, de-duplicated "kind: name" strings for the
// declarations in sourceCode. Unsupported languages yield nil.
func (analyzer *CodeAnalyzer) ExtractSymbols(ctx context.Context, filePath string, sourceCode []byte) []string {
	language := GetSupportedLanguage(filePath)

	var symbols []models.Symbol
	switch language {
	case "":
		return nil
	case "rust":
		symbols = extractByPatterns(string(sourceCode), rustPatterns)
	case "zig":
		symbols = extractByPatterns(string(sourceCode), zigPatterns)
	default:
		var err error
		symbols, err = analyzer.processFile(ctx, language, sourceCode)
		if err != nil {
			analyzer.logger.Debug("symbol extraction failed", analyzer.logger.Args("path", filePath, "error", err))
			return nil
		}
	}

	return normalize(symbols)
}

func (analyzer *CodeAnalyzer) processFile(ctx context.Context, language string, sourceCode []byte) ([]models.Symbol, error) {
	entry, ok := analyzer.languages[language]
	if !ok {
		return nil, fmt.Errorf("no grammar for %s", language)
	}
	entry.once.Do(func() {
		entry.queries, entry.err = compileQueries(entry.lang, queryFor(language))
	})
	if entry.err != nil {
		return nil, entry.err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(entry.lang)

	tree, err := parser.ParseCtx(ctx, nil, sourceCode)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var symbols []models.Symbol
	for _, q := range entry.queries {
		cursor := sitter.NewQueryCursor()
		cursor.Exec(q.query, tree.RootNode())
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			for _, capture := range match.Captures {
				symbols = append(symbols, models.Symbol{Kind: q.tag, Name: capture.Node.Content(sourceCode)})
			}
		}
		cursor.Close()
	}
	return symbols, nil
}

func queryFor(language string) []byte {
	switch language {
	case "go":
		return embed_data.GoQuery
	case "python":
		return embed_data.PythonQuery
	case "java":
		return embed_data.JavaQuery
	case "javascript":
		return embed_data.JavascriptQuery
	case "typescript":
		return embed_data.TypescriptQuery
	case "csharp":
		return embed_data.CSharpQuery
	}
	return nil
}

func compileQueries(lang *sitter.Language, raw []byte) ([]compiledQuery, error) {
	queries := make(map[string]string)
	if err := json.Unmarshal(raw, &queries); err != nil {
		return nil, fmt.Errorf("failed to parse query set: %w", err)
	}

	tags := make([]string, 0, len(queries))
	for tag := range queries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	compiled := make([]compiledQuery, 0, len(tags))
	for _, tag := range tags {
		q, err := sitter.NewQuery([]byte(queries[tag]), lang)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s query: %w", tag, err)
		}
		compiled = append(compiled, compiledQuery{tag: tag, query: q})
	}
	return compiled, nil
}

type symbolPattern struct {
	kind string
	re   *regexp.Regexp
}

// Order matters: the first matching pattern wins for a line.
var rustPatterns = []symbolPattern{
	{"function", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)`)},
	{"struct", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)`)},
	{"enum", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+(\w+)`)},
	{"trait", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)`)},
	{"impl", regexp.MustCompile(`^\s*impl(?:\s*<[^>]*>)?\s+(?:\w+\s+for\s+)?(\w+)`)},
	{"mod", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)`)},
}

var zigPatterns = []symbolPattern{
	{"test", regexp.MustCompile(`^\s*test\s+"([^"]+)"`)},
	{"struct", regexp.MustCompile(`^\s*(?:pub\s+)?const\s+(\w+)\s*=\s*(?:packed\s+|extern\s+)?struct`)},
	{"enum", regexp.MustCompile(`^\s*(?:pub\s+)?const\s+(\w+)\s*=\s*enum`)},
	{"union", regexp.MustCompile(`^\s*(?:pub\s+)?const\s+(\w+)\s*=\s*union`)},
	{"function", regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+(\w+)`)},
}

func extractByPatterns(sourceCode string, patterns []symbolPattern) []models.Symbol {
	var symbols []models.Symbol
	for _, line := range strings.Split(sourceCode, "\n") {
		for _, p := range patterns {
			if matches := p.re.FindStringSubmatch(line); matches != nil {
				symbols = append(symbols, models.Symbol{Kind: p.kind, Name: matches[1]})
				break
			}
		}
	}
	return symbols
}

func normalize(symbols []models.Symbol) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		key := s.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	if len(out) > maxSymbols {
		out = out[:maxSymbols]
	}
	return out
}
