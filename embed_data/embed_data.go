// Package embed_data holds prompt templates and tree-sitter queries compiled into the binary.
package embed_data

import _ "embed"

//go:embed prompts/system_prompt.tmpl
var SystemPrompt []byte

//go:embed prompts/file_summary.tmpl
var FileSummaryPrompt []byte

//go:embed prompts/directory_summary.tmpl
var DirectorySummaryPrompt []byte

//go:embed prompts/readme_line.tmpl
var ReadmeLinePrompt []byte

//go:embed prompts/readme_skeleton.tmpl
var ReadmeSkeleton []byte

//go:embed tree-sitter/queries/go.json
var GoQuery []byte

//go:embed tree-sitter/queries/python.json
var PythonQuery []byte

//go:embed tree-sitter/queries/java.json
var JavaQuery []byte

//go:embed tree-sitter/queries/javascript.json
var JavascriptQuery []byte

//go:embed tree-sitter/queries/typescript.json
var TypescriptQuery []byte

//go:embed tree-sitter/queries/csharp.json
var CSharpQuery []byte

//go:embed models/model_details.json
var ModelDetails []byte
