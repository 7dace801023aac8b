package readme

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/meysamhadeli/doctreeai/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTree builds a small completed tree; storeSource controls the store.go
// fingerprint.
func sampleTree(storeSource string) *tree.Node {
	store := tree.NewFile("cache/store.go", []byte(storeSource))
	store.Summary = "Implements `Store`, persisting records with writeRecord."
	store.Symbols = []string{"function: OpenStore"}
	cacheDir := tree.NewDirectory("cache", []*tree.Node{store})
	cacheDir.Rehash()
	cacheDir.Summary = "Content addressed record storage."

	main := tree.NewFile("main.go", []byte("package main"))
	main.Summary = "Entry point that calls run_pipeline."

	root := tree.NewDirectory(tree.RootPath, []*tree.Node{cacheDir, main})
	root.Rehash()
	root.Summary = "A tool that summarizes source trees."
	return root
}

const sampleReadme = `# Sample

Records are kept by cache/store.go on disk.

- Start with main.go to follow the flow.
Nothing here points at code.

` + "```" + `
cache/store.go inside a fence
` + "```" + `
`

func refPaths(refs []Ref) []string {
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		paths = append(paths, ref.Path)
	}
	return paths
}

func TestParseLines(t *testing.T) {
	lines := ParseLines(sampleReadme)
	require.Len(t, lines, 10)

	content := map[int]bool{}
	for i, line := range lines {
		assert.Equal(t, i+1, line.Number)
		assert.NotEmpty(t, line.Checksum)
		content[line.Number] = line.Content
	}
	assert.False(t, content[1], "heading")
	assert.False(t, content[2], "blank")
	assert.True(t, content[3])
	assert.True(t, content[5])
	assert.True(t, content[6])
	assert.False(t, content[8], "fence")
	assert.False(t, content[9], "inside fence")

	assert.Equal(t, lines[2].Checksum, ParseLines("Records are kept by cache/store.go on disk.")[0].Checksum)
	assert.Nil(t, ParseLines(""))
	assert.Equal(t, sampleReadme, Render(lines))
}

func TestParseLines_KeepsLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(sampleReadme, "\n", "\r\n")
	lines := ParseLines(crlf)
	require.Len(t, lines, 10)
	assert.Equal(t, "Records are kept by cache/store.go on disk.", lines[2].Text)
	assert.Equal(t, "\r\n", lines[2].Ending)
	assert.Equal(t, ParseLines(sampleReadme)[2].Checksum, lines[2].Checksum)
	assert.Equal(t, crlf, Render(lines))

	unterminated := strings.TrimSuffix(sampleReadme, "\n")
	lines = ParseLines(unterminated)
	require.Len(t, lines, 10)
	assert.Equal(t, "", lines[9].Ending)
	assert.Equal(t, unterminated, Render(lines))

	mixed := "one\r\ntwo\nthree\r"
	lines = ParseLines(mixed)
	require.Len(t, lines, 3)
	assert.Equal(t, "three", lines[2].Text)
	assert.Equal(t, mixed, Render(lines))
}

func TestIndexMatch(t *testing.T) {
	idx := NewIndex(sampleTree("v1"))

	cases := []struct {
		line string
		want []string
	}{
		{"Records are kept by cache/store.go on disk.", []string{"cache", "cache/store.go"}},
		{"Start with main.go to follow the flow.", []string{"main.go"}},
		{"The pipeline starts in run_pipeline.", []string{"main.go"}},
		{"Use OpenStore to get a handle.", []string{"cache/store.go"}},
		{"The WriteRecord helper is atomic.", []string{"cache/store.go"}},
		{"Nothing here points at code.", []string{}},
		{"Domain of maintenance.", []string{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, refPaths(idx.Match(tc.line)), tc.line)
	}
}

func TestIndexMatch_IgnoresCommonIdentifiers(t *testing.T) {
	var files []*tree.Node
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go"} {
		f := tree.NewFile(name, []byte(name))
		f.Summary = "Uses `SharedHelper` heavily."
		files = append(files, f)
	}
	root := tree.NewDirectory(tree.RootPath, files)
	root.Rehash()

	assert.Empty(t, NewIndex(root).Match("SharedHelper is everywhere."))
}

func TestAnalyze_SourceChangeMarksLineStale(t *testing.T) {
	lines := ParseLines(sampleReadme)
	first := Analyze(lines, NewIndex(sampleTree("v1")), nil)
	assert.Equal(t, 2, first.Recomputed)
	assert.Empty(t, first.StaleLines())
	mapping := first.Mapping()
	require.Len(t, mapping.Entries, 2)

	second := Analyze(lines, NewIndex(sampleTree("v2")), mapping)
	assert.Equal(t, 2, second.Reused)
	assert.Equal(t, 0, second.Voided)

	stale := second.StaleLines()
	require.Len(t, stale, 1)
	assert.Equal(t, 3, stale[0].Number)
	require.Len(t, stale[0].Stale, 2)
	for _, ref := range stale[0].Stale {
		assert.Equal(t, ReasonChanged, ref.Reason)
		assert.NotEqual(t, ref.Key, ref.CurrentKey)
	}

	// Without a refresh the recorded keys stay, so the line is stale again next time.
	third := Analyze(lines, NewIndex(sampleTree("v2")), second.Mapping())
	assert.Len(t, third.StaleLines(), 1)

	second.Refresh(3)
	fourth := Analyze(lines, NewIndex(sampleTree("v2")), second.Mapping())
	assert.Empty(t, fourth.StaleLines())
}

func TestAnalyze_HandEditVoidsEntry(t *testing.T) {
	lines := ParseLines(sampleReadme)
	mapping := Analyze(lines, NewIndex(sampleTree("v1")), nil).Mapping()

	edited := ParseLines(replaceLine(sampleReadme, 3, "Records now live in cache/store.go and memory."))
	analysis := Analyze(edited, NewIndex(sampleTree("v2")), mapping)

	assert.Equal(t, 1, analysis.Voided)
	assert.Equal(t, 1, analysis.Reused)
	assert.Equal(t, 1, analysis.Recomputed)
	assert.Empty(t, analysis.StaleLines(), "a rebuilt line maps to current keys")

	// The voided entry is not carried into the refreshed mapping.
	refreshed := analysis.Mapping()
	require.Len(t, refreshed.Entries, 2)
	for _, entry := range refreshed.Entries {
		assert.NotEqual(t, lines[2].Checksum, entry.LineChecksum)
	}
}

func TestAnalyze_MovedLineKeepsEntry(t *testing.T) {
	lines := ParseLines(sampleReadme)
	mapping := Analyze(lines, NewIndex(sampleTree("v1")), nil).Mapping()

	shifted := ParseLines("Intro line.\n" + sampleReadme)
	analysis := Analyze(shifted, NewIndex(sampleTree("v2")), mapping)

	assert.Equal(t, 2, analysis.Reused)
	assert.Equal(t, 0, analysis.Voided)
	stale := analysis.StaleLines()
	require.Len(t, stale, 1)
	assert.Equal(t, 4, stale[0].Number)
}

func TestAnalyze_RemovedNodeIsMissing(t *testing.T) {
	lines := ParseLines("See legacy/old.go for the old path.\n")
	mapping := &Mapping{Version: MappingVersion, Entries: []MappingEntry{{
		LineNumber:   1,
		LineChecksum: lines[0].Checksum,
		CacheKeys:    []Ref{{Path: "legacy/old.go", Key: "00"}},
	}}}

	analysis := Analyze(lines, NewIndex(sampleTree("v1")), mapping)
	stale := analysis.StaleLines()
	require.Len(t, stale, 1)
	assert.Equal(t, ReasonMissing, stale[0].Stale[0].Reason)
	assert.Empty(t, stale[0].Stale[0].CurrentKey)

	analysis.Refresh(1)
	assert.Empty(t, analysis.Mapping().Entries)
}

func TestMapping_SaveLoad(t *testing.T) {
	path := MappingPath(filepath.Join(t.TempDir(), "cache"))

	m, err := LoadMapping(path)
	require.NoError(t, err)
	assert.Empty(t, m.Entries)

	require.NoError(t, SaveMapping(path, &Mapping{Entries: []MappingEntry{
		{LineNumber: 9, LineChecksum: "b", CacheKeys: []Ref{{Path: "x.go", Key: "k2"}}},
		{LineNumber: 2, LineChecksum: "a", CacheKeys: []Ref{{Path: "y.go", Key: "k1"}}},
	}}))

	loaded, err := LoadMapping(path)
	require.NoError(t, err)
	assert.Equal(t, MappingVersion, loaded.Version)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, 2, loaded.Entries[0].LineNumber)
	assert.Equal(t, "y.go", loaded.Entries[0].CacheKeys[0].Path)
}

func replaceLine(content string, number int, text string) string {
	lines := ParseLines(content)
	lines[number-1].Text = text
	return Render(lines)
}
