package readme

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/meysamhadeli/doctreeai/tree"
)

// Ref names one tree node a README line depends on, with the cache key the
// node had when the dependency was recorded.
type Ref struct {
	Path string `json:"path"`
	Key  string `json:"key"`
}

const (
	// minTokenLength keeps short names like "src" or "go" from matching prose.
	minTokenLength = 4
	// maxIdentifierFanout drops identifiers that too many nodes mention.
	maxIdentifierFanout = 3
)

var (
	backtickPattern = regexp.MustCompile("`([A-Za-z_][A-Za-z0-9_./-]*)`")
	camelPattern    = regexp.MustCompile(`\b[A-Za-z][a-z0-9]+(?:[A-Z][a-z0-9]+)+\b`)
	snakePattern    = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)
)

type candidate struct {
	ref    Ref
	tokens []string
}

// Index matches README lines against the paths and identifiers of a completed tree.
type Index struct {
	nodes       map[string]*tree.Node
	candidates  []candidate
	identifiers map[string][]Ref
}

// NewIndex collects match tokens from every node below root.
func NewIndex(root *tree.Node) *Index {
	idx := &Index{
		nodes:       make(map[string]*tree.Node),
		identifiers: make(map[string][]Ref),
	}
	if root == nil {
		return idx
	}

	owners := make(map[string]map[string]Ref)
	root.Walk(func(node *tree.Node) {
		idx.nodes[node.Path] = node
		if node.Path == tree.RootPath {
			return
		}
		ref := Ref{Path: node.Path, Key: node.Fingerprint.String()}
		idx.candidates = append(idx.candidates, candidate{ref: ref, tokens: pathTokens(node)})

		for _, ident := range nodeIdentifiers(node) {
			if owners[ident] == nil {
				owners[ident] = make(map[string]Ref)
			}
			owners[ident][ref.Path] = ref
		}
	})

	for ident, refs := range owners {
		if len(refs) > maxIdentifierFanout {
			continue
		}
		for _, ref := range refs {
			idx.identifiers[ident] = append(idx.identifiers[ident], ref)
		}
	}
	sort.Slice(idx.candidates, func(i, j int) bool { return idx.candidates[i].ref.Path < idx.candidates[j].ref.Path })
	return idx
}

// Node returns the current node at path.
func (idx *Index) Node(p string) (*tree.Node, bool) {
	node, ok := idx.nodes[p]
	return node, ok
}

// Match returns the refs a line mentions, sorted by path. Keys are the
// current fingerprints.
func (idx *Index) Match(text string) []Ref {
	lower := strings.ToLower(text)
	found := make(map[string]Ref)

	for _, c := range idx.candidates {
		for _, token := range c.tokens {
			if containsToken(lower, token) {
				found[c.ref.Path] = c.ref
				break
			}
		}
	}
	for ident, refs := range idx.identifiers {
		if !containsToken(lower, ident) {
			continue
		}
		for _, ref := range refs {
			found[ref.Path] = ref
		}
	}
	return sortedRefs(found)
}

func pathTokens(node *tree.Node) []string {
	var tokens []string
	add := func(token string) {
		token = strings.ToLower(token)
		for _, t := range tokens {
			if t == token {
				return
			}
		}
		tokens = append(tokens, token)
	}

	if strings.Contains(node.Path, "/") {
		add(node.Path)
	}
	ext := path.Ext(node.Name)
	if (ext != "" && ext != node.Name) || len(node.Name) >= minTokenLength {
		add(node.Name)
	}
	if stem := strings.TrimSuffix(node.Name, ext); stem != node.Name && len(stem) >= minTokenLength {
		add(stem)
	}
	return tokens
}

func nodeIdentifiers(node *tree.Node) []string {
	seen := make(map[string]struct{})
	add := func(ident string) {
		if len(ident) < minTokenLength {
			return
		}
		seen[strings.ToLower(ident)] = struct{}{}
	}

	for _, m := range backtickPattern.FindAllStringSubmatch(node.Summary, -1) {
		add(m[1])
	}
	for _, m := range camelPattern.FindAllString(node.Summary, -1) {
		add(m)
	}
	for _, m := range snakePattern.FindAllString(node.Summary, -1) {
		add(m)
	}
	for _, symbol := range node.Symbols {
		if i := strings.LastIndex(symbol, ": "); i >= 0 {
			add(symbol[i+2:])
		}
	}

	idents := make([]string, 0, len(seen))
	for ident := range seen {
		idents = append(idents, ident)
	}
	sort.Strings(idents)
	return idents
}

// containsToken reports whether token occurs in s on identifier boundaries.
func containsToken(s, token string) bool {
	if token == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], token)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(token)
		if (start == 0 || !isIdentByte(s[start-1])) && (end == len(s) || !isIdentByte(s[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func sortedRefs(set map[string]Ref) []Ref {
	if len(set) == 0 {
		return nil
	}
	refs := make([]Ref, 0, len(set))
	for _, ref := range set {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs
}
