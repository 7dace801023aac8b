// Package tree builds the in-memory file and directory tree that a run summarizes.
package tree

import (
	"path"

	"github.com/meysamhadeli/doctreeai/hasher"
)

// Kind distinguishes files from directories.
type Kind int

const (
	File Kind = iota
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// Status is the terminal state of a node after summarization.
type Status int

const (
	Pending Status = iota
	Reused
	Computed
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Reused:
		return "reused"
	case Computed:
		return "computed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "pending"
	}
}

// RootPath is the relative path of the tree root.
const RootPath = "."

// Node is one file or directory. Children are owned and sorted by name; nodes
// hold no parent pointers.
type Node struct {
	Path        string
	Name        string
	Kind        Kind
	Fingerprint hasher.Digest
	Children    []*Node

	Summary string
	Symbols []string
	Status  Status
	// Degraded is set when this node or any descendant failed, so its summary
	// was built from partial input.
	Degraded bool
	Err      error

	Binary  bool
	content []byte
}

// NewFile creates a file node and fingerprints its bytes.
func NewFile(relPath string, content []byte) *Node {
	return &Node{
		Path:        relPath,
		Name:        path.Base(relPath),
		Kind:        File,
		Fingerprint: hasher.Fingerprint(content),
		content:     content,
	}
}

// NewDirectory creates a directory node. Call Rehash once its children are attached.
func NewDirectory(relPath string, children []*Node) *Node {
	name := path.Base(relPath)
	if relPath == RootPath {
		name = RootPath
	}
	return &Node{
		Path:     relPath,
		Name:     name,
		Kind:     Directory,
		Children: children,
	}
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool { return n.Kind == Directory }

// HasSummary reports whether a summary is available for this run.
func (n *Node) HasSummary() bool { return n.Summary != "" }

// Content returns the bytes read by the builder. It is nil for directories and
// after ReleaseContent.
func (n *Node) Content() []byte { return n.content }

// ReleaseContent drops the file bytes once they are no longer needed.
func (n *Node) ReleaseContent() { n.content = nil }

// Rehash derives a directory fingerprint from the (name, digest) pairs of its
// children. It never reads file contents.
func (n *Node) Rehash() hasher.Digest {
	if n.Kind != Directory {
		return n.Fingerprint
	}
	pairs := make([]hasher.Child, 0, len(n.Children))
	for _, child := range n.Children {
		if child.Fingerprint.IsZero() {
			continue
		}
		pairs = append(pairs, hasher.Child{Name: child.Name, Digest: child.Fingerprint})
	}
	n.Fingerprint = hasher.FingerprintOfChildren(pairs)
	return n.Fingerprint
}

// Walk visits the tree in post-order, children before parents.
func (n *Node) Walk(visit func(*Node)) {
	for _, child := range n.Children {
		child.Walk(visit)
	}
	visit(n)
}

// Find returns the node with the given relative path.
func (n *Node) Find(relPath string) (*Node, bool) {
	var found *Node
	n.Walk(func(node *Node) {
		if found == nil && node.Path == relPath {
			found = node
		}
	})
	return found, found != nil
}

// Count returns the number of nodes in the tree.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) { count++ })
	return count
}
