// Package content defines the content graph's node model and builds nodes
// from a source tree: classification, frontmatter extraction, and the typed
// metadata view over parsed frontmatter.
package content

import (
	"path"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/sitesmith/internal/errors"
)

// Kind classifies a source file into its graph node variant.
type Kind string

const (
	KindPage     Kind = "page"
	KindTemplate Kind = "template"
	KindPartial  Kind = "partial"
	KindData     Kind = "data"
	KindAsset    Kind = "asset"
)

// ID is a stable index into the build graph's node slice. Cross-references
// between nodes are held as IDs looked up through the graph, never as
// direct pointers between nodes.
type ID int

// Node is one classified unit of the content graph.
//
// A node is constructed once during graph building and is read-only during
// the render phase except for its render-result fields, which are written
// exactly once by the worker that rendered it.
type Node struct {
	Kind    Kind
	Path    string // source path relative to the source root, slash-separated
	AbsPath string // absolute path on disk
	Rel     string // path relative to the node's classification base directory

	// Name is the lookup name for templates, partials, and data nodes:
	// Rel without its extension.
	Name string

	Raw []byte // raw file bytes; nil for assets (copied without loading)

	// Page fields.
	FrontMatter []byte // raw frontmatter block, without delimiters
	Body        []byte // markdown body
	Meta        *PageMeta

	// Data field: parsed structured value, read-only after construction.
	Data any

	// DestPath is the output-relative destination for assets and pages.
	DestPath string

	// Compiled is the owned compiled form of a template/partial node,
	// written once by the worker that rendered it and shared read-only by
	// dependent page render tasks. Included partials are attached by name;
	// the references are non-owning lookups through the graph.
	Compiled *template.Template

	// Fingerprint is filled by the change detector.
	Fingerprint string

	// Err records a per-node classification or parse error. Nodes with a
	// non-nil Err are excluded from scheduling but stay in the graph so the
	// report can list every malformed document in one pass.
	Err *errors.BuildError
}

// LookupName derives a template/partial/data lookup name from a path below
// its base directory: extension stripped, slash-separated.
func LookupName(rel string) string {
	ext := path.Ext(rel)
	return strings.TrimSuffix(rel, ext)
}

// Section returns the first path segment of the node below its base
// directory, or "" for files at the base root.
func (n *Node) Section() string {
	idx := strings.IndexByte(n.Rel, '/')
	if idx < 0 {
		return ""
	}
	return n.Rel[:idx]
}

// Failed reports whether the node carries a per-node error.
func (n *Node) Failed() bool { return n.Err != nil }
