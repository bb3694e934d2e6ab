package graph

import (
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/errors"
)

// Resolve derives all `uses` edges, builds the reverse-dependency index, and
// runs the include-cycle check.
//
// Unresolved references are recorded as per-node errors; the affected node is
// later excluded from scheduling without blocking unrelated nodes. A cyclic
// include graph is the only fatal outcome, since no valid render order exists.
func Resolve(g *Graph, defaultTemplate string) error {
	for i, node := range g.nodes {
		if node.Failed() {
			continue
		}
		id := content.ID(i)
		switch node.Kind {
		case content.KindPage:
			resolvePage(g, id, node, defaultTemplate)
		case content.KindTemplate, content.KindPartial:
			resolveIncludes(g, id, node)
		case content.KindData, content.KindAsset:
		}
	}

	g.BuildReverseIndex()
	return checkIncludeCycles(g)
}

func resolvePage(g *Graph, id content.ID, node *content.Node, defaultTemplate string) {
	name := node.Meta.ResolveTemplate(defaultTemplate)
	tmplID, ok := g.LookupTemplate(name)
	if !ok {
		node.Err = errors.Newf(errors.CategoryResolve, "template %q not found", name).WithPath(node.Path)
		return
	}
	g.AddEdge(id, tmplID)

	for _, ref := range node.Meta.DataRefs {
		dataID, ok := g.LookupData(ref)
		if !ok {
			node.Err = errors.Newf(errors.CategoryResolve, "data file %q not found", ref).WithPath(node.Path)
			return
		}
		g.AddEdge(id, dataID)
	}
}

func resolveIncludes(g *Graph, id content.ID, node *content.Node) {
	names, err := ScanIncludes(node.Raw)
	if err != nil {
		node.Err = errors.Wrap(err, errors.CategoryParse, "parse template").WithPath(node.Path)
		return
	}
	for _, name := range names {
		partialID, ok := g.LookupPartial(name)
		if !ok {
			node.Err = errors.Newf(errors.CategoryResolve, "partial %q not found", name).WithPath(node.Path)
			return
		}
		g.AddEdge(id, partialID)
	}
}

// ScanIncludes parses template source and collects the names of invoked
// sub-templates ({{template "name" ...}}), in order of first appearance.
// Names defined in the same file via {{define}} or {{block}} resolve within
// the file's own namespace at execution time and are excluded; their bodies
// are scanned too, so an invocation nested inside one still counts.
func ScanIncludes(src []byte) ([]string, error) {
	tpl, err := template.New("scan").Parse(string(src))
	if err != nil {
		return nil, err
	}

	local := map[string]struct{}{}
	var defined []*template.Template
	for _, assoc := range tpl.Templates() {
		if assoc.Name() == tpl.Name() {
			continue
		}
		local[assoc.Name()] = struct{}{}
		defined = append(defined, assoc)
	}
	sort.Slice(defined, func(i, j int) bool { return defined[i].Name() < defined[j].Name() })

	var names []string
	seen := map[string]struct{}{}
	var walk func(n parse.Node)
	walk = func(n parse.Node) {
		switch node := n.(type) {
		case *parse.TemplateNode:
			if _, ok := local[node.Name]; ok {
				return
			}
			if _, ok := seen[node.Name]; !ok {
				seen[node.Name] = struct{}{}
				names = append(names, node.Name)
			}
		case *parse.ListNode:
			if node == nil {
				return
			}
			for _, item := range node.Nodes {
				walk(item)
			}
		case *parse.IfNode:
			walk(node.List)
			walk(node.ElseList)
		case *parse.RangeNode:
			walk(node.List)
			walk(node.ElseList)
		case *parse.WithNode:
			walk(node.List)
			walk(node.ElseList)
		}
	}
	walk(tpl.Tree.Root)
	for _, assoc := range defined {
		if assoc.Tree != nil {
			walk(assoc.Tree.Root)
		}
	}
	return names, nil
}

// checkIncludeCycles runs a depth-first search with a recursion-marker set
// over template/partial include edges. A detected cycle aborts the build
// before any rendering starts.
func checkIncludeCycles(g *Graph) error {
	const (
		white = 0 // unvisited
		grey  = 1 // on the recursion stack
		black = 2 // fully explored
	)
	state := make([]int, len(g.nodes))
	var stack []string

	var visit func(id content.ID) error
	visit = func(id content.ID) error {
		state[id] = grey
		stack = append(stack, g.nodes[id].Path)
		for _, dep := range g.uses[id] {
			node := g.nodes[dep]
			if node.Kind != content.KindPartial && node.Kind != content.KindTemplate {
				continue
			}
			switch state[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case grey:
				cycle := append(stack, node.Path)
				return errors.Newf(errors.CategoryCycle,
					"cyclic include: %s", strings.Join(cycle, " -> ")).WithPath(node.Path)
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = black
		return nil
	}

	for i, node := range g.nodes {
		if node.Kind != content.KindTemplate && node.Kind != content.KindPartial {
			continue
		}
		if state[i] == white {
			stack = stack[:0]
			if err := visit(content.ID(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
