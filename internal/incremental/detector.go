package incremental

import (
	"log/slog"

	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/errors"
	"git.home.luguber.info/inful/sitesmith/internal/graph"
	"git.home.luguber.info/inful/sitesmith/internal/manifest"
	"git.home.luguber.info/inful/sitesmith/internal/util/sets"
)

// Result is the outcome of change detection for one build invocation.
type Result struct {
	// Dirty is the transitive dirty closure: every node that must render.
	Dirty sets.Set[content.ID]
	// Unchanged holds nodes skipped as up to date, for the report.
	Unchanged []content.ID
}

// Detect fingerprints every node, compares against the previous manifest,
// and expands the seed dirty set along reverse-dependency edges to fixpoint.
//
// Absence from the manifest counts as changed (first build or new file).
// force marks every node dirty, bypassing fingerprint comparison entirely.
func Detect(g *graph.Graph, prev *manifest.Manifest, force bool) (*Result, error) {
	if err := fingerprintAll(g); err != nil {
		return nil, err
	}

	dirty := sets.Set[content.ID]{}
	for i, node := range g.Nodes() {
		id := content.ID(i)
		switch {
		case force:
			dirty.Add(id)
		case node.Failed():
			// Malformed nodes always surface in the report and their
			// dependents must be marked, so they join the seed.
			dirty.Add(id)
		default:
			entry, ok := prev.Lookup(node.Path)
			if !ok || entry.Fingerprint != node.Fingerprint {
				dirty.Add(id)
			}
		}
	}

	// Transitive closure over the reverse-dependency index. Bounded by node
	// count since the graph is acyclic.
	work := make([]content.ID, 0, len(dirty))
	for id := range dirty {
		work = append(work, id)
	}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, dep := range g.Dependents(id) {
			if dirty.Has(dep) {
				continue
			}
			dirty.Add(dep)
			work = append(work, dep)
		}
	}

	res := &Result{Dirty: dirty}
	for i := range g.Nodes() {
		if !dirty.Has(content.ID(i)) {
			res.Unchanged = append(res.Unchanged, content.ID(i))
		}
	}

	slog.Debug("Change detection complete",
		slog.Int("nodes", g.Len()),
		slog.Int("dirty", len(dirty)),
		slog.Bool("force", force))
	return res, nil
}

// fingerprintAll computes base fingerprints for every node, then folds each
// template's/partial's include closure into its stored fingerprint. The fold
// always uses base fingerprints so the result is independent of node order.
func fingerprintAll(g *graph.Graph) error {
	base := make([]string, g.Len())
	for i, node := range g.Nodes() {
		fp, err := Fingerprint(node)
		if err != nil {
			if node.Err == nil {
				node.Err = errors.Wrap(err, errors.CategoryFileSystem, "fingerprint").WithPath(node.Path)
			}
			continue
		}
		base[i] = fp
		node.Fingerprint = fp
	}

	for i, node := range g.Nodes() {
		if node.Kind != content.KindTemplate && node.Kind != content.KindPartial {
			continue
		}
		closure := g.IncludeClosure(content.ID(i))
		if len(closure) == 0 {
			continue
		}
		deps := make([]string, 0, len(closure))
		for _, dep := range closure {
			deps = append(deps, base[dep])
		}
		node.Fingerprint = Combine(base[i], deps)
	}
	return nil
}
