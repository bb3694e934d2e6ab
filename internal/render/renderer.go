// Package render executes per-node render tasks: markdown conversion and
// template evaluation for pages, compilation for templates and partials, and
// passthrough copies for assets.
package render

import (
	"context"
	"log/slog"
	"sync"
	"text/template"

	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/errors"
	"git.home.luguber.info/inful/sitesmith/internal/graph"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
	"git.home.luguber.info/inful/sitesmith/internal/markdown"
	"git.home.luguber.info/inful/sitesmith/internal/templates"
)

// Renderer renders graph nodes against one output root. It is shared by all
// worker goroutines of a build; the graph stays read-only except for each
// node's own render-result fields.
type Renderer struct {
	g      *graph.Graph
	cfg    *config.Config
	writer *Writer
	logger *slog.Logger

	// Unchanged templates are not scheduled, but dirty pages still need
	// their compiled form. compileOnce makes on-demand compilation safe
	// when two page tasks race for the same clean template.
	compileOnce []sync.Once
	compileErr  []error
}

// NewRenderer creates a renderer over a resolved graph.
func NewRenderer(g *graph.Graph, cfg *config.Config, outDir string) *Renderer {
	return &Renderer{
		g:           g,
		cfg:         cfg,
		writer:      NewWriter(outDir),
		logger:      slog.Default(),
		compileOnce: make([]sync.Once, g.Len()),
		compileErr:  make([]error, g.Len()),
	}
}

// WithLogger sets a custom logger.
func (r *Renderer) WithLogger(logger *slog.Logger) *Renderer {
	r.logger = logger
	return r
}

// Render executes the render task for one node. It satisfies the scheduler's
// task signature.
func (r *Renderer) Render(ctx context.Context, id content.ID) error {
	node := r.g.Node(id)
	switch node.Kind {
	case content.KindPage:
		return r.renderPage(ctx, id, node)
	case content.KindTemplate, content.KindPartial:
		_, err := r.compiled(id)
		return err
	case content.KindData:
		// Data files are parsed during graph building; rendering them only
		// propagates freshness to dependent pages.
		return nil
	case content.KindAsset:
		return r.copyAsset(node)
	default:
		return errors.Newf(errors.CategoryInternal, "unknown node kind %q", node.Kind).WithPath(node.Path)
	}
}

func (r *Renderer) renderPage(ctx context.Context, id content.ID, node *content.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fragment, err := markdown.Render(node.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryRender, "convert markdown").WithPath(node.Path)
	}

	tplID, ok := r.g.LookupTemplate(node.Meta.ResolveTemplate(r.cfg.Build.DefaultTemplate))
	if !ok {
		// Resolution fails pages with missing templates before scheduling.
		return errors.Newf(errors.CategoryInternal,
			"template %s disappeared after resolution", node.Meta.ResolveTemplate(r.cfg.Build.DefaultTemplate)).
			WithPath(node.Path)
	}
	tpl, err := r.compiled(tplID)
	if err != nil {
		return err
	}

	data := make(map[string]any, len(node.Meta.DataRefs))
	for _, ref := range node.Meta.DataRefs {
		dataID, ok := r.g.LookupData(ref)
		if !ok {
			return errors.Newf(errors.CategoryInternal,
				"data file %s disappeared after resolution", ref).WithPath(node.Path)
		}
		data[ref] = r.g.Node(dataID).Data
	}

	out, err := templates.Render(tpl, templates.PageContext(node.Meta, string(fragment), r.cfg.Site, data))
	if err != nil {
		return errors.Wrap(err, errors.CategoryRender, "execute template").WithPath(node.Path)
	}

	if err := r.writer.Write(node.DestPath, out); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, "write page").WithPath(node.Path)
	}
	r.logger.Debug("Rendered page",
		logfields.Node(node.Path),
		logfields.Output(node.DestPath))
	return nil
}

// compiled returns the node's compiled template, compiling it and its include
// closure on first use. The scheduler orders dirty partials before their
// dependents, so a dirty closure compiles bottom-up; clean templates compile
// lazily here.
func (r *Renderer) compiled(id content.ID) (*template.Template, error) {
	node := r.g.Node(id)
	r.compileOnce[id].Do(func() {
		partials := map[string]*template.Template{}
		for _, dep := range r.g.IncludeClosure(id) {
			ptpl, err := r.compiled(dep)
			if err != nil {
				r.compileErr[id] = err
				return
			}
			partials[r.g.Node(dep).Name] = ptpl
		}

		tpl, err := templates.Compile(node.Name, node.Raw, partials)
		if err != nil {
			r.compileErr[id] = errors.Wrap(err, errors.CategoryParse, "compile template").WithPath(node.Path)
			return
		}
		node.Compiled = tpl
	})
	if r.compileErr[id] != nil {
		return nil, r.compileErr[id]
	}
	return node.Compiled, nil
}

func (r *Renderer) copyAsset(node *content.Node) error {
	if err := r.writer.Copy(node.AbsPath, node.DestPath); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, "copy asset").WithPath(node.Path)
	}
	r.logger.Debug("Copied asset",
		logfields.Node(node.Path),
		logfields.Output(node.DestPath))
	return nil
}
