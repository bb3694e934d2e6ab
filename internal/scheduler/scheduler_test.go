package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/errors"
	"git.home.luguber.info/inful/sitesmith/internal/graph"
	"git.home.luguber.info/inful/sitesmith/internal/util/sets"
)

// diamond wires pages {A,B} -> template post -> partial header.
func diamond(t *testing.T) *graph.Graph {
	t.Helper()
	nodes := []*content.Node{
		{Kind: content.KindPage, Path: "content/a.md", Meta: &content.PageMeta{Template: "post"}},
		{Kind: content.KindPage, Path: "content/b.md", Meta: &content.PageMeta{Template: "post"}},
		{Kind: content.KindTemplate, Path: "templates/post.html", Name: "post",
			Raw: []byte(`{{template "header" .}}{{.content}}`)},
		{Kind: content.KindPartial, Path: "templates/partials/header.html", Name: "header",
			Raw: []byte("<header></header>")},
	}
	g := graph.New(nodes)
	require.NoError(t, graph.Resolve(g, "default"))
	return g
}

func allDirty(g *graph.Graph) sets.Set[content.ID] {
	dirty := sets.Set[content.ID]{}
	for i := range g.Nodes() {
		dirty.Add(content.ID(i))
	}
	return dirty
}

func paths(g *graph.Graph, ids []content.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Node(id).Path)
	}
	return out
}

type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) task(g *graph.Graph) TaskFunc {
	return func(_ context.Context, id content.ID) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, g.Node(id).Path)
		return nil
	}
}

func (r *orderRecorder) index(path string) int {
	for i, p := range r.order {
		if p == path {
			return i
		}
	}
	return -1
}

func TestRun_DependenciesBeforeDependents(t *testing.T) {
	g := diamond(t)
	rec := &orderRecorder{}

	res, err := Run(context.Background(), g, allDirty(g), Options{Workers: 4}, rec.task(g))
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 4)
	require.Empty(t, res.Failed)
	require.Empty(t, res.Skipped)

	partial := rec.index("templates/partials/header.html")
	tmpl := rec.index("templates/post.html")
	require.Less(t, partial, tmpl)
	require.Less(t, tmpl, rec.index("content/a.md"))
	require.Less(t, tmpl, rec.index("content/b.md"))
}

func TestRun_SingleWorker_LexicalTieBreak(t *testing.T) {
	g := diamond(t)
	rec := &orderRecorder{}

	_, err := Run(context.Background(), g, allDirty(g), Options{Workers: 1}, rec.task(g))
	require.NoError(t, err)
	require.Equal(t, []string{
		"templates/partials/header.html",
		"templates/post.html",
		"content/a.md",
		"content/b.md",
	}, rec.order)
}

func TestRun_FailedDependency_SkipsDependentsTransitively(t *testing.T) {
	g := diamond(t)

	res, err := Run(context.Background(), g, allDirty(g), Options{Workers: 2},
		func(_ context.Context, id content.ID) error {
			if g.Node(id).Kind == content.KindPartial {
				return errors.New(errors.CategoryRender, "boom")
			}
			return nil
		})
	require.NoError(t, err)
	require.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 1)
	require.ElementsMatch(t,
		[]string{"content/a.md", "content/b.md", "templates/post.html"},
		paths(g, res.Skipped))
}

func TestRun_IndependentNodesContinueAfterFailure(t *testing.T) {
	nodes := []*content.Node{
		{Kind: content.KindAsset, Path: "static/bad.css"},
		{Kind: content.KindAsset, Path: "static/good.css"},
	}
	g := graph.New(nodes)
	require.NoError(t, graph.Resolve(g, "default"))

	res, err := Run(context.Background(), g, allDirty(g), Options{Workers: 1},
		func(_ context.Context, id content.ID) error {
			if g.Node(id).Path == "static/bad.css" {
				return errors.New(errors.CategoryFileSystem, "copy failed")
			}
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, []string{"static/good.css"}, paths(g, res.Succeeded))
	require.Len(t, res.Failed, 1)
	require.Empty(t, res.Skipped)
}

func TestRun_FailFast_StopsDispatch(t *testing.T) {
	nodes := []*content.Node{
		{Kind: content.KindAsset, Path: "static/a.css"},
		{Kind: content.KindAsset, Path: "static/b.css"},
		{Kind: content.KindAsset, Path: "static/c.css"},
	}
	g := graph.New(nodes)
	require.NoError(t, graph.Resolve(g, "default"))

	res, err := Run(context.Background(), g, allDirty(g), Options{Workers: 1, FailFast: true},
		func(_ context.Context, id content.ID) error {
			if g.Node(id).Path == "static/a.css" {
				return errors.New(errors.CategoryFileSystem, "copy failed")
			}
			return nil
		})
	require.NoError(t, err)
	require.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 1)
	require.ElementsMatch(t, []string{"static/b.css", "static/c.css"}, paths(g, res.Skipped))
}

func TestRun_PreFailedNodeNeverExecutes(t *testing.T) {
	g := diamond(t)
	pageID, ok := g.ByPath("content/a.md")
	require.True(t, ok)
	g.Node(pageID).Err = errors.New(errors.CategoryParse, "bad frontmatter").WithPath("content/a.md")

	executed := sets.Set[string]{}
	var mu sync.Mutex
	res, err := Run(context.Background(), g, allDirty(g), Options{Workers: 2},
		func(_ context.Context, id content.ID) error {
			mu.Lock()
			executed.Add(g.Node(id).Path)
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)
	require.False(t, executed.Has("content/a.md"))
	require.Contains(t, res.Failed, pageID)
	require.Equal(t, errors.CategoryParse, res.Failed[pageID].Category)
	require.ElementsMatch(t,
		[]string{"content/b.md", "templates/partials/header.html", "templates/post.html"},
		paths(g, res.Succeeded))
}

func TestRun_AllNodesPreFailed(t *testing.T) {
	nodes := []*content.Node{
		{Kind: content.KindPage, Path: "content/a.md",
			Err: errors.New(errors.CategoryParse, "bad").WithPath("content/a.md")},
		{Kind: content.KindPage, Path: "content/b.md",
			Err: errors.New(errors.CategoryParse, "bad").WithPath("content/b.md")},
	}
	g := graph.New(nodes)
	require.NoError(t, graph.Resolve(g, "default"))

	res, err := Run(context.Background(), g, allDirty(g), Options{Workers: 2},
		func(context.Context, content.ID) error {
			t.Error("no task should run")
			return nil
		})
	require.NoError(t, err)
	require.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 2)
	require.Empty(t, res.Skipped)
}

func TestRun_CanceledContext_ReturnsContextError(t *testing.T) {
	g := diamond(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, g, allDirty(g), Options{Workers: 2},
		func(context.Context, content.ID) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.Succeeded)
}

func TestRun_EmptyDirtySet(t *testing.T) {
	g := diamond(t)
	res, err := Run(context.Background(), g, sets.Set[content.ID]{}, Options{Workers: 4},
		func(context.Context, content.ID) error {
			t.Fatal("no task should run")
			return nil
		})
	require.NoError(t, err)
	require.Empty(t, res.Succeeded)
	require.Empty(t, res.Failed)
	require.Empty(t, res.Skipped)
}

func TestRun_DirtySubsetOnly(t *testing.T) {
	g := diamond(t)
	pageID, ok := g.ByPath("content/a.md")
	require.True(t, ok)
	dirty := sets.New(pageID)

	rec := &orderRecorder{}
	res, err := Run(context.Background(), g, dirty, Options{Workers: 4}, rec.task(g))
	require.NoError(t, err)
	require.Equal(t, []string{"content/a.md"}, rec.order)
	require.Equal(t, []string{"content/a.md"}, paths(g, res.Succeeded))
}
